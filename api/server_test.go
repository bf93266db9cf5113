package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/metaid/utxo_indexer/blockchain"
	"github.com/metaid/utxo_indexer/indexer"
	"github.com/metaid/utxo_indexer/query"
	"github.com/metaid/utxo_indexer/storage"
)

type fakeNode struct{}

func (fakeNode) GetRawTransactionHex(txid string) (string, error) { return "deadbeef", nil }
func (fakeNode) GetRawTransactionVerbose(txid string) ([]byte, error) {
	return []byte(`{"txid":"` + txid + `"}`), nil
}
func (fakeNode) GetBlockCount() (int64, error) { return 10, nil }
func (fakeNode) SendRawTransaction(rawHex string) (string, error) {
	return "75726e65646e6578706563746564", nil
}
func (fakeNode) ReadBlock(fileName string, offset int64, height uint64, headerOnly bool) (*blockchain.Block, error) {
	return nil, fmt.Errorf("ReadBlock not used in this test")
}

type fakeMempool struct{}

func (fakeMempool) TxIds() []string { return []string{"unconfirmedTx1"} }
func (fakeMempool) TxosForAddress(address string) []indexer.MempoolTxo {
	return nil
}
func (fakeMempool) OutpointSpend(prevTxid string, vout uint64) (string, bool) { return "", false }
func (fakeMempool) TransactionIndexed(txid string)                           {}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatalf("storage.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	meta, err := storage.NewMetaStore(t.TempDir())
	if err != nil {
		t.Fatalf("storage.NewMetaStore: %v", err)
	}
	t.Cleanup(func() { _ = meta.Close() })

	engine := query.New(store, meta, fakeNode{}, fakeNode{}, nil, fakeMempool{})
	return NewServer(engine)
}

func TestAddressBalanceReturnsPlainIntegerByDefault(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/addressBalance/addrA", nil)
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "0" {
		t.Errorf("body = %q, want 0", w.Body.String())
	}
}

func TestAddressBalanceWithDetailsReturnsJSON(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/addressBalance/addrA?details=1", nil)
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if _, ok := body["balance"]; !ok {
		t.Errorf("body = %v, missing balance field", body)
	}
}

func TestOutpointSpendRejectsNonNumericVout(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/outpointSpend/sometx/abc", nil)
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestOutpointSpendReportsUnknownTx(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/outpointSpend/sometx/0", nil)
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if errVal, _ := body["error"].(bool); !errVal {
		t.Errorf("body = %v, want error=true for unknown tx", body)
	}
}

func TestSendRawTransactionRequiresBody(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/sendRawTransaction", bytes.NewReader(nil))
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestSendRawTransactionReturnsBareTxid(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/sendRawTransaction", bytes.NewReader([]byte("deadbeef")))
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	if w.Body.String() != "75726e65646e6578706563746564" {
		t.Errorf("body = %q, want bare txid", w.Body.String())
	}
}

func TestMempoolEndpointListsTxids(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/mempool", nil)
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)

	var body map[string][]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(body["txids"]) != 1 || body["txids"][0] != "unconfirmedTx1" {
		t.Errorf("txids = %v, want [unconfirmedTx1]", body["txids"])
	}
}

func TestSyncEndpointReportsHeight(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/sync", nil)
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if body["blockChainHeight"].(float64) != 10 {
		t.Errorf("blockChainHeight = %v, want 10", body["blockChainHeight"])
	}
}

func TestBlockTxsRejectsNegativePage(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/blocktxs/somehash/-1", nil)
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestBlocksByDateRequiresNumericBounds(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/blocksbydate?start=abc&end=123", nil)
	w := httptest.NewRecorder()
	s.Router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}
