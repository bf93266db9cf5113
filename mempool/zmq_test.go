package mempool

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

func buildRawTx(t *testing.T, value int64, pkScript []byte) []byte {
	t.Helper()
	tx := wire.NewMsgTx(wire.TxVersion)
	var prevHash chainhash.Hash
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&prevHash, 0xffffffff), []byte{txscript.OP_0}, nil))
	tx.AddTxOut(wire.NewTxOut(value, pkScript))

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		t.Fatalf("serialize tx: %v", err)
	}
	return buf.Bytes()
}

func TestHandleRawTxIngestsValidTransaction(t *testing.T) {
	script := []byte("addrA")
	raw := buildRawTx(t, 1234, script)

	monitor := New(fakeSolver{})
	sub := &ZMQSubscriber{monitor: monitor}
	sub.handleRawTx(raw)

	if monitor.Size() != 1 {
		t.Errorf("Size() = %d, want 1", monitor.Size())
	}
	rows := monitor.TxosForAddress("addrA")
	if len(rows) != 1 || rows[0].Value != 1234 {
		t.Errorf("TxosForAddress(addrA) = %+v, want one row valued 1234", rows)
	}
}

func TestHandleRawTxDiscardsMalformedPayload(t *testing.T) {
	monitor := New(fakeSolver{})
	sub := &ZMQSubscriber{monitor: monitor}
	sub.handleRawTx([]byte("not a transaction"))

	if monitor.Size() != 0 {
		t.Errorf("Size() = %d, want 0 after malformed payload", monitor.Size())
	}
}
