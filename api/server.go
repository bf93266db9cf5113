// Package api exposes the query engine over HTTP, using gin the same
// way the teacher project wires its own REST surface.
package api

import (
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/metaid/utxo_indexer/query"
)

// Server is the gin HTTP front end over a query.Engine. It holds no
// indexing state of its own — every route is a direct translation of a
// request's query/path parameters into an Engine call.
type Server struct {
	engine *query.Engine
	Router *gin.Engine
}

func NewServer(engine *query.Engine) *Server {
	gin.SetMode(gin.ReleaseMode)
	gin.DefaultWriter = io.Discard
	s := &Server{
		engine: engine,
		Router: gin.Default(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.Router.GET("/addressBalance/:address", s.addressBalance)
	s.Router.GET("/addressTxos/:address", s.addressTxos)
	s.Router.GET("/addressTxosSince/:sinceBlock/:address", s.addressTxosSince)
	s.Router.GET("/getTransaction/:id", s.getTransaction)
	s.Router.GET("/getTransactionProof/:id", s.getTransactionProof)
	s.Router.GET("/outpointSpend/:txid/:vout", s.outpointSpend)
	s.Router.POST("/outpointSpends", s.outpointSpends)
	s.Router.POST("/sendRawTransaction", s.sendRawTransaction)
	s.Router.GET("/blocks", s.blocks)
	s.Router.GET("/block/:hash", s.block)
	s.Router.GET("/blocktxs/:hash/:page", s.blockTxs)
	s.Router.GET("/blocksbydate", s.blocksByDate)
	s.Router.GET("/mempool", s.mempool)
	s.Router.GET("/sync", s.sync)
}

func (s *Server) Start(addr string) error {
	if err := s.Router.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
		return err
	}
	return nil
}

// addressBalance ← GET /addressBalance/{address}?details
func (s *Server) addressBalance(c *gin.Context) {
	address := c.Param("address")
	balance, err := s.engine.AddressBalance(address)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if c.Query("details") == "1" || c.Query("details") == "true" {
		c.JSON(http.StatusOK, balance)
		return
	}
	c.String(http.StatusOK, "%d", balance.Balance)
}

func addressTxoOptionsFromQuery(c *gin.Context, sinceBlock int64) query.AddressTxoOptions {
	return query.AddressTxoOptions{
		SinceBlock:  sinceBlock,
		Unspent:     c.Query("unspent") == "1" || c.Query("unspent") == "true",
		Unconfirmed: c.Query("unconfirmed") == "1" || c.Query("unconfirmed") == "true",
		Raw:         c.Query("raw") == "1" || c.Query("raw") == "true",
		Script:      c.Query("script") == "1" || c.Query("script") == "true",
		TxHashOnly:  c.Query("txHashOnly") == "1" || c.Query("txHashOnly") == "true",
	}
}

// addressTxos ← GET /addressTxos/{address}?txHashOnly,raw,unspent,unconfirmed,script
func (s *Server) addressTxos(c *gin.Context) {
	address := c.Param("address")
	rows, err := s.engine.AddressTxos(address, addressTxoOptionsFromQuery(c, 0))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

// addressTxosSince ← GET /addressTxosSince/{sinceBlock}/{address}
func (s *Server) addressTxosSince(c *gin.Context) {
	address := c.Param("address")
	sinceBlock, err := strconv.ParseInt(c.Param("sinceBlock"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sinceBlock must be an integer"})
		return
	}
	rows, err := s.engine.AddressTxos(address, addressTxoOptionsFromQuery(c, sinceBlock))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, rows)
}

// getTransaction ← GET /getTransaction/{id}, a passthrough to the remote
// node's verbose getrawtransaction response.
func (s *Server) getTransaction(c *gin.Context) {
	raw, err := s.engine.Transaction(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

// getTransactionProof ← GET /getTransactionProof/{id}
func (s *Server) getTransactionProof(c *gin.Context) {
	proof, err := s.engine.TransactionProof(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, proof)
}

// outpointSpend ← GET /outpointSpend/{txid}/{vout}?raw,unconfirmed
func (s *Server) outpointSpend(c *gin.Context) {
	vout, err := strconv.ParseUint(c.Param("vout"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "vout must be a non-negative integer"})
		return
	}
	raw := c.Query("raw") == "1" || c.Query("raw") == "true"
	unconfirmed := c.Query("unconfirmed") == "1" || c.Query("unconfirmed") == "true"

	result, err := s.engine.OutpointSpend(c.Param("txid"), vout, raw, unconfirmed)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// outpointSpends ← POST /outpointSpends
func (s *Server) outpointSpends(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	raw := c.Query("raw") == "1" || c.Query("raw") == "true"
	unconfirmed := c.Query("unconfirmed") == "1" || c.Query("unconfirmed") == "true"

	results, err := s.engine.OutpointSpends(body, raw, unconfirmed)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, results)
}

// sendRawTransaction ← POST /sendRawTransaction. Matches httpserver.cpp's
// sendRawTransaction: the request body itself is the raw hex transaction,
// and the reply is the bare txid as text/plain, not a JSON envelope.
func (s *Server) sendRawTransaction(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil || len(body) == 0 {
		c.String(http.StatusBadRequest, "rawtx body is required")
		return
	}
	rawtx := strings.TrimSpace(string(body))
	txid, err := s.engine.SendRawTransaction(rawtx)
	if err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	c.String(http.StatusOK, txid)
}

// blocks ← GET /blocks?limit=N
func (s *Server) blocks(c *gin.Context) {
	limit := 0
	if l := c.Query("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer"})
			return
		}
		limit = n
	}
	summaries, err := s.engine.Blocks(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocks": summaries})
}

// block ← GET /block/{hash}
func (s *Server) block(c *gin.Context) {
	blk, err := s.engine.BlockByHash(c.Param("hash"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, blk)
}

// blockTxs ← GET /blocktxs/{hash}/{page}
func (s *Server) blockTxs(c *gin.Context) {
	page, err := strconv.Atoi(c.Param("page"))
	if err != nil || page < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "page must be a non-negative integer"})
		return
	}
	result, err := s.engine.BlockTransactions(c.Param("hash"), page)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// blocksByDate ← GET /blocksbydate?start=T&end=T
func (s *Server) blocksByDate(c *gin.Context) {
	start, err := strconv.ParseInt(c.Query("start"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "start must be a unix timestamp"})
		return
	}
	end, err := strconv.ParseInt(c.Query("end"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end must be a unix timestamp"})
		return
	}
	summaries, err := s.engine.BlocksByDate(start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocks": summaries})
}

// mempool ← GET /mempool
func (s *Server) mempool(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"txids": s.engine.Mempool()})
}

// sync ← GET /sync
func (s *Server) sync(c *gin.Context) {
	status, err := s.engine.Sync()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, status)
}
