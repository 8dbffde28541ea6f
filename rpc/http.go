// Package rpc exposes the ledger engines over a JSON-RPC 2.0 HTTP surface.
// Mutating methods require a bearer token; read methods are open.
package rpc

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sidekick/core/events"
	"sidekick/native/boost"
	"sidekick/native/dailyaction"
	"sidekick/native/escrow"
	"sidekick/native/transfer"
	"sidekick/observability"
	"sidekick/state"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeUnauthorized   = -32001
	codeServerError    = -32000
)

// Server dispatches JSON-RPC requests to the ledger engines.
type Server struct {
	ledger    *state.Ledger
	escrow    *escrow.Engine
	boost     *boost.Engine
	daily     *dailyaction.Tracker
	transfer  *transfer.Forwarder
	collector *events.Collector
	authToken string
	log       *slog.Logger

	httpServer *http.Server
}

// ServerDeps carries the wired engines handed to NewServer.
type ServerDeps struct {
	Ledger    *state.Ledger
	Escrow    *escrow.Engine
	Boost     *boost.Engine
	Daily     *dailyaction.Tracker
	Transfer  *transfer.Forwarder
	Collector *events.Collector
	AuthToken string
	Logger    *slog.Logger
}

// NewServer builds a server over the supplied engines.
func NewServer(deps ServerDeps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		ledger:    deps.Ledger,
		escrow:    deps.Escrow,
		boost:     deps.Boost,
		daily:     deps.Daily,
		transfer:  deps.Transfer,
		collector: deps.Collector,
		authToken: strings.TrimSpace(deps.AuthToken),
		log:       logger,
	}
}

// Start serves the RPC surface on addr until Stop is called.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	mux.Handle("/metrics", promhttp.Handler())
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Info("starting JSON-RPC server", "addr", addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Stop shuts the HTTP listener down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      int               `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	errObj := &RPCError{Code: code, Message: message}
	if data != nil {
		errObj.Data = data
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: errObj}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

// privilegedMethods require the bearer token because they mutate ledger
// state or engine configuration.
var privilegedMethods = map[string]bool{
	"escrow_createHolding":          true,
	"escrow_decide":                 true,
	"escrow_settle":                 true,
	"escrow_setBlockTime":           true,
	"escrow_setFeePercent":          true,
	"escrow_setFeeForGasAndAddress": true,
	"escrow_transferFromAdmin":      true,
	"escrow_transferWithFee":        true,
	"boost_boost":                   true,
	"boost_payTo":                   true,
	"boost_resetLeaderboard":        true,
	"boost_setSidekickPercentage":   true,
	"boost_togglePause":             true,
	"boost_setSidekickWallet":       true,
	"daily_perform":                 true,
	"transfer_send":                 true,
	"transfer_setFeePercentage":     true,
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required", nil)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "unable to read request body", err.Error())
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, nil, codeInvalidRequest, "request body required", nil)
		return
	}
	req := &RPCRequest{}
	if err := json.Unmarshal(body, req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload", err.Error())
		return
	}
	if req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version", req.JSONRPC)
		return
	}
	method := strings.TrimSpace(req.Method)
	if method == "" {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "method required", nil)
		return
	}

	if privilegedMethods[method] {
		if authErr := s.requireAuth(r); authErr != nil {
			observability.ModuleMetrics().ObserveError(method, fmt.Sprintf("%d", authErr.Code))
			writeError(w, http.StatusUnauthorized, req.ID, authErr.Code, authErr.Message, authErr.Data)
			return
		}
	}

	start := time.Now()
	handler, ok := s.router()[method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, fmt.Sprintf("unknown method %s", method), nil)
		return
	}
	result, rpcErr := handler(req)
	if rpcErr != nil {
		observability.ModuleMetrics().Observe(method, "error", time.Since(start))
		observability.ModuleMetrics().ObserveError(method, fmt.Sprintf("%d", rpcErr.Code))
		s.log.Warn("rpc request failed", "method", method, "code", rpcErr.Code, "message", rpcErr.Message)
		status := http.StatusBadRequest
		if rpcErr.Code == codeServerError {
			status = http.StatusOK
		}
		writeError(w, status, req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	observability.ModuleMetrics().Observe(method, "ok", time.Since(start))
	writeResult(w, req.ID, result)
}

type handlerFunc func(*RPCRequest) (interface{}, *RPCError)

func (s *Server) router() map[string]handlerFunc {
	return map[string]handlerFunc{
		"escrow_createHolding":          s.handleEscrowCreateHolding,
		"escrow_decide":                 s.handleEscrowDecide,
		"escrow_settle":                 s.handleEscrowSettle,
		"escrow_getHolding":             s.handleEscrowGetHolding,
		"escrow_getByChallengeId":       s.handleEscrowGetByChallengeID,
		"escrow_total":                  s.handleEscrowTotal,
		"escrow_redeemable":             s.handleEscrowRedeemable,
		"escrow_getInTimeRange":         s.handleEscrowGetInTimeRange,
		"escrow_config":                 s.handleEscrowConfig,
		"escrow_setBlockTime":           s.handleEscrowSetBlockTime,
		"escrow_setFeePercent":          s.handleEscrowSetFeePercent,
		"escrow_setFeeForGasAndAddress": s.handleEscrowSetFeeForGasAndAddress,
		"escrow_transferFromAdmin":      s.handleEscrowTransferFromAdmin,
		"escrow_transferWithFee":        s.handleEscrowTransferWithFee,
		"boost_boost":                   s.handleBoostBoost,
		"boost_payTo":                   s.handleBoostPayTo,
		"boost_resetLeaderboard":        s.handleBoostResetLeaderboard,
		"boost_getInTimeRange":          s.handleBoostGetInTimeRange,
		"boost_stats":                   s.handleBoostStats,
		"boost_winnerTotal":             s.handleBoostWinnerTotal,
		"boost_setSidekickPercentage":   s.handleBoostSetSidekickPercentage,
		"boost_togglePause":             s.handleBoostTogglePause,
		"boost_setSidekickWallet":       s.handleBoostSetSidekickWallet,
		"daily_perform":                 s.handleDailyPerform,
		"daily_uniqueInPeriod":          s.handleDailyUniqueInPeriod,
		"transfer_send":                 s.handleTransferSend,
		"transfer_setFeePercentage":     s.handleTransferSetFeePercentage,
		"transfer_stats":                s.handleTransferStats,
		"account_getBalance":            s.handleAccountGetBalance,
		"sidekick_getEvents":            s.handleGetEvents,
	}
}

func (s *Server) requireAuth(r *http.Request) *RPCError {
	if s.authToken == "" {
		return &RPCError{Code: codeUnauthorized, Message: "RPC authentication token not configured"}
	}
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing Authorization header"}
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return &RPCError{Code: codeUnauthorized, Message: "Authorization header must use Bearer scheme"}
	}
	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
		return &RPCError{Code: codeUnauthorized, Message: "invalid RPC credentials"}
	}
	return nil
}

func invalidParams(message string, data interface{}) *RPCError {
	return &RPCError{Code: codeInvalidParams, Message: message, Data: data}
}

func serverError(err error) *RPCError {
	return &RPCError{Code: codeServerError, Message: err.Error()}
}

func decodeParams(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) == 0 {
		return invalidParams("parameter object required", nil)
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return invalidParams("invalid parameter object", err.Error())
	}
	return nil
}

func parseAddress(value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimSpace(value)
	if !common.IsHexAddress(trimmed) {
		return addr, fmt.Errorf("invalid address %q", value)
	}
	parsed := common.HexToAddress(trimmed)
	copy(addr[:], parsed[:])
	return addr, nil
}

func formatAddress(addr [20]byte) string {
	return common.BytesToAddress(addr[:]).Hex()
}

func parseAmount(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount must be non-negative")
	}
	return amount, nil
}
