package rpc

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"escrowd/core/types"
	"escrowd/native/ledger"
	"escrowd/native/market"
	"escrowd/native/params"
	"escrowd/native/payments"
)

// handlerFunc processes a decoded JSON-RPC request and returns a result or a
// typed error.
type handlerFunc func(req *RPCRequest) (interface{}, *RPCError)

// Server exposes the settlement engines over JSON-RPC with a small REST
// sidecar for health and metrics.
type Server struct {
	market   *market.Engine
	payments *payments.Engine
	ledger   *ledger.Engine
	params   *params.Store
	logger   *slog.Logger

	handlers map[string]handlerFunc

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
	ratePerMn float64
	burst     int
}

// Config bundles the collaborators a server needs.
type Config struct {
	Market             *market.Engine
	Payments           *payments.Engine
	Ledger             *ledger.Engine
	Params             *params.Store
	Logger             *slog.Logger
	RateLimitPerMinute float64
	RateLimitBurst     int
}

// NewServer wires the RPC handler table against the supplied engines.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		market:    cfg.Market,
		payments:  cfg.Payments,
		ledger:    cfg.Ledger,
		params:    cfg.Params,
		logger:    logger,
		limiters:  make(map[string]*rate.Limiter),
		ratePerMn: cfg.RateLimitPerMinute,
		burst:     cfg.RateLimitBurst,
	}
	s.handlers = map[string]handlerFunc{
		"market_createListing":   s.handleMarketCreateListing,
		"market_updateListing":   s.handleMarketUpdateListing,
		"market_cancelListing":   s.handleMarketCancelListing,
		"market_getListing":      s.handleMarketGetListing,
		"market_purchase":        s.handleMarketPurchase,
		"market_getPurchase":     s.handleMarketGetPurchase,
		"market_markShipped":     s.handleMarketMarkShipped,
		"market_confirmDelivery": s.handleMarketConfirmDelivery,
		"market_fileDispute":     s.handleMarketFileDispute,
		"market_resolveDispute":  s.handleMarketResolveDispute,

		"payments_create":          s.handlePaymentsCreate,
		"payments_get":             s.handlePaymentsGet,
		"payments_history":         s.handlePaymentsHistory,
		"payments_confirmDelivery": s.handlePaymentsConfirmDelivery,
		"payments_requestRefund":   s.handlePaymentsRequestRefund,
		"payments_processRefund":   s.handlePaymentsProcessRefund,
		"payments_resolveDispute":  s.handlePaymentsResolveDispute,

		"ledger_balance":          s.handleLedgerBalance,
		"ledger_withdraw":         s.handleLedgerWithdraw,
		"ledger_platformBalance":  s.handleLedgerPlatformBalance,
		"ledger_withdrawPlatform": s.handleLedgerWithdrawPlatform,

		"params_setFeeBps":            s.handleParamsSetFeeBps,
		"params_getFeeBps":            s.handleParamsGetFeeBps,
		"params_transferAdmin":        s.handleParamsTransferAdmin,
		"params_setTreasury":          s.handleParamsSetTreasury,
		"params_setEscrowTimeout":     s.handleParamsSetEscrowTimeout,
		"params_addSupportedAsset":    s.handleParamsAddSupportedAsset,
		"params_removeSupportedAsset": s.handleParamsRemoveSupportedAsset,
		"params_supportedAssets":      s.handleParamsSupportedAssets,
	}
	return s
}

// Router assembles the HTTP routes: JSON-RPC on /rpc, health and Prometheus
// metrics alongside.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.With(s.rateLimit).Post("/rpc", s.handleRPC)
	return r
}

// ListenAndServe runs the server until the context is cancelled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if s.ratePerMn <= 0 {
			next.ServeHTTP(w, req)
			return
		}
		limiter := s.obtainLimiter(clientID(req))
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, req)
	})
}

func (s *Server) obtainLimiter(id string) *rate.Limiter {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	if limiter, ok := s.limiters[id]; ok {
		return limiter
	}
	perSecond := s.ratePerMn / 60.0
	if perSecond <= 0 {
		perSecond = 1
	}
	burst := s.burst
	if burst <= 0 {
		burst = 1
	}
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	s.limiters[id] = limiter
	return limiter
}

func clientID(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req RPCRequest
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "parse_error", err.Error())
		return
	}
	method := strings.TrimSpace(req.Method)
	handler, ok := s.handlers[method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method_not_found", method)
		return
	}
	result, rpcErr := handler(&req)
	if rpcErr != nil {
		s.logger.Warn("rpc call failed", "method", method, "code", rpcErr.Code, "message", rpcErr.Message)
		writeError(w, statusForCode(rpcErr.Code), req.ID, rpcErr.Code, rpcErr.Message, rpcErr.Data)
		return
	}
	writeResult(w, req.ID, result)
}

func statusForCode(code int) int {
	switch code {
	case codeParseError, codeInvalidRequest, codeInvalidParams:
		return http.StatusBadRequest
	case codeNotAuthorized:
		return http.StatusForbidden
	case codeNotFound:
		return http.StatusNotFound
	case codeInvalidState, codeConflict:
		return http.StatusConflict
	case codePayment:
		return http.StatusPaymentRequired
	case codeMethodNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeResult(w http.ResponseWriter, id, result interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(RPCResponse{JSONRPC: "2.0", ID: id, Result: result})
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(RPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &RPCError{Code: code, Message: message, Data: data},
	})
}

func decodeSingleParam(req *RPCRequest, out interface{}) *RPCError {
	if len(req.Params) != 1 {
		return &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: "exactly one parameter object expected"}
	}
	if err := json.Unmarshal(req.Params[0], out); err != nil {
		return &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: err.Error()}
	}
	return nil
}

func parseAddressParam(field, value string) (types.Address, *RPCError) {
	var addr types.Address
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: fmt.Sprintf("%s: %v", field, err)}
	}
	if len(raw) != len(addr) {
		return addr, &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: fmt.Sprintf("%s must be a %d-byte hex address", field, len(addr))}
	}
	copy(addr[:], raw)
	return addr, nil
}

func parseAmountParam(field, value string) (*big.Int, *RPCError) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, &RPCError{Code: codeInvalidParams, Message: "invalid_params", Data: fmt.Sprintf("%s must be a base-10 integer", field)}
	}
	return amount, nil
}

func formatAddress(addr types.Address) string {
	return "0x" + hex.EncodeToString(addr[:])
}

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}
