package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"agent-launchpad/internal/curve"
	"agent-launchpad/internal/orders"
	"agent-launchpad/internal/solana"
	"agent-launchpad/internal/storage"
)

// Server exposes the curve and order engines over HTTP.
type Server struct {
	addr   string
	curves *curve.Coordinator
	orders *orders.Service
	trades storage.TradeStore
	fills  storage.OrderFillStore
	logger *zap.Logger
}

// Options configures a Server.
type Options struct {
	Addr        string
	Coordinator *curve.Coordinator
	Orders      *orders.Service
	Trades      storage.TradeStore
	Fills       storage.OrderFillStore
	Logger      *zap.Logger
}

// NewServer creates an API server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		addr:   opts.Addr,
		curves: opts.Coordinator,
		orders: opts.Orders,
		trades: opts.Trades,
		fills:  opts.Fills,
		logger: logger,
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("POST /curves", s.handleLaunchCurve)
	mux.HandleFunc("GET /curves/{curveID}", s.handleGetCurve)
	mux.HandleFunc("POST /curves/{curveID}/quote-buy", s.handleQuoteBuy)
	mux.HandleFunc("POST /curves/{curveID}/quote-sell", s.handleQuoteSell)
	mux.HandleFunc("POST /curves/{curveID}/buy", s.handleBuy)
	mux.HandleFunc("POST /curves/{curveID}/sell", s.handleSell)
	mux.HandleFunc("GET /curves/{curveID}/trades", s.handleCurveTrades)

	mux.HandleFunc("POST /orders", s.handleCreateOrder)
	mux.HandleFunc("GET /orders", s.handleListOrders)
	mux.HandleFunc("GET /orders/{orderID}", s.handleGetOrder)
	mux.HandleFunc("DELETE /orders/{orderID}", s.handleCancelOrder)
	mux.HandleFunc("GET /orders/{orderID}/fills", s.handleOrderFills)

	return mux
}

// Start runs the HTTP server until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

type launchCurveRequest struct {
	AgentID   string `json:"agentId"`
	TokenMint string `json:"tokenMint"`
}

func (s *Server) handleLaunchCurve(w http.ResponseWriter, r *http.Request) {
	var req launchCurveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AgentID == "" {
		s.writeError(w, http.StatusBadRequest, "agentId is required")
		return
	}
	if err := solana.ValidateAddress(req.TokenMint); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid token mint: "+err.Error())
		return
	}

	cs, err := s.curves.Launch(r.Context(), req.AgentID, req.TokenMint)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, cs)
}

func (s *Server) handleGetCurve(w http.ResponseWriter, r *http.Request) {
	cs, err := s.curves.GetCurve(r.Context(), r.PathValue("curveID"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, cs)
}

type quoteRequest struct {
	Amount int64 `json:"amount"`
}

func (s *Server) handleQuoteBuy(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	quote, err := s.curves.QuoteBuy(r.Context(), r.PathValue("curveID"), req.Amount)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, quote)
}

func (s *Server) handleQuoteSell(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	quote, err := s.curves.QuoteSell(r.Context(), r.PathValue("curveID"), req.Amount)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, quote)
}

type tradeRequest struct {
	Trader      string `json:"trader"`
	Amount      int64  `json:"amount"`
	TxSignature string `json:"txSignature"`
}

func (s *Server) decodeTradeRequest(w http.ResponseWriter, r *http.Request) (curve.TradeRequest, bool) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return curve.TradeRequest{}, false
	}
	if err := solana.ValidateAddress(req.Trader); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid trader address: "+err.Error())
		return curve.TradeRequest{}, false
	}
	// Program-derived addresses cannot sign a settlement.
	if !solana.IsOnCurve(req.Trader) {
		s.writeError(w, http.StatusBadRequest, "trader address is not a wallet address")
		return curve.TradeRequest{}, false
	}
	if err := solana.ValidateSignature(req.TxSignature); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid tx signature: "+err.Error())
		return curve.TradeRequest{}, false
	}
	return curve.TradeRequest{
		CurveID:     r.PathValue("curveID"),
		Trader:      req.Trader,
		Amount:      req.Amount,
		TxSignature: req.TxSignature,
	}, true
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeTradeRequest(w, r)
	if !ok {
		return
	}

	trade, err := s.curves.ApplyBuy(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, trade)
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeTradeRequest(w, r)
	if !ok {
		return
	}

	trade, err := s.curves.ApplySell(r.Context(), req)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, trade)
}

func (s *Server) handleCurveTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := s.trades.GetByCurveID(r.Context(), r.PathValue("curveID"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, trades)
}

type createOrderRequest struct {
	AgentID        string  `json:"agentId"`
	TokenMint      string  `json:"tokenMint"`
	OrderType      string  `json:"orderType"`
	EntryPrice     float64 `json:"entryPrice"`
	Amount         float64 `json:"amount"`
	TriggerPrice   float64 `json:"triggerPrice"`
	TriggerPercent float64 `json:"triggerPercent"`
	ExpiresInMs    int64   `json:"expiresInMs"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.AgentID == "" {
		s.writeError(w, http.StatusBadRequest, "agentId is required")
		return
	}
	if err := solana.ValidateAddress(req.TokenMint); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid token mint: "+err.Error())
		return
	}

	o, err := s.orders.Create(r.Context(), orders.CreateParams{
		AgentID:        req.AgentID,
		TokenMint:      req.TokenMint,
		OrderType:      req.OrderType,
		EntryPrice:     req.EntryPrice,
		Amount:         req.Amount,
		TriggerPrice:   req.TriggerPrice,
		TriggerPercent: req.TriggerPercent,
		ExpiresIn:      time.Duration(req.ExpiresInMs) * time.Millisecond,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, o)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agentId")
	if agentID == "" {
		s.writeError(w, http.StatusBadRequest, "agentId query parameter is required")
		return
	}
	status := r.URL.Query().Get("status")

	list, err := s.orders.List(r.Context(), agentID, status)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := s.orders.Get(r.Context(), r.PathValue("orderID"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, o)
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	if err := s.orders.Cancel(r.Context(), r.PathValue("orderID")); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleOrderFills(w http.ResponseWriter, r *http.Request) {
	fills, err := s.fills.GetByOrderID(r.Context(), r.PathValue("orderID"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, fills)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// writeDomainError maps sentinel errors from the engines onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, curve.ErrInvalidAmount),
		errors.Is(err, curve.ErrSupplyExceeded),
		errors.Is(err, curve.ErrInsufficientTokens),
		errors.Is(err, orders.ErrInvalidOrder),
		errors.Is(err, storage.ErrInvalidInput):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, curve.ErrGraduated),
		errors.Is(err, curve.ErrDuplicateSignature),
		errors.Is(err, orders.ErrNotActive),
		errors.Is(err, storage.ErrDuplicateKey),
		errors.Is(err, storage.ErrStateConflict),
		errors.Is(err, storage.ErrVersionConflict):
		s.writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, curve.ErrUnconfirmedTransaction),
		errors.Is(err, curve.ErrAmountMismatch):
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error("internal error", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}
