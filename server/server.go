package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"stablevault/native/oracle"
	"stablevault/native/swap"
	"stablevault/native/vault"
	"stablevault/observability"
	"stablevault/storage"
)

// Config defines HTTP server parameters.
type Config struct {
	ListenAddress string
	RateLimit     rate.Limit
	RateBurst     int
}

// Server hosts the vault's read and mutation endpoints.
type Server struct {
	cfg     Config
	engine  *vault.Engine
	history *storage.History
	auth    *Authenticator
	logger  *slog.Logger
	limiter *rate.Limiter
	metrics *observability.VaultMetricsRegistry
}

// New constructs a server over the supplied engine. history may be nil when
// receipts are not persisted.
func New(cfg Config, engine *vault.Engine, history *storage.History, auth *Authenticator, logger *slog.Logger) *Server {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = rate.Limit(10)
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		engine:  engine,
		history: history,
		auth:    auth,
		logger:  logger,
		limiter: rate.NewLimiter(cfg.RateLimit, cfg.RateBurst),
		metrics: observability.VaultMetrics(),
	}
}

// Handler assembles the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.throttle)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/vault", func(vr chi.Router) {
		vr.Get("/balances", s.handleBalances)
		vr.Get("/total", s.handleTotalValue)
		vr.Get("/price", s.handlePrice)
		vr.Get("/owner", s.handleOwner)
		vr.Get("/schedule", s.handleSchedule)
		vr.Get("/trades", s.handleTrades)
		vr.Get("/dividends", s.handleDividendHistory)

		// Open mutations: wrapping received native value and refreshing the
		// informational market quote.
		vr.Post("/wrap", s.handleWrap)
		vr.Post("/quote", s.handleQuote)

		vr.Group(func(gr chi.Router) {
			gr.Use(s.auth.Middleware)
			gr.Post("/rebalance", s.handleRebalance)
			gr.Post("/dividends", s.handleDistribute)
			gr.Post("/ownership", s.handleTransferOwnership)
			gr.Post("/close", s.handleClose)
		})
	})

	return otelhttp.NewHandler(r, "vaultd")
}

// ListenAndServe runs the HTTP server until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.ListenAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// failureReason maps engine errors onto stable machine-readable reasons and
// HTTP statuses.
func failureReason(err error) (string, int) {
	switch {
	case errors.Is(err, vault.ErrNotOwner):
		return "not_owner", http.StatusForbidden
	case errors.Is(err, vault.ErrZeroAddress):
		return "zero_address", http.StatusBadRequest
	case errors.Is(err, vault.ErrInvalidAmount):
		return "invalid_amount", http.StatusBadRequest
	case errors.Is(err, vault.ErrZeroTotalValue):
		return "zero_total_value", http.StatusConflict
	case errors.Is(err, vault.ErrNothingToTrade):
		return "nothing_to_trade", http.StatusConflict
	case errors.Is(err, vault.ErrScheduleNotDue):
		return "schedule_not_due", http.StatusConflict
	case errors.Is(err, vault.ErrScheduleNotConfigured):
		return "schedule_not_configured", http.StatusConflict
	case errors.Is(err, vault.ErrNothingToDistribute):
		return "nothing_to_distribute", http.StatusConflict
	case errors.Is(err, vault.ErrTransferFailed):
		return "transfer_failed", http.StatusBadGateway
	case errors.Is(err, vault.ErrNotProvisioned):
		return "not_provisioned", http.StatusServiceUnavailable
	case errors.Is(err, oracle.ErrInvalidPrice):
		return "invalid_price", http.StatusBadGateway
	case errors.Is(err, oracle.ErrStalePrice):
		return "stale_price", http.StatusBadGateway
	case errors.Is(err, swap.ErrInsufficientBalance):
		return "insufficient_balance", http.StatusConflict
	case errors.Is(err, swap.ErrApprovalFailure):
		return "approval_failure", http.StatusBadGateway
	case errors.Is(err, swap.ErrSwapFailure):
		return "swap_failure", http.StatusBadGateway
	case errors.Is(err, swap.ErrInvalidAmount):
		return "invalid_amount", http.StatusBadRequest
	default:
		return "internal", http.StatusInternalServerError
	}
}

func (s *Server) writeFailure(w http.ResponseWriter, operation string, err error, started time.Time) {
	reason, status := failureReason(err)
	s.metrics.ObserveOperation(operation, reason, started)
	s.logger.Warn("vault operation failed", "operation", operation, "reason", reason, "err", err)
	writeJSON(w, status, errorBody{Error: err.Error(), Reason: reason})
}

func (s *Server) writeSuccess(w http.ResponseWriter, operation string, started time.Time, payload any) {
	s.metrics.ObserveOperation(operation, "", started)
	writeJSON(w, http.StatusOK, payload)
}

func amountField(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func (s *Server) handleBalances(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"stable":   amountField(s.engine.StableBalance()),
		"volatile": amountField(s.engine.VolatileBalance()),
		"native":   amountField(s.engine.NativeBalance()),
	})
}

func (s *Server) handleTotalValue(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	total, err := s.engine.TotalValue()
	if err != nil {
		s.writeFailure(w, "total_value", err, started)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"totalValue": amountField(total)})
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	price, err := s.engine.AuthoritativePrice()
	if err != nil {
		s.writeFailure(w, "price", err, started)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"price": amountField(price)})
}

func (s *Server) handleOwner(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	owner, err := s.engine.Owner()
	if err != nil {
		s.writeFailure(w, "owner", err, started)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"owner": owner.Hex()})
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	due, err := s.engine.NextDividendTime()
	if err != nil {
		s.writeFailure(w, "schedule", err, started)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"nextDividendTime": due.UTC().Format(time.RFC3339)})
}

func historyLimit(r *http.Request) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	records, err := s.history.ListTrades(r.Context(), historyLimit(r))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error(), Reason: "internal"})
		return
	}
	payload := make([]map[string]string, 0, len(records))
	for _, record := range records {
		payload = append(payload, map[string]string{
			"id":        record.ID,
			"direction": record.Direction,
			"amountIn":  amountField(record.AmountIn),
			"amountOut": amountField(record.AmountOut),
			"createdAt": record.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleDividendHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	records, err := s.history.ListDividends(r.Context(), historyLimit(r))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error(), Reason: "internal"})
		return
	}
	payload := make([]map[string]string, 0, len(records))
	for _, record := range records {
		payload = append(payload, map[string]string{
			"id":        record.ID,
			"amount":    amountField(record.Amount),
			"createdAt": record.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleWrap(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	wrapped, err := s.engine.WrapNative()
	if err != nil {
		s.writeFailure(w, "wrap_native", err, started)
		return
	}
	s.writeSuccess(w, "wrap_native", started, map[string]string{"wrapped": amountField(wrapped)})
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	quote, err := s.engine.RefreshMarketQuote(r.Context())
	if err != nil {
		s.writeFailure(w, "refresh_quote", err, started)
		return
	}
	s.writeSuccess(w, "refresh_quote", started, map[string]string{"quote": amountField(quote)})
}

func (s *Server) caller(r *http.Request) (common.Address, bool) {
	return CallerFromContext(r.Context())
}

func (s *Server) handleRebalance(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	caller, ok := s.caller(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	result, err := s.engine.Rebalance(r.Context(), caller)
	if err != nil {
		s.writeFailure(w, "rebalance", err, started)
		return
	}
	s.writeSuccess(w, "rebalance", started, map[string]string{
		"direction":       string(result.Direction),
		"amountIn":        amountField(result.AmountIn),
		"amountOut":       amountField(result.AmountOut),
		"stableBalance":   amountField(result.StableBalance),
		"volatileBalance": amountField(result.VolatileBalance),
	})
}

func (s *Server) handleDistribute(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	caller, ok := s.caller(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	payout, err := s.engine.Distribute(caller)
	if err != nil {
		s.writeFailure(w, "distribute", err, started)
		return
	}
	s.writeSuccess(w, "distribute", started, map[string]string{"amount": amountField(payout)})
}

type ownershipRequest struct {
	NewOwner string `json:"newOwner"`
}

func (s *Server) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	caller, ok := s.caller(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	var req ownershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body", Reason: "bad_request"})
		return
	}
	if !common.IsHexAddress(req.NewOwner) {
		s.writeFailure(w, "transfer_ownership", vault.ErrZeroAddress, started)
		return
	}
	if err := s.engine.TransferOwnership(caller, common.HexToAddress(req.NewOwner)); err != nil {
		s.writeFailure(w, "transfer_ownership", err, started)
		return
	}
	s.writeSuccess(w, "transfer_ownership", started, map[string]string{"owner": common.HexToAddress(req.NewOwner).Hex()})
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	caller, ok := s.caller(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	stableSwept, volatileSwept, err := s.engine.CloseAccount(caller)
	if err != nil {
		s.writeFailure(w, "close_account", err, started)
		return
	}
	s.writeSuccess(w, "close_account", started, map[string]string{
		"stableSwept":   amountField(stableSwept),
		"volatileSwept": amountField(volatileSwept),
	})
}
