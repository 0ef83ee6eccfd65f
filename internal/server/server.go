// Package server exposes the orchestration operations over JSON/HTTP for the
// UI collaborator. It renders results and errors; all sequencing and failure
// semantics live in the market package.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"buymyroom/internal/config"
	"buymyroom/internal/hmacauth"
	"buymyroom/internal/market"
	"buymyroom/internal/txlog"
	"buymyroom/internal/units"
	"buymyroom/internal/wallet"
)

type Server struct {
	cfg      *config.AppConfig
	log      zerolog.Logger
	session  *wallet.Session
	queries  *market.Queries
	writes   *market.Writes
	purchase *market.Purchase
	journal  txlog.Store
	hmac     *hmacauth.Verifier
	metrics  *metricsRegistry

	httpServer  *http.Server
	rpcHealthFn func(context.Context) error
	dbHealthFn  func(context.Context) error
}

type Deps struct {
	Session  *wallet.Session
	Gateway  market.Gateway
	Queries  *market.Queries
	Writes   *market.Writes
	Purchase *market.Purchase
	Journal  txlog.Store
}

func NewServer(cfg *config.AppConfig, log zerolog.Logger, deps Deps) *Server {
	s := &Server{
		cfg:      cfg,
		log:      log,
		session:  deps.Session,
		queries:  deps.Queries,
		writes:   deps.Writes,
		purchase: deps.Purchase,
		journal:  deps.Journal,
		metrics:  newMetricsRegistry(),
		hmac: &hmacauth.Verifier{
			Secret:  cfg.Service.HMACSecret,
			MaxSkew: cfg.Service.HMACClockSkew,
		},
	}

	if checker, ok := deps.Gateway.(market.HealthChecker); ok {
		s.rpcHealthFn = checker.Ping
	}
	if checker, ok := deps.Journal.(interface{ Ping(context.Context) error }); ok {
		s.dbHealthFn = checker.Ping
	}

	s.httpServer = &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Service.HTTPPort),
		Handler:           s.router(),
		ReadHeaderTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Method(http.MethodGet, "/metrics", s.metrics.handler())

		r.Post("/session/connect", s.handleConnect)
		r.Get("/session", s.handleSession)

		r.Get("/houses", s.handleOwnedHouses)
		r.Get("/houses/{houseID}", s.handleHouseDetail)
		r.Get("/houses/{houseID}/owner", s.handleHouseOwner)
		r.Get("/listings", s.handleListings)
		r.Get("/balance", s.handleBalance)

		r.Group(func(w chi.Router) {
			w.Use(s.hmac.Middleware)
			w.Post("/airdrop", s.handleAirdrop)
			w.Post("/listings", s.handleListHouse)
			w.Post("/exchange", s.handleExchange)

			w.Post("/purchase/select", s.handlePurchaseSelect)
			w.Post("/purchase/request-confirmation", s.handlePurchaseRequestConfirmation)
			w.Post("/purchase/cancel", s.handlePurchaseCancel)
			w.Post("/purchase/confirm", s.handlePurchaseConfirm)
		})
		r.Get("/purchase", s.handlePurchaseState)
	})
	return r
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("api listening")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Request-Id") == "" {
			r.Header.Set("X-Request-Id", uuid.NewString())
		}
		next.ServeHTTP(w, r)
	})
}

// --- session ---

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	account, err := s.session.Connect(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"account": account})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"account": s.session.Account(),
		"state":   s.session.State().String(),
	})
}

// --- reads ---

func (s *Server) handleOwnedHouses(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account")
	if account == "" {
		account = s.session.Account()
	}
	houses, err := s.queries.FetchOwnedHouses(r.Context(), account)
	if err != nil {
		s.metrics.incQuery("owned", "failed")
		s.writeError(w, r, err)
		return
	}
	s.metrics.incQuery("owned", "ok")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"account": account, "houses": houses})
}

func (s *Server) handleListings(w http.ResponseWriter, r *http.Request) {
	listings, err := s.queries.FetchListings(r.Context())
	if err != nil {
		s.metrics.incQuery("listings", "failed")
		s.writeError(w, r, err)
		return
	}
	s.metrics.incQuery("listings", "ok")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"houses": listings})
}

func (s *Server) handleHouseDetail(w http.ResponseWriter, r *http.Request) {
	houseID, ok := s.houseIDParam(w, r)
	if !ok {
		return
	}
	info, err := s.queries.FetchHouseDetail(r.Context(), houseID)
	if err != nil {
		s.metrics.incQuery("detail", "failed")
		s.writeError(w, r, err)
		return
	}
	s.metrics.incQuery("detail", "ok")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"houseId":   info.HouseID,
		"owner":     info.Owner,
		"price":     info.Price.String(),
		"priceText": units.FromBaseUnits(info.Price),
		"isForSale": info.IsForSale,
	})
}

func (s *Server) handleHouseOwner(w http.ResponseWriter, r *http.Request) {
	houseID, ok := s.houseIDParam(w, r)
	if !ok {
		return
	}
	owner, err := s.queries.FetchHouseOwner(r.Context(), houseID)
	if err != nil {
		s.metrics.incQuery("owner", "failed")
		s.writeError(w, r, err)
		return
	}
	s.metrics.incQuery("owner", "ok")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"houseId": houseID, "owner": owner})
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account")
	if account == "" {
		account = s.session.Account()
	}
	balance, err := s.queries.FetchTokenBalance(r.Context(), account)
	if err != nil {
		s.metrics.incQuery("balance", "failed")
		s.writeError(w, r, err)
		return
	}
	s.metrics.incQuery("balance", "ok")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"account":     account,
		"balance":     balance.String(),
		"balanceText": units.FromBaseUnits(balance),
	})
}

// --- writes ---

func (s *Server) handleAirdrop(w http.ResponseWriter, r *http.Request) {
	s.journaledWrite(w, r, "airdrop", func(ctx context.Context) (market.Receipt, error) {
		return s.writes.ClaimAirdrop(ctx)
	})
}

func (s *Server) handleListHouse(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		HouseID int64  `json:"houseId"`
		Price   string `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json payload", http.StatusBadRequest)
		return
	}
	s.journaledWrite(w, r, "listing", func(ctx context.Context) (market.Receipt, error) {
		return s.writes.ListHouse(ctx, payload.HouseID, payload.Price)
	})
}

func (s *Server) handleExchange(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Amount string `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json payload", http.StatusBadRequest)
		return
	}
	s.journaledWrite(w, r, "exchange", func(ctx context.Context) (market.Receipt, error) {
		return s.writes.Exchange(ctx, payload.Amount)
	})
}

// --- purchase flow ---

func (s *Server) handlePurchaseSelect(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		HouseID int64 `json:"houseId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid json payload", http.StatusBadRequest)
		return
	}
	if payload.HouseID < 0 {
		s.writeError(w, r, market.ErrInvalidInput)
		return
	}
	if err := s.purchase.SelectHouse(uint64(payload.HouseID)); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondPurchaseState(w)
}

func (s *Server) handlePurchaseRequestConfirmation(w http.ResponseWriter, r *http.Request) {
	if err := s.purchase.RequestConfirmation(); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondPurchaseState(w)
}

func (s *Server) handlePurchaseCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.purchase.Cancel(); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.respondPurchaseState(w)
}

func (s *Server) handlePurchaseConfirm(w http.ResponseWriter, r *http.Request) {
	receipt, err := s.purchase.ConfirmPurchase(r.Context())
	state, houseID := s.purchase.State()
	s.metrics.setPurchaseState(int(state))
	if err != nil {
		s.metrics.incWrite("purchase", "failed")
		// the standing-allowance exposure is part of the contract with the UI
		s.writeErrorWithState(w, r, err, state, houseID)
		return
	}
	s.metrics.incWrite("purchase", "settled")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "settled",
		"txHash": receipt.TxHash,
		"state":  state.String(),
	})
}

func (s *Server) handlePurchaseState(w http.ResponseWriter, r *http.Request) {
	s.respondPurchaseState(w)
}

func (s *Server) respondPurchaseState(w http.ResponseWriter) {
	state, houseID := s.purchase.State()
	s.metrics.setPurchaseState(int(state))
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"state":   state.String(),
		"houseId": houseID,
	})
}

// journaledWrite runs one single-phase write. When the caller supplies an
// X-Idempotency-Key, a repeat of the same key within the submission window is
// answered from the journal without touching the chain again.
func (s *Server) journaledWrite(w http.ResponseWriter, r *http.Request, kind string, fn func(context.Context) (market.Receipt, error)) {
	ctx := r.Context()
	key := r.Header.Get("X-Idempotency-Key")
	if key != "" {
		if existing, _ := s.journal.Get(ctx, kind+":"+key); existing != nil {
			s.metrics.incReplay()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(existing.StatusCode)
			_, _ = w.Write(existing.Response)
			return
		}
	}

	receipt, err := fn(ctx)
	if err != nil {
		s.metrics.incWrite(kind, "failed")
		s.writeError(w, r, err)
		return
	}
	s.metrics.incWrite(kind, "settled")

	body, _ := json.Marshal(map[string]string{
		"status": "settled",
		"txHash": receipt.TxHash,
	})
	if key != "" {
		_ = s.journal.Save(ctx, kind+":"+key, txlog.Record{
			Kind:        kind,
			TxHash:      receipt.TxHash,
			StatusCode:  http.StatusCreated,
			Response:    body,
			SubmittedAt: time.Now(),
			ExpiresAt:   time.Now().Add(s.cfg.Service.SubmissionWindow),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_, _ = w.Write(body)
}

// --- helpers ---

func (s *Server) houseIDParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	raw := chi.URLParam(r, "houseID")
	houseID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		http.Error(w, "invalid house id", http.StatusBadRequest)
		return 0, false
	}
	return houseID, true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	s.log.Warn().
		Str("request_id", r.Header.Get("X-Request-Id")).
		Str("path", r.URL.Path).
		Err(err).
		Msg("request failed")
	s.writeJSON(w, statusFor(err), map[string]string{
		"error": err.Error(),
		"kind":  kindFor(err),
	})
}

func (s *Server) writeErrorWithState(w http.ResponseWriter, r *http.Request, err error, state market.PurchaseState, houseID uint64) {
	s.log.Warn().
		Str("request_id", r.Header.Get("X-Request-Id")).
		Str("path", r.URL.Path).
		Str("purchase_state", state.String()).
		Err(err).
		Msg("purchase failed")
	s.writeJSON(w, statusFor(err), map[string]interface{}{
		"error":   err.Error(),
		"kind":    kindFor(err),
		"state":   state.String(),
		"houseId": houseID,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, market.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, market.ErrPrecondition),
		errors.Is(err, market.ErrMissingHouseDetail):
		return http.StatusPreconditionFailed
	case errors.Is(err, market.ErrBusy),
		errors.Is(err, market.ErrBadState):
		return http.StatusConflict
	case errors.Is(err, wallet.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, wallet.ErrNoAccountSelected):
		return http.StatusConflict
	case errors.Is(err, market.ErrMalformedResponse),
		errors.Is(err, market.ErrWriteRejected),
		errors.Is(err, market.ErrApprovalFailed),
		errors.Is(err, market.ErrPurchaseFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// kindFor names the error family so the UI can branch without parsing text.
func kindFor(err error) string {
	switch {
	case errors.Is(err, market.ErrPurchaseAfterApproval):
		return "purchase_failed_after_approval"
	case errors.Is(err, market.ErrApprovalFailed):
		return "approval_failed"
	case errors.Is(err, market.ErrPurchaseFailed):
		return "purchase_failed"
	case errors.Is(err, market.ErrMissingHouseDetail):
		return "missing_house_detail"
	case errors.Is(err, market.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, market.ErrPrecondition):
		return "precondition_failed"
	case errors.Is(err, market.ErrBusy):
		return "busy"
	case errors.Is(err, market.ErrBadState):
		return "bad_state"
	case errors.Is(err, market.ErrMalformedResponse):
		return "malformed_response"
	case errors.Is(err, market.ErrWriteRejected):
		return "write_rejected"
	case errors.Is(err, wallet.ErrProviderUnavailable):
		return "provider_unavailable"
	case errors.Is(err, wallet.ErrNoAccountSelected):
		return "no_account_selected"
	default:
		return "internal"
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	overallHealthy := true

	rpcInfo := struct {
		Connected bool    `json:"connected"`
		LatencyMs float64 `json:"latency_ms"`
		Error     string  `json:"error,omitempty"`
	}{}

	if s.rpcHealthFn != nil {
		start := time.Now()
		rpcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.rpcHealthFn(rpcCtx); err != nil {
			rpcInfo.Connected = false
			rpcInfo.Error = err.Error()
			overallHealthy = false
		} else {
			rpcInfo.Connected = true
			rpcInfo.LatencyMs = float64(time.Since(start).Microseconds()) / 1000.0
		}
	} else {
		rpcInfo.Connected = true
	}

	dbInfo := struct {
		Connected bool   `json:"connected"`
		Error     string `json:"error,omitempty"`
	}{Connected: true}

	if s.dbHealthFn != nil {
		dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := s.dbHealthFn(dbCtx); err != nil {
			dbInfo.Connected = false
			dbInfo.Error = err.Error()
			overallHealthy = false
		}
	}

	status := "healthy"
	code := http.StatusOK
	if !overallHealthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	state, _ := s.purchase.State()
	s.writeJSON(w, code, map[string]interface{}{
		"status":         status,
		"rpc":            rpcInfo,
		"database":       dbInfo,
		"session":        s.session.State().String(),
		"purchase_state": state.String(),
	})
}
