package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"sitegauge/internal/domain"
	"sitegauge/internal/ports"
	"sitegauge/internal/probe"
	"sitegauge/internal/workers/checkrunner"
)

// Callers hand us untrusted URLs; anything longer is rejected before the core
// ever sees it.
const maxURLLen = 2048

type ctxKey int

const apiKeyCtxKey ctxKey = iota

// Server exposes the check API. The synchronous path runs the same processor
// the background workers use.
type Server struct {
	checker    ports.Checker
	keys       ports.KeyRepository
	jobs       ports.JobRepository
	processor  checkrunner.CheckProcessor
	limiters   *keyLimiters
	adminToken string
	log        *zap.Logger
}

type Config struct {
	AdminToken string
	RateLimit  float64
	RateBurst  int
}

func New(checker ports.Checker, keys ports.KeyRepository, jobs ports.JobRepository, processor checkrunner.CheckProcessor, cfg Config, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		checker:    checker,
		keys:       keys,
		jobs:       jobs,
		processor:  processor,
		limiters:   newKeyLimiters(cfg.RateLimit, cfg.RateBurst),
		adminToken: cfg.AdminToken,
		log:        log,
	}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.correlate)

	r.Get("/healthz", s.handleHealthz)
	r.Post("/v1/keys", s.handleCreateKey)

	r.Group(func(r chi.Router) {
		r.Use(s.requireKey)
		r.With(s.rateLimit, s.chargeCredit).Post("/v1/check", s.handleCheck)
		r.Get("/v1/checks/{id}", s.handleGetCheck)
	})
	return r
}

// --- middleware ---

// correlate attaches a request id for log and response correlation.
func (s *Server) correlate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get("X-Api-Key")
		if raw == "" {
			s.writeError(w, r, http.StatusUnauthorized, "missing_api_key", "X-Api-Key header is required")
			return
		}
		key, err := s.keys.GetByKey(r.Context(), raw)
		if errors.Is(err, ports.ErrNotFound) {
			s.writeError(w, r, http.StatusUnauthorized, "invalid_api_key", "unknown API key")
			return
		}
		if err != nil {
			s.writeError(w, r, http.StatusInternalServerError, "internal", "key lookup failed")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), apiKeyCtxKey, key)))
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := keyFromCtx(r.Context())
		if !s.limiters.allow(key.ID) {
			s.writeError(w, r, http.StatusTooManyRequests, "rate_limited", "per-key rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// chargeCredit deducts one credit per check call, cache hit or not.
func (s *Server) chargeCredit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := keyFromCtx(r.Context())
		if _, err := s.keys.ChargeCredit(r.Context(), key.ID); err != nil {
			if errors.Is(err, ports.ErrNoCredits) {
				s.writeError(w, r, http.StatusPaymentRequired, "no_credits", "credit balance exhausted")
				return
			}
			s.writeError(w, r, http.StatusInternalServerError, "internal", "credit charge failed")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func keyFromCtx(ctx context.Context) domain.APIKey {
	key, _ := ctx.Value(apiKeyCtxKey).(domain.APIKey)
	return key
}

// --- handlers ---

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createKeyRequest struct {
	Name    string `json:"name"`
	Credits int    `json:"credits"`
}

func (s *Server) handleCreateKey(w http.ResponseWriter, r *http.Request) {
	if s.adminToken == "" || r.Header.Get("X-Admin-Token") != s.adminToken {
		s.writeError(w, r, http.StatusForbidden, "forbidden", "admin token required")
		return
	}
	var req createKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.Credits <= 0 {
		req.Credits = 100
	}
	key, err := s.keys.CreateKey(r.Context(), req.Name, req.Credits)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "internal", "key creation failed")
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]any{
		"id":      key.ID,
		"key":     key.Key,
		"name":    key.Name,
		"credits": key.Credits,
	})
}

type checkRequest struct {
	URL string `json:"url"`
}

type checkResponse struct {
	CheckID       string              `json:"check_id"`
	Status        domain.CheckStatus  `json:"status"`
	Cached        bool                `json:"cached"`
	CorrelationID string              `json:"correlation_id"`
	Result        *domain.ProbeResult `json:"result,omitempty"`
	Error         string              `json:"error,omitempty"`
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "bad_request", "invalid JSON body")
		return
	}
	if req.URL == "" {
		s.writeError(w, r, http.StatusBadRequest, "bad_request", "url is required")
		return
	}
	if len(req.URL) > maxURLLen {
		s.writeError(w, r, http.StatusBadRequest, "bad_request", "url is too long")
		return
	}

	// Cache first; a hit is still a charged call.
	cached, ok, err := s.checker.Cached(r.Context(), req.URL)
	if err != nil {
		s.writeProbeError(w, r, err)
		return
	}
	if ok {
		s.writeJSON(w, http.StatusOK, s.toResponse(w, cached, true))
		return
	}

	id, err := s.checker.Enqueue(r.Context(), req.URL)
	if err != nil {
		s.writeProbeError(w, r, err)
		return
	}

	if r.URL.Query().Get("async") == "true" {
		s.writeJSON(w, http.StatusAccepted, checkResponse{
			CheckID:       id,
			Status:        domain.CheckQueued,
			CorrelationID: w.Header().Get("X-Request-ID"),
		})
		return
	}

	// Blocking path: run the same processor the workers use.
	if err := checkrunner.ProcessInline(r.Context(), s.jobs, s.processor, id); err != nil {
		s.writeProbeError(w, r, err)
		return
	}
	check, err := s.checker.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "internal", "check lookup failed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.toResponse(w, check, false))
}

func (s *Server) handleGetCheck(w http.ResponseWriter, r *http.Request) {
	check, err := s.checker.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, ports.ErrNotFound) {
		s.writeError(w, r, http.StatusNotFound, "not_found", "no such check")
		return
	}
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, "internal", "check lookup failed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.toResponse(w, check, false))
}

// --- helpers ---

func (s *Server) toResponse(w http.ResponseWriter, check domain.Check, cached bool) checkResponse {
	return checkResponse{
		CheckID:       check.ID,
		Status:        check.Status,
		Cached:        cached,
		CorrelationID: w.Header().Get("X-Request-ID"),
		Result:        check.Result,
		Error:         check.Error,
	}
}

type errorResponse struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id"`
}

func (s *Server) writeProbeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, probe.ErrInvalidInput):
		s.writeError(w, r, http.StatusBadRequest, "invalid_url", err.Error())
	case errors.Is(err, probe.ErrSSRFBlocked):
		s.writeError(w, r, http.StatusUnprocessableEntity, "ssrf_blocked", err.Error())
	case errors.Is(err, probe.ErrTimeout):
		s.writeError(w, r, http.StatusGatewayTimeout, "timeout", err.Error())
	case errors.Is(err, probe.ErrNetwork):
		s.writeError(w, r, http.StatusBadGateway, "network_error", err.Error())
	default:
		s.log.Error("check failed", zap.Error(err))
		s.writeError(w, r, http.StatusInternalServerError, "internal", "check failed")
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	if status >= 500 {
		s.log.Warn("request error",
			zap.Int("status", status), zap.String("code", code),
			zap.String("path", r.URL.Path))
	}
	s.writeJSON(w, status, errorResponse{
		Code:          code,
		Message:       msg,
		CorrelationID: w.Header().Get("X-Request-ID"),
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("encode response", zap.Error(err))
	}
}

// Timeouts for the outer server; the probe's own deadline is much shorter,
// but the write timeout must cover a full synchronous redirect chain.
func NewHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
