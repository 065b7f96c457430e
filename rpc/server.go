package rpc

import (
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reservecore/crypto"
	"reservecore/native/reserve"
	"reservecore/native/timelock"
	"reservecore/native/token"
)

// Server exposes the reserve engine over HTTP. The hosting environment owns
// caller authentication; request bodies carry the caller account verbatim.
type Server struct {
	engine *reserve.Engine
	lock   *timelock.Timelock
	log    *slog.Logger
	router chi.Router
}

// NewServer builds the HTTP surface around the engine. The timelock is
// optional; passing nil disables the admin queue endpoints.
func NewServer(engine *reserve.Engine, lock *timelock.Timelock, log *slog.Logger) *Server {
	s := &Server{engine: engine, lock: lock, log: log}
	s.router = s.routes()
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/curve", s.handleCurve)
		r.Get("/price", s.handlePrice)
		r.Get("/price/average", s.handleAveragePrice)
		r.Get("/estimate/cost", s.handleEstimateCost)
		r.Get("/estimate/output", s.handleEstimateOutput)
		r.Get("/loans/{account}", s.handleLoans)
		r.Get("/stabilizer", s.handleStabilizerStatus)

		r.Post("/purchase/exact-output", s.handlePurchaseExactOutput)
		r.Post("/purchase/exact-input", s.handlePurchaseExactInput)
		r.Post("/loans/mint", s.handleMintAgainstCollateral)
		r.Post("/loans/mint-debt", s.handleMintExactDebt)
		r.Post("/loans/redeem", s.handleRedeem)
		r.Post("/stabilizer/inflate", s.handleInflate)
		r.Post("/stabilizer/deflate", s.handleDeflate)

		if s.lock != nil {
			r.Post("/timelock/queue", s.handleTimelockQueue)
			r.Post("/timelock/execute", s.handleTimelockExecute)
			r.Post("/timelock/cancel", s.handleTimelockCancel)
		}
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(wrapped, r)
		s.log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

// --- encoding helpers ---

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps engine sentinel errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, reserve.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, reserve.ErrUnknownLoan):
		return http.StatusNotFound
	case errors.Is(err, reserve.ErrInvalidAmount),
		errors.Is(err, reserve.ErrInvalidDistribution),
		errors.Is(err, reserve.ErrCurveInversion):
		return http.StatusBadRequest
	case errors.Is(err, reserve.ErrExpired):
		return http.StatusRequestTimeout
	case errors.Is(err, reserve.ErrSlippageExceeded),
		errors.Is(err, reserve.ErrCurveAlreadyActive),
		errors.Is(err, reserve.ErrCurveInactive),
		errors.Is(err, reserve.ErrNotReadyToInflate),
		errors.Is(err, reserve.ErrNotReadyToDeflate):
		return http.StatusConflict
	case errors.Is(err, reserve.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, token.ErrInsufficientBalance),
		errors.Is(err, token.ErrInsufficientAllowance):
		return http.StatusPaymentRequired
	case errors.Is(err, timelock.ErrNotAdmin):
		return http.StatusForbidden
	case errors.Is(err, timelock.ErrNotQueued), errors.Is(err, timelock.ErrUnknownTarget):
		return http.StatusNotFound
	case errors.Is(err, timelock.ErrDelayNotMet),
		errors.Is(err, timelock.ErrTooEarly),
		errors.Is(err, timelock.ErrStale):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorResponse{Error: err.Error()})
}

func parseAmount(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, reserve.ErrInvalidAmount
	}
	return amount, nil
}

// parseOptionalAmount treats an absent field as no bound.
func parseOptionalAmount(value string) (*big.Int, error) {
	if value == "" {
		return nil, nil
	}
	return parseAmount(value)
}

// deadlineFrom converts a unix-seconds field; zero means no deadline.
func deadlineFrom(unix int64) time.Time {
	if unix == 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0).UTC()
}

func decodeBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func callerFrom(value string) (crypto.Address, error) {
	return crypto.DecodeAddress(value)
}
