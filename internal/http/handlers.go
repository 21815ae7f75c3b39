package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"finance/internal/core"
	applog "finance/internal/log"
)

const transactionNotFound = "Transaction not found."

type deleteResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	in, err := DecodeTransactionCreate(w, r)
	if err != nil {
		s.writeError(w, r, err, applog.OpCreate)
		return
	}

	created, err := s.svc.Create(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err, applog.OpCreate)
		return
	}
	NewJSONResponse().Body(created).Write(w)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	items, err := s.svc.List(r.Context())
	if err != nil {
		s.writeError(w, r, err, applog.OpList)
		return
	}
	if items == nil {
		items = []core.Transaction{}
	}
	NewJSONResponse().Body(items).Write(w)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r)
	if err != nil {
		s.writeError(w, r, err, applog.OpDelete)
		return
	}

	if err := s.svc.Delete(r.Context(), id); err != nil {
		s.writeError(w, r, err, applog.OpDelete)
		return
	}
	NewJSONResponse().Body(deleteResponse{OK: true, Message: "Transaction deleted successfully"}).Write(w)
}

// writeError maps domain errors to status codes. Only unexpected errors are
// logged at error level and their text never reaches the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error, op string) {
	logger := applog.FromContext(r.Context())
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidAmount):
		logger.DebugContext(r.Context(), "Rejected request",
			applog.FieldOperation, op,
			applog.FieldError, err)
		UnprocessableEntityError(err.Error()).Write(w)
	case errors.Is(err, core.ErrNotFound):
		NotFoundError(transactionNotFound).Write(w)
	default:
		applog.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err, op, applog.ErrorTypeDatabase,
			applog.NewFields().WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()))
		InternalServerError().Write(w)
	}
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks that the store answers within five seconds.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	code := http.StatusOK
	checks := map[string]string{"database": "ok"}

	if err := s.svc.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
		checks["database"] = "failed: " + err.Error()
		status = "not_ready"
		code = http.StatusServiceUnavailable
	}

	NewJSONResponse().Status(code).Body(map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics exposes in-process counters.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	requests := s.tracer.GetMetrics()
	limits := s.limiter.GetMetrics()
	detections := s.detector.GetMetrics()

	NewJSONResponse().Body(map[string]any{
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"requests": map[string]int64{
			"total":         requests.TotalRequests,
			"client_errors": requests.ClientErrors,
			"server_errors": requests.ServerErrors,
		},
		"rate_limit": map[string]int64{
			"hits":           limits.TotalHits,
			"active_clients": limits.ClientCount,
		},
		"security": map[string]int64{
			"suspicious_requests": detections.SuspiciousRequests,
		},
	}).Write(w)
}
