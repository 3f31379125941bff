// Package attemptsapi exposes the login-attempt audit trail to operators.
//
// Endpoints (API key required):
//   - GET /api/attempts - List attempts, newest first
//   - GET /api/attempts/summary - Count attempts per outcome
//
// Attempts are read-only here; they are written only by the login flow.
package attemptsapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	errorsfeature "github.com/dalemusser/voxsecure/internal/app/features/errors"
	attemptstore "github.com/dalemusser/voxsecure/internal/app/store/attempts"
	"github.com/dalemusser/voxsecure/internal/app/system/jsonutil"
	"github.com/dalemusser/voxsecure/internal/app/system/normalize"
	"github.com/dalemusser/voxsecure/internal/app/system/timeouts"
	"github.com/dalemusser/voxsecure/internal/domain/models"
	"go.uber.org/zap"
)

// Store reads attempts. *attemptstore.Store satisfies it.
type Store interface {
	Query(ctx context.Context, f attemptstore.Filter) ([]models.LoginAttempt, int64, error)
	CountByOutcome(ctx context.Context, since time.Time) (map[models.Outcome]int64, error)
}

// Handler handles attempt listing requests.
type Handler struct {
	store  Store
	errLog *errorsfeature.ErrorLogger
	logger *zap.Logger
}

// NewHandler creates a new attemptsapi handler.
func NewHandler(store Store, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{store: store, errLog: errLog, logger: logger}
}

// ListResponse is one page of attempts.
type ListResponse struct {
	Attempts []models.LoginAttempt `json:"attempts"`
	Total    int64                 `json:"total"`
	Limit    int64                 `json:"limit"`
	Offset   int64                 `json:"offset"`
}

// SummaryResponse counts attempts per outcome.
type SummaryResponse struct {
	Since  *time.Time               `json:"since,omitempty"`
	Counts map[models.Outcome]int64 `json:"counts"`
	Total  int64                    `json:"total"`
}

// ListHandler handles GET /api/attempts.
//
// Query parameters (all optional):
//
//	email    exact address, normalized before matching
//	outcome  one of not-found, voice-mismatch, passphrase-mismatch, success, internal-error
//	since    RFC 3339 lower bound (inclusive)
//	until    RFC 3339 upper bound (exclusive)
//	limit    page size, default 50, capped at 500
//	offset   number of attempts to skip
func (h *Handler) ListHandler(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	attempts, total, err := h.store.Query(ctx, f)
	if err != nil {
		h.errLog.Log(r, "failed to query login attempts", err)
		jsonutil.InternalError(w, "Failed to load attempts")
		return
	}

	// Return empty array instead of null if no attempts match
	if attempts == nil {
		attempts = []models.LoginAttempt{}
	}

	limit := f.Limit
	if limit <= 0 {
		limit = attemptstore.DefaultLimit
	}
	if limit > attemptstore.MaxLimit {
		limit = attemptstore.MaxLimit
	}

	h.logger.Debug("login attempts listed",
		zap.String("email", f.Email),
		zap.String("outcome", string(f.Outcome)),
		zap.Int("count", len(attempts)),
	)

	jsonutil.OK(w, ListResponse{Attempts: attempts, Total: total, Limit: limit, Offset: f.Offset})
}

// SummaryHandler handles GET /api/attempts/summary?since=RFC3339.
func (h *Handler) SummaryHandler(w http.ResponseWriter, r *http.Request) {
	since, err := parseTime(r, "since")
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	counts, err := h.store.CountByOutcome(ctx, since)
	if err != nil {
		h.errLog.Log(r, "failed to count login attempts", err)
		jsonutil.InternalError(w, "Failed to count attempts")
		return
	}

	resp := SummaryResponse{Counts: counts}
	for _, n := range counts {
		resp.Total += n
	}
	if !since.IsZero() {
		resp.Since = &since
	}
	jsonutil.OK(w, resp)
}

func parseFilter(r *http.Request) (attemptstore.Filter, error) {
	q := r.URL.Query()
	f := attemptstore.Filter{Email: normalize.QueryParam(q.Get("email"))}

	if o := normalize.QueryParam(q.Get("outcome")); o != "" {
		if !models.IsValidOutcome(o) {
			return f, fmt.Errorf("unknown outcome %q", o)
		}
		f.Outcome = models.Outcome(o)
	}

	var err error
	if f.Since, err = parseTime(r, "since"); err != nil {
		return f, err
	}
	if f.Until, err = parseTime(r, "until"); err != nil {
		return f, err
	}
	if f.Limit, err = parseCount(r, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = parseCount(r, "offset"); err != nil {
		return f, err
	}
	return f, nil
}

func parseTime(r *http.Request, key string) (time.Time, error) {
	v := normalize.QueryParam(r.URL.Query().Get(key))
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be an RFC 3339 timestamp", key)
	}
	return t.UTC(), nil
}

func parseCount(r *http.Request, key string) (int64, error) {
	v := normalize.QueryParam(r.URL.Query().Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return n, nil
}
