// internal/app/features/auditlog/auditlog.go
package auditlog

import (
	"context"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	errorsfeature "github.com/dalemusser/voxsecure/internal/app/features/errors"
	"github.com/dalemusser/voxsecure/internal/app/store/audit"
	"github.com/dalemusser/voxsecure/internal/app/system/apicors"
	"github.com/dalemusser/voxsecure/internal/app/system/auth"
	"github.com/dalemusser/voxsecure/internal/app/system/jsonutil"
	"github.com/dalemusser/voxsecure/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const pageSize = 50

// Store reads audit events. *audit.Store satisfies it.
type Store interface {
	Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Event, error)
	CountByFilter(ctx context.Context, filter audit.QueryFilter) (int64, error)
}

// Handler provides audit log handlers.
type Handler struct {
	auditStore Store
	errLog     *errorsfeature.ErrorLogger
	logger     *zap.Logger
}

// NewHandler creates a new audit log Handler.
func NewHandler(auditStore Store, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		auditStore: auditStore,
		errLog:     errLog,
		logger:     logger,
	}
}

// listItem represents a single audit event.
type listItem struct {
	ID            string            `json:"id"`
	Timestamp     time.Time         `json:"timestamp"`
	Category      string            `json:"category"`
	EventType     string            `json:"event_type"`
	ProfileID     string            `json:"profile_id,omitempty"`
	Email         string            `json:"email,omitempty"`
	IP            string            `json:"ip,omitempty"`
	Success       bool              `json:"success"`
	FailureReason string            `json:"failure_reason,omitempty"`
	Details       map[string]string `json:"details,omitempty"`
}

// listData is one page of the audit log.
type listData struct {
	Items []listItem `json:"items"`

	// Filters
	Category  string `json:"category,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Email     string `json:"email,omitempty"`
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Timezone  string `json:"tz,omitempty"`

	// Pagination
	Page       int   `json:"page"`
	TotalPages int   `json:"total_pages"`
	Total      int64 `json:"total"`
	HasPrev    bool  `json:"has_prev"`
	HasNext    bool  `json:"has_next"`
}

// eventTypesForCategory returns the event types for a given category.
// If category is empty, returns all event types.
func eventTypesForCategory(category string) []string {
	enrollmentEvents := []string{
		audit.EventEnrollmentSucceeded,
		audit.EventEnrollmentRejected,
		audit.EventEnrollmentFailed,
	}
	sessionEvents := []string{
		audit.EventSessionStarted,
		audit.EventSessionEnded,
	}

	switch category {
	case audit.CategoryEnrollment:
		return enrollmentEvents
	case audit.CategorySession:
		return sessionEvents
	case "":
		all := make([]string, 0, len(enrollmentEvents)+len(sessionEvents))
		all = append(all, enrollmentEvents...)
		all = append(all, sessionEvents...)
		return all
	default:
		return nil
	}
}

// Routes returns a chi.Router with audit log routes mounted.
// Authentication is via API key, like the attempt listing.
func Routes(h *Handler, apiKey string, allowedOrigins []string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(apicors.MiddlewareWithOrigins(allowedOrigins...))
	r.Use(auth.APIKeyAuth(apiKey, logger))

	r.Get("/", h.list)

	return r
}

// list returns the audit log with filtering and pagination.
//
// Query parameters: category, event_type, email, start_date and end_date
// (YYYY-MM-DD, interpreted in tz, default UTC), page (1-based).
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	category := strings.TrimSpace(q.Get("category"))
	eventType := strings.TrimSpace(q.Get("event_type"))
	email := strings.TrimSpace(q.Get("email"))
	startDate := strings.TrimSpace(q.Get("start_date"))
	endDate := strings.TrimSpace(q.Get("end_date"))
	tzParam := strings.TrimSpace(q.Get("tz"))

	if category != "" && eventTypesForCategory(category) == nil {
		jsonutil.BadRequest(w, "Unknown category")
		return
	}
	if eventType != "" && !slices.Contains(eventTypesForCategory(category), eventType) {
		jsonutil.BadRequest(w, "Unknown event type for category")
		return
	}

	page := 1
	if p, err := strconv.Atoi(q.Get("page")); err == nil && p > 0 {
		page = p
	}

	loc := time.UTC
	if tzParam != "" {
		parsedLoc, err := time.LoadLocation(tzParam)
		if err != nil {
			jsonutil.BadRequest(w, "Unknown time zone")
			return
		}
		loc = parsedLoc
	}

	filter := audit.QueryFilter{
		Email:     email,
		Category:  category,
		EventType: eventType,
		Limit:     pageSize,
		Offset:    int64((page - 1) * pageSize),
	}

	if startDate != "" {
		t, err := time.ParseInLocation("2006-01-02", startDate, loc)
		if err != nil {
			jsonutil.BadRequest(w, "start_date must be YYYY-MM-DD")
			return
		}
		filter.StartTime = &t
	}
	if endDate != "" {
		t, err := time.ParseInLocation("2006-01-02", endDate, loc)
		if err != nil {
			jsonutil.BadRequest(w, "end_date must be YYYY-MM-DD")
			return
		}
		// End of day
		endOfDay := t.Add(24*time.Hour - time.Second)
		filter.EndTime = &endOfDay
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	events, err := h.auditStore.Query(ctx, filter)
	if err != nil {
		h.errLog.Log(r, "failed to query audit events", err)
		jsonutil.InternalError(w, "Failed to load audit log")
		return
	}

	total, err := h.auditStore.CountByFilter(ctx, filter)
	if err != nil {
		h.logger.Warn("failed to count audit events", zap.Error(err))
		total = int64(len(events))
	}

	items := make([]listItem, 0, len(events))
	for _, e := range events {
		item := listItem{
			ID:            e.ID.Hex(),
			Timestamp:     e.CreatedAt,
			Category:      e.Category,
			EventType:     e.EventType,
			Email:         e.Email,
			IP:            e.IP,
			Success:       e.Success,
			FailureReason: e.FailureReason,
			Details:       e.Details,
		}
		if e.ProfileID != nil {
			item.ProfileID = e.ProfileID.Hex()
		}
		items = append(items, item)
	}

	totalPages := int((total + pageSize - 1) / pageSize)
	if totalPages < 1 {
		totalPages = 1
	}

	jsonutil.OK(w, listData{
		Items:      items,
		Category:   category,
		EventType:  eventType,
		Email:      email,
		StartDate:  startDate,
		EndDate:    endDate,
		Timezone:   tzParam,
		Page:       page,
		TotalPages: totalPages,
		Total:      total,
		HasPrev:    page > 1,
		HasNext:    page < totalPages,
	})
}

