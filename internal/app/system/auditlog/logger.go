// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dalemusser/voxsecure/internal/app/store/audit"
	"github.com/dalemusser/voxsecure/internal/app/system/network"
	"github.com/dalemusser/voxsecure/internal/app/system/timeouts"
	"github.com/dalemusser/voxsecure/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Logging destinations accepted by Config fields.
const (
	ModeAll = "all" // MongoDB + zap
	ModeDB  = "db"  // MongoDB only
	ModeLog = "log" // zap only
	ModeOff = "off" // disabled
)

// ValidMode reports whether m is a known destination.
func ValidMode(m string) bool {
	switch m {
	case ModeAll, ModeDB, ModeLog, ModeOff:
		return true
	}
	return false
}

// Config holds audit logging configuration.
type Config struct {
	// Enrollment controls logging for registration events.
	Enrollment string
	// Session controls logging for session start and end.
	Session string
}

// Store persists audit events. *audit.Store satisfies it.
type Store interface {
	Log(ctx context.Context, event audit.Event) error
}

// Logger provides convenience methods for logging audit events.
// It logs to MongoDB (via Store) and structured logs (via zap) as configured.
type Logger struct {
	store  Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store Store, zapLog *zap.Logger, config Config) *Logger {
	if zapLog == nil {
		zapLog = zap.NewNop()
	}
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}

	if event.ProfileID != nil {
		fields = append(fields, zap.String("profile_id", event.ProfileID.Hex()))
	}
	if event.Email != "" {
		fields = append(fields, zap.String("email", event.Email))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
// The write runs detached from ctx's cancellation with its own deadline, so
// a client hanging up does not drop the record. Failures are logged only.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	var setting string
	switch event.Category {
	case audit.CategoryEnrollment:
		setting = l.config.Enrollment
	case audit.CategorySession:
		setting = l.config.Session
	}
	if setting == "" {
		setting = ModeAll
	}

	if setting == ModeOff {
		return
	}

	if setting == ModeAll || setting == ModeLog {
		l.logToZap(event)
	}

	if (setting == ModeAll || setting == ModeDB) && l.store != nil {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.AuditWrite())
		defer cancel()
		if err := l.store.Log(wctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Enrollment Events ---

// EnrollmentSucceeded logs a completed registration.
func (l *Logger) EnrollmentSucceeded(ctx context.Context, r *http.Request, p models.UserProfile) {
	id := p.ID
	l.Log(ctx, audit.Event{
		Category:  audit.CategoryEnrollment,
		EventType: audit.EventEnrollmentSucceeded,
		ProfileID: &id,
		Email:     p.Email,
		IP:        network.GetClientIP(r),
		UserAgent: network.UserAgent(r),
		Success:   true,
		Details: map[string]string{
			"voiceprints": strconv.Itoa(p.VoiceprintCount()),
			"dimension":   strconv.Itoa(p.Dimension),
			"embedder":    p.Embedder,
		},
	})
}

// EnrollmentRejected logs a registration refused because of the caller's
// input: validation, duplicate email, unsupported audio.
func (l *Logger) EnrollmentRejected(ctx context.Context, r *http.Request, email, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryEnrollment,
		EventType:     audit.EventEnrollmentRejected,
		Email:         email,
		IP:            network.GetClientIP(r),
		UserAgent:     network.UserAgent(r),
		Success:       false,
		FailureReason: reason,
	})
}

// EnrollmentFailed logs a registration that failed on the server side.
func (l *Logger) EnrollmentFailed(ctx context.Context, r *http.Request, email, reason string) {
	l.Log(ctx, audit.Event{
		Category:      audit.CategoryEnrollment,
		EventType:     audit.EventEnrollmentFailed,
		Email:         email,
		IP:            network.GetClientIP(r),
		UserAgent:     network.UserAgent(r),
		Success:       false,
		FailureReason: reason,
	})
}

// --- Session Events ---

// SessionStarted logs a session issued after a successful voice login.
func (l *Logger) SessionStarted(ctx context.Context, r *http.Request, profileID primitive.ObjectID, email string) {
	l.Log(ctx, audit.Event{
		Category:  audit.CategorySession,
		EventType: audit.EventSessionStarted,
		ProfileID: &profileID,
		Email:     email,
		IP:        network.GetClientIP(r),
		UserAgent: network.UserAgent(r),
		Success:   true,
	})
}

// SessionEnded logs a logout.
// Accepts the string ID held in the session and converts it to an ObjectID.
func (l *Logger) SessionEnded(ctx context.Context, r *http.Request, profileIDStr, email string) {
	var profileID *primitive.ObjectID
	if oid, err := primitive.ObjectIDFromHex(profileIDStr); err == nil {
		profileID = &oid
	}

	l.Log(ctx, audit.Event{
		Category:  audit.CategorySession,
		EventType: audit.EventSessionEnded,
		ProfileID: profileID,
		Email:     email,
		IP:        network.GetClientIP(r),
		UserAgent: network.UserAgent(r),
		Success:   true,
	})
}
