// internal/app/features/register/register.go
package register

import (
	"context"
	"errors"
	"net/http"
	"time"

	errorsfeature "github.com/dalemusser/voxsecure/internal/app/features/errors"
	"github.com/dalemusser/voxsecure/internal/app/system/auditlog"
	"github.com/dalemusser/voxsecure/internal/app/system/enrollment"
	"github.com/dalemusser/voxsecure/internal/app/system/formutil"
	"github.com/dalemusser/voxsecure/internal/app/system/jsonutil"
	"github.com/dalemusser/voxsecure/internal/app/system/voiceerr"
	"github.com/dalemusser/voxsecure/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// MsgRegistered is returned on a successful enrollment.
const MsgRegistered = "User registered successfully"

// Enroller is the enrollment service as the handler sees it.
type Enroller interface {
	Enroll(ctx context.Context, in enrollment.Input) (models.UserProfile, error)
}

// Handler serves POST /register.
type Handler struct {
	enroller    Enroller
	auditLogger *auditlog.Logger
	errLog      *errorsfeature.ErrorLogger
	maxUpload   int64
	logger      *zap.Logger
}

// NewHandler creates a new register Handler. auditLogger may be nil.
func NewHandler(
	enroller Enroller,
	auditLogger *auditlog.Logger,
	errLog *errorsfeature.ErrorLogger,
	maxUpload int64,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		enroller:    enroller,
		auditLogger: auditLogger,
		errLog:      errLog,
		maxUpload:   maxUpload,
		logger:      logger,
	}
}

// Routes returns a chi.Router with the register route mounted.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.handleRegister)
	return r
}

// ProfileData is the public view of a new profile. Voiceprints and audio
// never leave the server.
type ProfileData struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	Name            string    `json:"name"`
	Mobile          string    `json:"mobile"`
	VoiceprintCount int       `json:"voiceprint_count"`
	Dimension       int       `json:"dimension"`
	CreatedAt       time.Time `json:"created_at"`
}

type registerResponse struct {
	jsonutil.Envelope
	Data *ProfileData `json:"data,omitempty"`
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := formutil.Parse(w, r, h.maxUpload); err != nil {
		h.rejectForm(w, r, err)
		return
	}

	email := formutil.Value(r, "email")
	recs, err := formutil.Recordings(r, "recordings", "recording")
	if err != nil && !errors.Is(err, formutil.ErrNoFile) {
		h.rejectForm(w, r, err)
		return
	}

	profile, err := h.enroller.Enroll(r.Context(), enrollment.Input{
		Email:      email,
		Name:       formutil.Value(r, "name"),
		Mobile:     formutil.Value(r, "mobile"),
		Recordings: recs,
	})
	if err != nil {
		h.fail(w, r, email, err)
		return
	}

	h.auditLogger.EnrollmentSucceeded(r.Context(), r, profile)
	jsonutil.Created(w, registerResponse{
		Envelope: jsonutil.Envelope{Success: true, Message: MsgRegistered},
		Data: &ProfileData{
			ID:              profile.ID.Hex(),
			Email:           profile.Email,
			Name:            profile.Name,
			Mobile:          profile.Mobile,
			VoiceprintCount: profile.VoiceprintCount(),
			Dimension:       profile.Dimension,
			CreatedAt:       profile.CreatedAt,
		},
	})
}

// rejectForm answers a body that could not be read as a registration form.
func (h *Handler) rejectForm(w http.ResponseWriter, r *http.Request, err error) {
	h.auditLogger.EnrollmentRejected(r.Context(), r, "", err.Error())
	if errors.Is(err, formutil.ErrTooLarge) {
		jsonutil.TooLarge(w, "Upload too large")
		return
	}
	jsonutil.BadRequest(w, "Invalid form data")
}

// fail maps an enrollment error onto the response. Client errors are 4xx;
// everything else is logged and reported as a generic 500.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, email string, err error) {
	var ie *enrollment.InputError
	switch {
	case errors.As(err, &ie):
		h.auditLogger.EnrollmentRejected(r.Context(), r, email, ie.Error())
		jsonutil.ValidationError(w, ie.Result.First(), ie.Fields())
	case errors.Is(err, voiceerr.ErrDuplicateEmail):
		h.auditLogger.EnrollmentRejected(r.Context(), r, email, "duplicate email")
		jsonutil.Conflict(w, "Email already registered")
	case errors.Is(err, voiceerr.ErrNoRecordings):
		h.auditLogger.EnrollmentRejected(r.Context(), r, email, "no recordings")
		jsonutil.BadRequest(w, "At least one recording is required")
	case errors.Is(err, voiceerr.ErrUnsupportedFormat):
		h.auditLogger.EnrollmentRejected(r.Context(), r, email, err.Error())
		jsonutil.BadRequest(w, "Unsupported audio format")
	case errors.Is(err, voiceerr.ErrDimensionMismatch):
		h.auditLogger.EnrollmentRejected(r.Context(), r, email, err.Error())
		jsonutil.BadRequest(w, "Recordings produced inconsistent voiceprints")
	default:
		h.auditLogger.EnrollmentFailed(r.Context(), r, email, failureReason(err))
		h.errLog.LogWithFields(r, "registration failed", err, zap.String("email", email))
		jsonutil.InternalError(w, "Registration failed")
	}
}

// failureReason names the error class for the audit record without leaking
// driver or subprocess detail.
func failureReason(err error) string {
	if k := voiceerr.Kind(err); k != nil {
		return k.Error()
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return "internal error"
}
