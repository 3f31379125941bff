// internal/app/features/login/login.go
package login

import (
	"context"
	"errors"
	"net/http"

	errorsfeature "github.com/dalemusser/voxsecure/internal/app/features/errors"
	"github.com/dalemusser/voxsecure/internal/app/system/auditlog"
	"github.com/dalemusser/voxsecure/internal/app/system/auth"
	"github.com/dalemusser/voxsecure/internal/app/system/formutil"
	"github.com/dalemusser/voxsecure/internal/app/system/jsonutil"
	"github.com/dalemusser/voxsecure/internal/app/system/network"
	"github.com/dalemusser/voxsecure/internal/app/system/verifier"
	"github.com/dalemusser/voxsecure/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Authenticator runs one voice login. *verifier.Verifier satisfies it.
type Authenticator interface {
	Login(ctx context.Context, req verifier.LoginRequest) verifier.Verdict
}

// Handler serves POST /login.
type Handler struct {
	authenticator Authenticator
	sessionMgr    *auth.SessionManager // nil disables session cookies
	auditLogger   *auditlog.Logger
	errLog        *errorsfeature.ErrorLogger
	maxUpload     int64
	logger        *zap.Logger
}

// NewHandler creates a new login Handler.
func NewHandler(
	authenticator Authenticator,
	sessionMgr *auth.SessionManager,
	auditLogger *auditlog.Logger,
	errLog *errorsfeature.ErrorLogger,
	maxUpload int64,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		authenticator: authenticator,
		sessionMgr:    sessionMgr,
		auditLogger:   auditLogger,
		errLog:        errLog,
		maxUpload:     maxUpload,
		logger:        logger,
	}
}

// Routes returns a chi.Router with the login route mounted.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.handleLogin)
	return r
}

// Response is the login result. Evidence fields are present only when the
// stage that computes them ran.
type Response struct {
	jsonutil.Envelope
	Similarity   *float64  `json:"similarity,omitempty"`
	Similarities []float64 `json:"similarities,omitempty"`
	Spoken       *string   `json:"spoken,omitempty"`
}

// handleLogin answers every verdict with 200 and success true or false.
// Only a request that cannot be evaluated at all gets a 4xx, and such
// requests are not recorded as attempts.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := formutil.Parse(w, r, h.maxUpload); err != nil {
		if errors.Is(err, formutil.ErrTooLarge) {
			jsonutil.TooLarge(w, "Upload too large")
			return
		}
		jsonutil.BadRequest(w, "Invalid form data")
		return
	}

	email := formutil.Value(r, "email")
	passphrase := formutil.Value(r, "passphrase")
	if email == "" || passphrase == "" {
		jsonutil.ValidationError(w, "Email and passphrase are required", missing(email, passphrase))
		return
	}

	rec, err := formutil.Recording(r, "recording")
	if err != nil {
		if errors.Is(err, formutil.ErrNoFile) {
			jsonutil.BadRequest(w, "Recording is required")
			return
		}
		h.errLog.Log(r, "failed to read login recording", err)
		jsonutil.BadRequest(w, "Invalid form data")
		return
	}

	verdict := h.authenticator.Login(r.Context(), verifier.LoginRequest{
		Email:      email,
		Passphrase: passphrase,
		Recording:  rec,
		IP:         network.GetClientIP(r),
		UserAgent:  network.UserAgent(r),
	})

	if verdict.Outcome == models.OutcomeInternalError {
		h.errLog.LogWithFields(r, "login failed", verdict.Err,
			zap.String("email", verdict.Email),
			zap.String("stage", verdict.Stage.String()))
	}

	if verdict.Success() && verdict.Profile != nil {
		h.startSession(w, r, *verdict.Profile)
	}

	jsonutil.OK(w, Response{
		Envelope:     jsonutil.Envelope{Success: verdict.Success(), Message: verdict.Message},
		Similarity:   verdict.BestSimilarity,
		Similarities: verdict.AllSimilarities,
		Spoken:       verdict.TranscribedText,
	})
}

// startSession issues the session cookie. The login already succeeded and
// was recorded, so a cookie failure is logged and the response still
// reports success.
func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, p models.UserProfile) {
	if h.sessionMgr == nil {
		return
	}
	if _, err := h.sessionMgr.CreateSession(w, r, p.ID, p.Email, p.Name); err != nil {
		h.errLog.Log(r, "failed to create session", err)
		return
	}
	h.auditLogger.SessionStarted(r.Context(), r, p.ID, p.Email)
}

func missing(email, passphrase string) map[string]string {
	fields := map[string]string{}
	if email == "" {
		fields["email"] = "Email is required."
	}
	if passphrase == "" {
		fields["passphrase"] = "Passphrase is required."
	}
	return fields
}
