// internal/app/features/logout/logout.go
package logout

import (
	"net/http"

	"github.com/dalemusser/voxsecure/internal/app/system/auditlog"
	"github.com/dalemusser/voxsecure/internal/app/system/auth"
	"github.com/dalemusser/voxsecure/internal/app/system/jsonutil"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// MsgLoggedOut is returned after the session cookie is cleared.
const MsgLoggedOut = "Logged out"

// Handler provides logout handlers.
type Handler struct {
	sessionMgr  *auth.SessionManager
	auditLogger *auditlog.Logger
	logger      *zap.Logger
}

// NewHandler creates a new logout Handler.
func NewHandler(
	sessionMgr *auth.SessionManager,
	auditLogger *auditlog.Logger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		sessionMgr:  sessionMgr,
		auditLogger: auditLogger,
		logger:      logger,
	}
}

// Routes returns a chi.Router with logout routes mounted.
// Logging out without a session is not an error.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Post("/", h.handleLogout)
	return r
}

// handleLogout terminates the session.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if user, ok := auth.CurrentUser(r); ok {
		h.auditLogger.SessionEnded(r.Context(), r, user.ID, user.Email)
		h.logger.Debug("session ended", zap.String("profile_id", user.ID))
	}

	h.sessionMgr.DestroySession(w, r)

	jsonutil.OK(w, jsonutil.Envelope{Success: true, Message: MsgLoggedOut})
}
