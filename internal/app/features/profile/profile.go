// internal/app/features/profile/profile.go
package profile

import (
	"context"
	"errors"
	"net/http"
	"time"

	errorsfeature "github.com/dalemusser/voxsecure/internal/app/features/errors"
	"github.com/dalemusser/voxsecure/internal/app/system/auth"
	"github.com/dalemusser/voxsecure/internal/app/system/jsonutil"
	"github.com/dalemusser/voxsecure/internal/app/system/timeouts"
	"github.com/dalemusser/voxsecure/internal/app/system/voiceerr"
	"github.com/dalemusser/voxsecure/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Finder loads a profile by ID. *profilestore.Store satisfies it.
type Finder interface {
	FindByID(ctx context.Context, id primitive.ObjectID) (models.UserProfile, error)
}

// Handler serves the signed-in user's own profile.
type Handler struct {
	profiles Finder
	errLog   *errorsfeature.ErrorLogger
	logger   *zap.Logger
}

// NewHandler creates a new profile Handler.
func NewHandler(profiles Finder, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{
		profiles: profiles,
		errLog:   errLog,
		logger:   logger,
	}
}

// Routes returns a chi.Router with profile routes mounted.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireSignedIn)
	r.Get("/", h.showProfile)
	return r
}

// MeData is what a signed-in user may see about themselves.
type MeData struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	Name            string     `json:"name"`
	Mobile          string     `json:"mobile"`
	VoiceprintCount int        `json:"voiceprint_count"`
	Dimension       int        `json:"dimension"`
	Embedder        string     `json:"embedder,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	VerifiedAt      *time.Time `json:"verified_at,omitempty"`
}

type meResponse struct {
	jsonutil.Envelope
	Data *MeData `json:"data,omitempty"`
}

func (h *Handler) showProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.CurrentUser(r)
	if !ok {
		jsonutil.Unauthorized(w, "Not signed in")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	p, err := h.profiles.FindByID(ctx, user.ProfileID())
	if errors.Is(err, voiceerr.ErrNotFound) {
		jsonutil.NotFound(w, "Profile not found")
		return
	}
	if err != nil {
		h.errLog.Log(r, "failed to load profile", err)
		jsonutil.InternalError(w, "Failed to load profile")
		return
	}

	data := &MeData{
		ID:              p.ID.Hex(),
		Email:           p.Email,
		Name:            p.Name,
		Mobile:          p.Mobile,
		VoiceprintCount: p.VoiceprintCount(),
		Dimension:       p.Dimension,
		Embedder:        p.Embedder,
		CreatedAt:       p.CreatedAt,
	}
	if !user.VerifiedAt.IsZero() {
		v := user.VerifiedAt.UTC()
		data.VerifiedAt = &v
	}

	jsonutil.OK(w, meResponse{Envelope: jsonutil.Envelope{Success: true}, Data: data})
}
