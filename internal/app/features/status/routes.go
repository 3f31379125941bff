// internal/app/features/status/routes.go
package status

import (
	"net/http"

	"github.com/dalemusser/voxsecure/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Routes mounts GET / behind API key auth.
func Routes(h *Handler, apiKey string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(auth.APIKeyAuth(apiKey, logger))
	r.Get("/", h.Serve)
	return r
}
