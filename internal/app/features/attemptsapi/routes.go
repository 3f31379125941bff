package attemptsapi

import (
	"net/http"

	"github.com/dalemusser/voxsecure/internal/app/system/apicors"
	"github.com/dalemusser/voxsecure/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// Routes returns a router with the attempt listing endpoints.
//
// When mounted at /api/attempts:
//   - GET /api/attempts - List attempts
//   - GET /api/attempts/summary - Outcome counts
//
// Authentication is via API key (Bearer token in Authorization header).
func Routes(h *Handler, apiKey string, allowedOrigins []string, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(apicors.MiddlewareWithOrigins(allowedOrigins...))
	r.Use(auth.APIKeyAuth(apiKey, logger))

	r.Get("/", h.ListHandler)
	r.Get("/summary", h.SummaryHandler)

	return r
}
