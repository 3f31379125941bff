// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	attemptsapifeature "github.com/dalemusser/voxsecure/internal/app/features/attemptsapi"
	auditlogfeature "github.com/dalemusser/voxsecure/internal/app/features/auditlog"
	errorsfeature "github.com/dalemusser/voxsecure/internal/app/features/errors"
	healthfeature "github.com/dalemusser/voxsecure/internal/app/features/health"
	loginfeature "github.com/dalemusser/voxsecure/internal/app/features/login"
	logoutfeature "github.com/dalemusser/voxsecure/internal/app/features/logout"
	passphrasesfeature "github.com/dalemusser/voxsecure/internal/app/features/passphrases"
	profilefeature "github.com/dalemusser/voxsecure/internal/app/features/profile"
	registerfeature "github.com/dalemusser/voxsecure/internal/app/features/register"
	statusfeature "github.com/dalemusser/voxsecure/internal/app/features/status"
	attemptstore "github.com/dalemusser/voxsecure/internal/app/store/attempts"
	"github.com/dalemusser/voxsecure/internal/app/store/audit"
	profilestore "github.com/dalemusser/voxsecure/internal/app/store/profiles"
	"github.com/dalemusser/voxsecure/internal/app/system/auditlog"
	"github.com/dalemusser/voxsecure/internal/app/system/auth"
	"github.com/dalemusser/voxsecure/internal/app/system/enrollment"
	"github.com/dalemusser/voxsecure/internal/app/system/metrics"
	"github.com/dalemusser/voxsecure/internal/app/system/passphrase"
	"github.com/dalemusser/voxsecure/internal/app/system/pipeline"
	"github.com/dalemusser/voxsecure/internal/app/system/verifier"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed.
//
// Routes fall into three groups:
//   - Voice routes (/register, /login, /logout, /me): session cookies, JSON responses
//   - Operator API (/api/attempts, /api/audit, /api/status): API key auth
//   - Probes (/health, /ready, /livez, /metrics): no auth
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain, appCfg.SessionMaxAge, secure, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Re-read the profile on each request so a deleted profile loses its session.
	sessionMgr.SetUserFetcher(profilestore.NewFetcher(deps.MongoDatabase, logger))

	policy, err := appCfg.Policy()
	if err != nil {
		return nil, err
	}

	collab, err := sharedCollaborators(appCfg)
	if err != nil {
		logger.Error("failed to build voice collaborators", zap.Error(err))
		return nil, err
	}

	// Create error logger for handlers.
	errLog := errorsfeature.NewErrorLogger(logger)

	// Audit store and logger for enrollment and session events.
	auditStore := audit.New(deps.MongoDatabase)
	auditLogger := auditlog.New(auditStore, logger, auditlog.Config{
		Enrollment: appCfg.AuditLogEnrollment,
		Session:    appCfg.AuditLogSession,
	})

	profiles := profilestore.New(deps.MongoDatabase)
	attempts := attemptstore.New(deps.MongoDatabase)

	extractor := pipeline.New(collab.transcoder, collab.embedder, pipeline.Config{
		TempDir:      appCfg.TempDir,
		CodecTimeout: appCfg.CodecTimeout,
		EmbedTimeout: appCfg.EmbedTimeout,
	}, logger)

	enroller := enrollment.New(profiles, extractor, deps.Archive, enrollment.Config{
		Concurrency:   appCfg.EnrollConcurrency,
		ArchivePrefix: appCfg.ArchivePrefix,
		MaxRecordings: appCfg.MaxRecordings,
	}, logger)

	voiceVerifier := verifier.New(
		profiles,
		attempts,
		extractor,
		passphrase.New(collab.transcriber, appCfg.TranscribeTimeout, logger),
		verifier.Config{
			Policy:       policy,
			AuditTimeout: appCfg.AuditWriteTimeout,
			LogAttempts:  appCfg.AuditLogLogin == auditlog.ModeAll,
		},
		logger,
	)

	logger.Info("voice pipeline ready",
		zap.String("codec", appCfg.Codec),
		zap.String("embedder", extractor.EmbedderName()),
		zap.Float64("threshold", policy.Threshold),
		zap.String("rule", string(policy.Rule)),
		zap.Bool("archive", deps.Archive != nil),
	)

	r := chi.NewRouter()

	// ─────────────────────────────────────────────────────────────────────────────
	// Global Middleware (applies to ALL routes)
	// ─────────────────────────────────────────────────────────────────────────────

	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)

	// CORS middleware: must be early in the chain to handle preflight requests.
	r.Use(middleware.CORSFromConfig(coreCfg))

	// Security headers middleware: adds X-Frame-Options, X-Content-Type-Options, etc.
	r.Use(middleware.SecurityHeadersFromConfig(coreCfg))

	// Session middleware: loads SessionUser into context if signed in.
	r.Use(sessionMgr.LoadSessionUser)

	errorsHandler := errorsfeature.NewHandler()
	r.NotFound(errorsHandler.NotFound)
	r.MethodNotAllowed(errorsHandler.MethodNotAllowed)

	// ─────────────────────────────────────────────────────────────────────────────
	// Probes
	// ─────────────────────────────────────────────────────────────────────────────

	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger, collab.dependencies()...)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	healthfeature.MountRootEndpoints(r, healthHandler)
	r.Handle("/metrics", metrics.Handler())

	// ─────────────────────────────────────────────────────────────────────────────
	// Voice routes
	// ─────────────────────────────────────────────────────────────────────────────

	// Transcoding, embedding and transcription each carry their own timeout;
	// this bounds the request as a whole.
	r.Group(func(vr chi.Router) {
		vr.Use(chimw.Timeout(appCfg.RequestTimeout))

		registerHandler := registerfeature.NewHandler(enroller, auditLogger, errLog, appCfg.MaxUploadBytes, logger)
		vr.Mount("/register", registerfeature.Routes(registerHandler))

		loginHandler := loginfeature.NewHandler(voiceVerifier, sessionMgr, auditLogger, errLog, appCfg.MaxUploadBytes, logger)
		vr.Mount("/login", loginfeature.Routes(loginHandler))
	})

	r.Group(func(sr chi.Router) {
		sr.Use(chimw.Timeout(30 * time.Second))

		logoutHandler := logoutfeature.NewHandler(sessionMgr, auditLogger, logger)
		sr.Mount("/logout", logoutfeature.Routes(logoutHandler))

		profileHandler := profilefeature.NewHandler(profiles, errLog, logger)
		sr.Mount("/me", profilefeature.Routes(profileHandler, sessionMgr))

		// ─────────────────────────────────────────────────────────────────────
		// Operator API
		// ─────────────────────────────────────────────────────────────────────

		attemptsHandler := attemptsapifeature.NewHandler(attempts, errLog, logger)
		sr.Mount("/api/attempts", attemptsapifeature.Routes(attemptsHandler, appCfg.APIKey, appCfg.CORSAllowedOrigins, logger))
		auditLogHandler := auditlogfeature.NewHandler(auditStore, errLog, logger)
		sr.Mount("/api/audit", auditlogfeature.Routes(auditLogHandler, appCfg.APIKey, appCfg.CORSAllowedOrigins, logger))

		statusHandler := statusfeature.NewHandler(deps.MongoClient, coreCfg, statusfeature.Settings{
			MongoDatabase:      appCfg.MongoDatabase,
			Threshold:          policy.Threshold,
			MatchRule:          string(policy.Rule),
			Codec:              appCfg.Codec,
			Embedder:           extractor.EmbedderName(),
			WhisperModel:       appCfg.WhisperModel,
			WhisperLanguage:    appCfg.WhisperLanguage,
			CodecTimeout:       appCfg.CodecTimeout,
			EmbedTimeout:       appCfg.EmbedTimeout,
			TranscribeTimeout:  appCfg.TranscribeTimeout,
			RequestTimeout:     appCfg.RequestTimeout,
			MaxRecordings:      appCfg.MaxRecordings,
			MaxUploadBytes:     appCfg.MaxUploadBytes,
			EnrollConcurrency:  appCfg.EnrollConcurrency,
			ArchiveRecordings:  appCfg.ArchiveRecordings,
			StorageType:        appCfg.StorageType,
			AuditLogLogin:      appCfg.AuditLogLogin,
			AuditLogEnrollment: appCfg.AuditLogEnrollment,
			AuditLogSession:    appCfg.AuditLogSession,
			AuditRetention:     appCfg.AuditRetention,
		}, collab.dependencies(), logger)
		sr.Mount("/api/status", statusfeature.Routes(statusHandler, appCfg.APIKey, logger))

		sr.Mount("/api/passphrases", passphrasesfeature.Routes(appCfg.CORSAllowedOrigins))
	})

	return r, nil
}
