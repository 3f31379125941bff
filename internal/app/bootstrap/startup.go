// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"os"

	"github.com/dalemusser/voxsecure/internal/app/system/pipeline"
	"github.com/dalemusser/voxsecure/internal/app/system/tasks"
	"github.com/dalemusser/voxsecure/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Startup runs once after DB connections and schema/index setup are complete,
// but before the HTTP handler is built and requests are served.
//
// It applies the configured timeouts, reports on the external collaborators
// and starts the background task runner. Returning a non-nil error aborts
// startup.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Codec:      appCfg.CodecTimeout,
		Embed:      appCfg.EmbedTimeout,
		Transcribe: appCfg.TranscribeTimeout,
		AuditWrite: appCfg.AuditWriteTimeout,
	})

	if appCfg.TempDir != "" {
		if err := os.MkdirAll(appCfg.TempDir, 0o700); err != nil {
			logger.Error("failed to create temp dir", zap.String("dir", appCfg.TempDir), zap.Error(err))
			return err
		}
	}

	// Unreachable collaborators are reported, not fatal: /health shows them
	// degraded and logins record internal-error until they come back.
	c, err := sharedCollaborators(appCfg)
	if err != nil {
		logger.Error("failed to build voice collaborators", zap.Error(err))
		return err
	}
	for _, dep := range c.dependencies() {
		if !dep.Check(ctx) {
			logger.Warn("voice dependency unavailable at startup", zap.String("dependency", dep.Name))
		}
	}

	startTaskRunner(deps.MongoDatabase, appCfg, logger)

	return nil
}

// taskRunner is the global task runner instance, used for graceful shutdown.
var taskRunner *tasks.Runner

// startTaskRunner initializes and starts the background task runner.
func startTaskRunner(db *mongo.Database, appCfg AppConfig, logger *zap.Logger) {
	taskRunner = tasks.New(logger)

	tempDir := appCfg.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	taskRunner.Register(tasks.TempSweepJob(tempDir, pipeline.TempPrefix, appCfg.TempSweepAge, logger))

	if appCfg.AuditRetention > 0 {
		taskRunner.Register(tasks.AuditRetentionJob(db, appCfg.AuditRetention, logger))
	}

	taskRunner.Start()
}
