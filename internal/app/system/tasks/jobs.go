// internal/app/system/tasks/jobs.go
package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dalemusser/voxsecure/internal/app/system/metrics"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// TempSweepJob removes request temp directories under dir whose name starts
// with prefix and that are older than maxAge. Live requests clean up after
// themselves; this catches what a crashed or killed process left behind.
func TempSweepJob(dir, prefix string, maxAge time.Duration, logger *zap.Logger) Job {
	interval := maxAge / 2
	if interval < time.Minute {
		interval = time.Minute
	}
	return Job{
		Name:     "temp-sweep",
		Interval: interval,
		Run: func(ctx context.Context) error {
			removed, err := SweepTemp(ctx, dir, prefix, time.Now().Add(-maxAge))
			if removed > 0 {
				logger.Info("removed stale temp directories",
					zap.Int("removed", removed),
					zap.String("dir", dir))
			}
			return err
		},
	}
}

// SweepTemp deletes entries of dir named prefix* last modified before
// cutoff. It returns how many were removed. Per-entry failures are counted
// in metrics and joined into the returned error.
func SweepTemp(ctx context.Context, dir, prefix string, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	var removed int
	var errs []error
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed by its owner between ReadDir and Info.
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			metrics.TempCleanupFailures.Inc()
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// AuditRetentionJob deletes audit_logs entries older than retention.
// Login attempts are kept; they are the record of every authentication.
func AuditRetentionJob(db *mongo.Database, retention time.Duration, logger *zap.Logger) Job {
	return Job{
		Name:     "audit-retention",
		Interval: 6 * time.Hour,
		Run: func(ctx context.Context) error {
			cutoff := time.Now().Add(-retention)
			result, err := db.Collection("audit_logs").DeleteMany(ctx, bson.M{
				"created_at": bson.M{"$lt": cutoff},
			})
			if err != nil {
				return err
			}
			if result.DeletedCount > 0 {
				logger.Info("pruned old audit events",
					zap.Int64("deleted", result.DeletedCount),
					zap.Duration("retention", retention))
			}
			return nil
		},
	}
}
