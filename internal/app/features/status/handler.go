// internal/app/features/status/handler.go
package status

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	healthfeature "github.com/dalemusser/voxsecure/internal/app/features/health"
	"github.com/dalemusser/voxsecure/internal/app/system/certcheck"
	"github.com/dalemusser/voxsecure/internal/app/system/jsonutil"
	"github.com/dalemusser/voxsecure/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

var startTime = time.Now()

// Settings is the subset of app configuration shown by the status endpoint.
// Secrets (session key, API key, storage credentials) are never part of it.
type Settings struct {
	MongoDatabase string

	Threshold float64
	MatchRule string
	Codec     string
	Embedder  string

	WhisperModel    string
	WhisperLanguage string

	CodecTimeout      time.Duration
	EmbedTimeout      time.Duration
	TranscribeTimeout time.Duration
	RequestTimeout    time.Duration

	MaxRecordings     int
	MaxUploadBytes    int64
	EnrollConcurrency int

	ArchiveRecordings bool
	StorageType       string

	AuditLogLogin      string
	AuditLogEnrollment bool
	AuditLogSession    bool
	AuditRetention     time.Duration
}

// Handler serves the operator status report.
type Handler struct {
	Client   *mongo.Client
	CoreCfg  *config.CoreConfig
	Settings Settings
	Deps     []healthfeature.Dependency
	Log      *zap.Logger
}

func NewHandler(client *mongo.Client, coreCfg *config.CoreConfig, settings Settings, deps []healthfeature.Dependency, logger *zap.Logger) *Handler {
	return &Handler{
		Client:   client,
		CoreCfg:  coreCfg,
		Settings: settings,
		Deps:     deps,
		Log:      logger,
	}
}

// ConfigItem represents a single configuration variable for display.
type ConfigItem struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// ConfigGroup represents a logical group of configuration items.
type ConfigGroup struct {
	Name  string       `json:"name"`
	Items []ConfigItem `json:"items"`
}

// DatabaseStatus reports MongoDB reachability.
type DatabaseStatus struct {
	Connected bool   `json:"connected"`
	Error     string `json:"error,omitempty"`
	PingMS    int64  `json:"ping_ms"`
	Version   string `json:"version,omitempty"`
}

// SystemStatus reports process information.
type SystemStatus struct {
	GoVersion    string `json:"go_version"`
	Uptime       string `json:"uptime"`
	NumGoroutine int    `json:"goroutines"`
	MemAlloc     string `json:"mem_alloc"`
}

// CertStatus reports the serving certificate when HTTPS is on.
type CertStatus struct {
	certcheck.CertInfo
	ExpiresIn string `json:"expires_in,omitempty"`
	Warning   bool   `json:"warning"`
}

// Report is the body of GET /api/status.
type Report struct {
	Database     DatabaseStatus    `json:"database"`
	Dependencies map[string]string `json:"dependencies"`
	System       SystemStatus      `json:"system"`
	Certificate  *CertStatus       `json:"certificate,omitempty"`
	Config       []ConfigGroup     `json:"config"`
}

// Serve handles GET /api/status.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	rep := Report{
		Database:     h.checkDatabase(ctx),
		Dependencies: make(map[string]string, len(h.Deps)),
		System: SystemStatus{
			GoVersion:    runtime.Version(),
			Uptime:       formatDuration(time.Since(startTime)),
			NumGoroutine: runtime.NumGoroutine(),
			MemAlloc:     formatBytes(m.Alloc),
		},
		Config: h.buildConfigGroups(),
	}

	for _, d := range h.Deps {
		if d.Check(ctx) {
			rep.Dependencies[d.Name] = "ok"
		} else {
			rep.Dependencies[d.Name] = "unavailable"
		}
	}

	if h.CoreCfg != nil && h.CoreCfg.HTTP.UseHTTPS && h.CoreCfg.TLS.Domain != "" {
		info := certcheck.Check(ctx, h.CoreCfg.TLS.Domain)
		cs := &CertStatus{
			CertInfo: info,
			Warning:  info.DaysLeft > 0 && info.DaysLeft <= 14,
		}
		if !info.ExpiresAt.IsZero() {
			cs.ExpiresIn = formatExpiresIn(time.Until(info.ExpiresAt))
		}
		rep.Certificate = cs
	}

	jsonutil.OK(w, rep)
}

func (h *Handler) checkDatabase(ctx context.Context) DatabaseStatus {
	var ds DatabaseStatus
	pingStart := time.Now()
	if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
		ds.Error = err.Error()
		h.Log.Warn("status: database ping failed", zap.Error(err))
		return ds
	}
	ds.Connected = true
	ds.PingMS = time.Since(pingStart).Milliseconds()

	var result bson.M
	if err := h.Client.Database("admin").RunCommand(ctx, bson.D{{Key: "buildInfo", Value: 1}}).Decode(&result); err == nil {
		if version, ok := result["version"].(string); ok {
			ds.Version = version
		}
	}
	return ds
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		return formatPlural(days, "day") + " " + formatPlural(hours, "hour")
	}
	if hours > 0 {
		return formatPlural(hours, "hour") + " " + formatPlural(minutes, "min")
	}
	return formatPlural(minutes, "min")
}

func formatExpiresIn(d time.Duration) string {
	if d < 0 {
		return "expired"
	}
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	return formatPlural(days, "day") + ", " + formatPlural(hours, "hour")
}

func formatPlural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// formatBytes formats bytes in a human-readable way.
func formatBytes(b uint64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := uint64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}

func (h *Handler) buildConfigGroups() []ConfigGroup {
	s := h.Settings
	boolStr := func(b bool) string { return fmt.Sprintf("%t", b) }

	var groups []ConfigGroup

	if h.CoreCfg != nil {
		groups = append(groups, ConfigGroup{
			Name: "Environment",
			Items: []ConfigItem{
				{Name: "env", Value: h.CoreCfg.Env},
				{Name: "log_level", Value: h.CoreCfg.LogLevel},
				{Name: "use_https", Value: boolStr(h.CoreCfg.HTTP.UseHTTPS)},
				{Name: "domains", Value: strings.Join(h.CoreCfg.TLS.Domains, ", ")},
			},
		})
	}

	groups = append(groups,
		ConfigGroup{
			Name: "Matching",
			Items: []ConfigItem{
				{Name: "voice_threshold", Value: fmt.Sprintf("%g", s.Threshold)},
				{Name: "voice_match_rule", Value: s.MatchRule},
				{Name: "codec", Value: s.Codec},
				{Name: "embedder", Value: s.Embedder},
				{Name: "whisper_model", Value: s.WhisperModel},
				{Name: "whisper_language", Value: s.WhisperLanguage},
			},
		},
		ConfigGroup{
			Name: "Timeouts",
			Items: []ConfigItem{
				{Name: "codec_timeout", Value: s.CodecTimeout.String()},
				{Name: "embed_timeout", Value: s.EmbedTimeout.String()},
				{Name: "transcribe_timeout", Value: s.TranscribeTimeout.String()},
				{Name: "request_timeout", Value: s.RequestTimeout.String()},
			},
		},
		ConfigGroup{
			Name: "Enrollment",
			Items: []ConfigItem{
				{Name: "max_recordings", Value: fmt.Sprintf("%d", s.MaxRecordings)},
				{Name: "max_upload_bytes", Value: fmt.Sprintf("%d", s.MaxUploadBytes)},
				{Name: "enroll_concurrency", Value: fmt.Sprintf("%d", s.EnrollConcurrency)},
				{Name: "archive_recordings", Value: boolStr(s.ArchiveRecordings)},
				{Name: "storage_type", Value: s.StorageType},
			},
		},
		ConfigGroup{
			Name: "Audit",
			Items: []ConfigItem{
				{Name: "mongo_database", Value: s.MongoDatabase},
				{Name: "audit_log_login", Value: s.AuditLogLogin},
				{Name: "audit_log_enrollment", Value: boolStr(s.AuditLogEnrollment)},
				{Name: "audit_log_session", Value: boolStr(s.AuditLogSession)},
				{Name: "audit_retention", Value: s.AuditRetention.String()},
			},
		},
	)

	return groups
}
