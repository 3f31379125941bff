// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/voxsecure/internal/app/system/auditlog"
	"github.com/dalemusser/voxsecure/internal/app/system/matcher"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// EnvVarPrefix is the prefix for environment variables.
const EnvVarPrefix = "VOXSECURE"

// appConfigKeys defines the configuration keys for this application.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, voice_threshold, etc.
//   - Environment variables: VOXSECURE_MONGO_URI, VOXSECURE_VOICE_THRESHOLD, etc.
//   - Command-line flags: --mongo_uri, --voice_threshold, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "voice_auth_system", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "voxsecure-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "24h", Desc: "Session cookie max age (e.g., 24h, 720h, 30m)"},

	// Operator API
	{Name: "api_key", Default: "", Desc: "API key for /api/attempts (leave empty to reject all operator requests)"},
	{Name: "cors_allowed_origins", Default: "", Desc: "Comma-separated origins allowed on /api/* (blank allows any)"},

	// Recording archive
	{Name: "archive_recordings", Default: false, Desc: "Keep raw enrollment recordings in file storage"},
	{Name: "archive_prefix", Default: "enrollments/", Desc: "Key prefix for archived recordings"},
	{Name: "storage_type", Default: "local", Desc: "Storage backend: 'local' or 's3'"},
	{Name: "storage_local_path", Default: "./recordings", Desc: "Local storage path for archived recordings"},
	{Name: "storage_local_url", Default: "/recordings", Desc: "URL prefix for local files"},

	// S3/CloudFront configuration
	{Name: "storage_s3_region", Default: "", Desc: "AWS region for S3"},
	{Name: "storage_s3_bucket", Default: "", Desc: "S3 bucket name"},
	{Name: "storage_s3_prefix", Default: "voxsecure/", Desc: "S3 key prefix"},
	{Name: "storage_cf_url", Default: "", Desc: "CloudFront distribution URL"},
	{Name: "storage_cf_keypair_id", Default: "", Desc: "CloudFront key pair ID"},
	{Name: "storage_cf_key_path", Default: "", Desc: "Path to CloudFront private key file"},

	// Audit logging settings
	{Name: "audit_log_login", Default: "all", Desc: "Login attempt logging: 'all' (db+log) or 'db'"},
	{Name: "audit_log_enrollment", Default: "all", Desc: "Enrollment event logging: 'all', 'db', 'log', or 'off'"},
	{Name: "audit_log_session", Default: "all", Desc: "Session event logging: 'all', 'db', 'log', or 'off'"},
	{Name: "audit_retention", Default: "0", Desc: "Delete audit events older than this (0 keeps them forever)"},

	// Voice policy
	{Name: "voice_threshold", Default: "0.95", Desc: "Cosine similarity required for a voice match"},
	{Name: "voice_match_rule", Default: "gt", Desc: "Threshold comparison: 'gt' or 'gte'"},

	// Codec
	{Name: "codec", Default: "ffmpeg", Desc: "Audio normalizer: 'ffmpeg' or 'native' (WAV only)"},
	{Name: "ffmpeg_path", Default: "", Desc: "Path to ffmpeg (blank resolves via PATH)"},
	{Name: "codec_timeout", Default: "30s", Desc: "Timeout for one transcode"},
	{Name: "temp_dir", Default: "", Desc: "Parent directory for request temp files (blank uses the OS default)"},
	{Name: "temp_sweep_age", Default: "1h", Desc: "Remove leftover temp directories older than this"},

	// Embedder
	{Name: "embedder", Default: "mfcc", Desc: "Speaker embedder: 'mfcc' or 'sidecar'"},
	{Name: "mfcc_coefficients", Default: 13, Desc: "Cepstral coefficients for the mfcc embedder"},
	{Name: "embed_url", Default: "http://localhost:8390", Desc: "Speaker-embedding sidecar URL"},
	{Name: "embed_timeout", Default: "30s", Desc: "Timeout for one embedding"},

	// Transcriber
	{Name: "whisper_url", Default: "http://localhost:8387", Desc: "Whisper sidecar URL"},
	{Name: "whisper_model", Default: "base", Desc: "Whisper model name"},
	{Name: "whisper_language", Default: "", Desc: "Whisper language hint (blank auto-detects)"},
	{Name: "transcribe_timeout", Default: "120s", Desc: "Timeout for one transcription"},

	// Request handling
	{Name: "enroll_concurrency", Default: 4, Desc: "Parallel feature extractions per registration"},
	{Name: "max_recordings", Default: 10, Desc: "Maximum recordings per registration"},
	{Name: "max_upload_bytes", Default: 32 << 20, Desc: "Request body limit for /register and /login"},
	{Name: "audit_write_timeout", Default: "5s", Desc: "Timeout for each attempt or audit write"},
	{Name: "request_timeout", Default: "5m", Desc: "Deadline for a whole /register or /login request"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, VOXSECURE_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, EnvVarPrefix, appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	threshold, err := strconv.ParseFloat(strings.TrimSpace(appValues.String("voice_threshold")), 64)
	if err != nil {
		return nil, AppConfig{}, fmt.Errorf("voice_threshold: %w", err)
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),
		SessionMaxAge:    appValues.Duration("session_max_age", 24*time.Hour),

		APIKey:             appValues.String("api_key"),
		CORSAllowedOrigins: splitList(appValues.String("cors_allowed_origins")),

		// Recording archive
		ArchiveRecordings: appValues.Bool("archive_recordings"),
		ArchivePrefix:     appValues.String("archive_prefix"),
		StorageType:       appValues.String("storage_type"),
		StorageLocalPath:  appValues.String("storage_local_path"),
		StorageLocalURL:   appValues.String("storage_local_url"),

		// S3/CloudFront
		StorageS3Region:    appValues.String("storage_s3_region"),
		StorageS3Bucket:    appValues.String("storage_s3_bucket"),
		StorageS3Prefix:    appValues.String("storage_s3_prefix"),
		StorageCFURL:       appValues.String("storage_cf_url"),
		StorageCFKeyPairID: appValues.String("storage_cf_keypair_id"),
		StorageCFKeyPath:   appValues.String("storage_cf_key_path"),

		// Audit logging
		AuditLogLogin:      appValues.String("audit_log_login"),
		AuditLogEnrollment: appValues.String("audit_log_enrollment"),
		AuditLogSession:    appValues.String("audit_log_session"),
		AuditRetention:     appValues.Duration("audit_retention", 0),

		// Voice policy
		VoiceThreshold: threshold,
		VoiceMatchRule: appValues.String("voice_match_rule"),

		// Codec
		Codec:        strings.ToLower(appValues.String("codec")),
		FFmpegPath:   appValues.String("ffmpeg_path"),
		CodecTimeout: appValues.Duration("codec_timeout", 30*time.Second),
		TempDir:      appValues.String("temp_dir"),
		TempSweepAge: appValues.Duration("temp_sweep_age", time.Hour),

		// Embedder
		Embedder:         strings.ToLower(appValues.String("embedder")),
		MFCCCoefficients: appValues.Int("mfcc_coefficients"),
		EmbedURL:         appValues.String("embed_url"),
		EmbedTimeout:     appValues.Duration("embed_timeout", 30*time.Second),

		// Transcriber
		WhisperURL:        appValues.String("whisper_url"),
		WhisperModel:      appValues.String("whisper_model"),
		WhisperLanguage:   appValues.String("whisper_language"),
		TranscribeTimeout: appValues.Duration("transcribe_timeout", 120*time.Second),

		// Request handling
		EnrollConcurrency: appValues.Int("enroll_concurrency"),
		MaxRecordings:     appValues.Int("max_recordings"),
		MaxUploadBytes:    int64(appValues.Int("max_upload_bytes")),
		AuditWriteTimeout: appValues.Duration("audit_write_timeout", 5*time.Second),
		RequestTimeout:    appValues.Duration("request_timeout", 5*time.Minute),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Every problem is reported, not just the first.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	var errs []error

	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		errs = append(errs, fmt.Errorf("invalid MongoDB URI: %w", err))
	}

	if _, err := appCfg.Policy(); err != nil {
		errs = append(errs, err)
	}

	switch appCfg.Codec {
	case "ffmpeg", "native":
	default:
		errs = append(errs, fmt.Errorf("unknown codec %q (want ffmpeg or native)", appCfg.Codec))
	}

	switch appCfg.Embedder {
	case "mfcc":
		if appCfg.MFCCCoefficients < 1 {
			errs = append(errs, fmt.Errorf("mfcc_coefficients must be positive, got %d", appCfg.MFCCCoefficients))
		}
	case "sidecar":
		if appCfg.EmbedURL == "" {
			errs = append(errs, errors.New("embed_url is required when embedder is sidecar"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown embedder %q (want mfcc or sidecar)", appCfg.Embedder))
	}

	switch appCfg.AuditLogLogin {
	case auditlog.ModeAll, auditlog.ModeDB:
	default:
		errs = append(errs, fmt.Errorf("audit_log_login must be all or db, got %q", appCfg.AuditLogLogin))
	}
	for key, mode := range map[string]string{
		"audit_log_enrollment": appCfg.AuditLogEnrollment,
		"audit_log_session":    appCfg.AuditLogSession,
	} {
		if !auditlog.ValidMode(mode) {
			errs = append(errs, fmt.Errorf("%s must be all, db, log or off, got %q", key, mode))
		}
	}

	if appCfg.ArchiveRecordings && appCfg.StorageType != "local" && appCfg.StorageType != "s3" && appCfg.StorageType != "" {
		errs = append(errs, fmt.Errorf("unknown storage type: %s", appCfg.StorageType))
	}
	if appCfg.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("max_upload_bytes must be positive, got %d", appCfg.MaxUploadBytes))
	}
	if appCfg.AuditRetention < 0 {
		errs = append(errs, errors.New("audit_retention must not be negative"))
	}

	if appCfg.APIKey == "" {
		logger.Warn("api_key not set; /api/attempts will reject every request")
	}

	return errors.Join(errs...)
}

// Policy returns the voice match policy described by the config.
func (c AppConfig) Policy() (matcher.Policy, error) {
	rule, err := matcher.ParseRule(c.VoiceMatchRule)
	if err != nil {
		return matcher.Policy{}, err
	}
	p := matcher.Policy{Threshold: c.VoiceThreshold, Rule: rule}
	if err := p.Validate(); err != nil {
		return matcher.Policy{}, err
	}
	return p, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
