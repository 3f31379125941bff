// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like HTTP ports,
// TLS, logging level, CORS and request body limits. Everything specific to
// voice enrollment and login lives here.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Maximum connections in pool (default: 100)
	MongoMinPoolSize uint64 // Minimum connections to keep warm (default: 10)

	// Session management configuration
	SessionKey    string        // Secret key for signing session cookies (must be strong in production)
	SessionName   string        // Cookie name for sessions (default: voxsecure-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Maximum session cookie lifetime (default: 24h)

	// API key authentication for operator endpoints (/api/attempts).
	// Leave empty to reject every operator request.
	APIKey string
	// CORSAllowedOrigins restricts /api/* to these origins. Empty allows any.
	CORSAllowedOrigins []string

	// Recording archive
	ArchiveRecordings bool   // Keep raw enrollment audio in file storage
	ArchivePrefix     string // Key prefix for archived recordings (default: enrollments/)
	StorageType       string // Storage backend: "local" or "s3"
	StorageLocalPath  string // Local storage path (e.g., "./recordings")
	StorageLocalURL   string // URL prefix for local files

	// S3/CloudFront configuration (only used if StorageType is "s3")
	StorageS3Region    string // AWS region
	StorageS3Bucket    string // S3 bucket name
	StorageS3Prefix    string // Key prefix (e.g., "voxsecure/")
	StorageCFURL       string // CloudFront distribution URL
	StorageCFKeyPairID string // CloudFront key pair ID
	StorageCFKeyPath   string // Path to CloudFront private key file

	// Audit logging configuration
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	AuditLogLogin      string // Login attempts: "all" or "db" (always stored)
	AuditLogEnrollment string // Registration events
	AuditLogSession    string // Session start and end
	AuditRetention     time.Duration

	// Voice match policy
	VoiceThreshold float64 // Cosine similarity a candidate must exceed (default: 0.95)
	VoiceMatchRule string  // "gt" (default) or "gte"

	// Codec
	Codec        string        // "ffmpeg" or "native"
	FFmpegPath   string        // ffmpeg binary (blank resolves via PATH)
	CodecTimeout time.Duration // Per-recording transcode timeout
	TempDir      string        // Parent of request-scoped temp directories
	TempSweepAge time.Duration // Age after which leftover temp dirs are swept

	// Embedder
	Embedder         string        // "mfcc" or "sidecar"
	MFCCCoefficients int           // Cepstral coefficients kept by the mfcc embedder
	EmbedURL         string        // Speaker-embedding sidecar URL
	EmbedTimeout     time.Duration // Per-recording embedding timeout

	// Transcriber
	WhisperURL        string
	WhisperModel      string
	WhisperLanguage   string
	TranscribeTimeout time.Duration

	// Request handling
	EnrollConcurrency int           // Parallel extractions per registration
	MaxRecordings     int           // Recordings accepted per registration
	MaxUploadBytes    int64         // Request body cap for /register and /login
	AuditWriteTimeout time.Duration // Bound on each audit or attempt write
	RequestTimeout    time.Duration // Whole-request deadline for voice endpoints
}
