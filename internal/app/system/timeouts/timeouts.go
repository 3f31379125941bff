// Package timeouts provides centralized timeout values for handler operations
// and for every call that leaves the process (codec, embedder, transcriber,
// audit store).
package timeouts

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Default timeout values (used if Configure is not called).
const (
	DefaultPing       = 2 * time.Second
	DefaultShort      = 5 * time.Second
	DefaultMedium     = 10 * time.Second
	DefaultLong       = 30 * time.Second
	DefaultCodec      = 30 * time.Second
	DefaultEmbed      = 30 * time.Second
	DefaultTranscribe = 120 * time.Second
	DefaultAuditWrite = 5 * time.Second
)

var mu sync.RWMutex

var (
	ping       = DefaultPing
	short      = DefaultShort
	medium     = DefaultMedium
	long       = DefaultLong
	codec      = DefaultCodec
	embed      = DefaultEmbed
	transcribe = DefaultTranscribe
	auditWrite = DefaultAuditWrite
)

func get(v *time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return *v
}

// Ping returns the timeout for health checks.
func Ping() time.Duration { return get(&ping) }

// Short returns the timeout for simple lookups such as FindByEmail.
func Short() time.Duration { return get(&short) }

// Medium returns the timeout for moderate operations such as audit queries.
func Medium() time.Duration { return get(&medium) }

// Long returns the timeout for complex operations.
func Long() time.Duration { return get(&long) }

// Codec returns the timeout for one transcoding call.
func Codec() time.Duration { return get(&codec) }

// Embed returns the timeout for one embedding call.
func Embed() time.Duration { return get(&embed) }

// Transcribe returns the timeout for one speech-to-text call.
func Transcribe() time.Duration { return get(&transcribe) }

// AuditWrite returns the timeout for persisting one login attempt.
func AuditWrite() time.Duration { return get(&auditWrite) }

// Config holds timeout configuration values. Zero fields are left unchanged.
type Config struct {
	Ping       time.Duration
	Short      time.Duration
	Medium     time.Duration
	Long       time.Duration
	Codec      time.Duration
	Embed      time.Duration
	Transcribe time.Duration
	AuditWrite time.Duration
}

// Configure sets custom timeout values.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	for _, p := range []struct {
		dst *time.Duration
		v   time.Duration
	}{
		{&ping, cfg.Ping},
		{&short, cfg.Short},
		{&medium, cfg.Medium},
		{&long, cfg.Long},
		{&codec, cfg.Codec},
		{&embed, cfg.Embed},
		{&transcribe, cfg.Transcribe},
		{&auditWrite, cfg.AuditWrite},
	} {
		if p.v > 0 {
			*p.dst = p.v
		}
	}
}

// Reset restores all timeouts to defaults.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	ping = DefaultPing
	short = DefaultShort
	medium = DefaultMedium
	long = DefaultLong
	codec = DefaultCodec
	embed = DefaultEmbed
	transcribe = DefaultTranscribe
	auditWrite = DefaultAuditWrite
}

// Current returns the current timeout configuration.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return Config{
		Ping:       ping,
		Short:      short,
		Medium:     medium,
		Long:       long,
		Codec:      codec,
		Embed:      embed,
		Transcribe: transcribe,
		AuditWrite: auditWrite,
	}
}

// WithTimeout creates a context with timeout and logging.
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if ctx.Err() == context.DeadlineExceeded && log != nil {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
