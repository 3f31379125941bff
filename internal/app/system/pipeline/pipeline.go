// Package pipeline turns one uploaded recording into a speaker feature vector.
//
// Each call works in its own temp directory whose name comes from a freshly
// generated UUID. Nothing the client sends (filename, email, form values)
// ever reaches the filesystem as a path component. The directory is removed
// on every exit path, including panics in the transcoder or embedder.
package pipeline

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dalemusser/voxsecure/internal/app/system/codec"
	"github.com/dalemusser/voxsecure/internal/app/system/embedding"
	"github.com/dalemusser/voxsecure/internal/app/system/metrics"
	"github.com/dalemusser/voxsecure/internal/app/system/timeouts"
	"github.com/dalemusser/voxsecure/internal/app/system/voiceerr"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

// TempPrefix starts the name of every request-scoped temp directory.
const TempPrefix = "voxsecure-"

// Recording is one uploaded audio file. Format is a lowercase container
// name such as "webm" or "wav".
type Recording struct {
	Data   []byte
	Format string
}

// Feature is the result of a successful extraction.
type Feature struct {
	// Vector is the speaker embedding.
	Vector []float64
	// WAV is the normalized audio, kept in memory for transcription.
	WAV []byte
	// Digest is the BLAKE2b-256 hex digest of the original upload.
	Digest string
}

// Config bounds the external calls made by Extract.
type Config struct {
	TempDir      string
	CodecTimeout time.Duration
	EmbedTimeout time.Duration
}

// Pipeline composes a Transcoder and an Embedder.
type Pipeline struct {
	transcoder codec.Transcoder
	embedder   embedding.Embedder
	cfg        Config
	logger     *zap.Logger
}

// New returns a Pipeline. Zero timeouts fall back to the shared defaults.
func New(t codec.Transcoder, e embedding.Embedder, cfg Config, logger *zap.Logger) *Pipeline {
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.CodecTimeout <= 0 {
		cfg.CodecTimeout = timeouts.Codec()
	}
	if cfg.EmbedTimeout <= 0 {
		cfg.EmbedTimeout = timeouts.Embed()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{transcoder: t, embedder: e, cfg: cfg, logger: logger}
}

// EmbedderName reports which embedder produces this pipeline's vectors.
func (p *Pipeline) EmbedderName() string { return p.embedder.Name() }

// Accepts reports whether the configured transcoder handles format.
func (p *Pipeline) Accepts(format string) bool { return codec.Accepts(p.transcoder, format) }

// Extract normalizes rec and computes its embedding.
//
// Errors wrap voiceerr.ErrUnsupportedFormat, voiceerr.ErrCodecFailure or
// voiceerr.ErrEmbeddingFailure.
func (p *Pipeline) Extract(ctx context.Context, rec Recording) (Feature, error) {
	start := time.Now()
	defer metrics.ObserveStage("extract", start)

	format := strings.ToLower(strings.TrimSpace(rec.Format))
	if !p.Accepts(format) {
		return Feature{}, fmt.Errorf("%w: %q", voiceerr.ErrUnsupportedFormat, rec.Format)
	}
	if len(rec.Data) == 0 {
		return Feature{}, fmt.Errorf("%w: empty recording", voiceerr.ErrCodecFailure)
	}
	if err := ctx.Err(); err != nil {
		return Feature{}, voiceerr.Wrap(voiceerr.ErrCodecFailure, err)
	}

	dir := filepath.Join(p.cfg.TempDir, TempPrefix+uuid.NewString())
	if err := os.Mkdir(dir, 0o700); err != nil {
		return Feature{}, fmt.Errorf("%w: create temp dir: %w", voiceerr.ErrCodecFailure, err)
	}
	defer p.cleanup(dir)

	src := filepath.Join(dir, "input."+format)
	dst := filepath.Join(dir, "normalized.wav")
	if err := os.WriteFile(src, rec.Data, 0o600); err != nil {
		return Feature{}, fmt.Errorf("%w: write input: %w", voiceerr.ErrCodecFailure, err)
	}

	wav, err := p.transcode(ctx, src, dst)
	if err != nil {
		return Feature{}, err
	}

	vec, err := p.embed(ctx, wav)
	if err != nil {
		return Feature{}, err
	}

	return Feature{Vector: vec, WAV: wav, Digest: Digest(rec.Data)}, nil
}

func (p *Pipeline) transcode(ctx context.Context, src, dst string) ([]byte, error) {
	start := time.Now()
	defer metrics.ObserveStage("transcode", start)

	cctx, cancel := timeouts.WithTimeout(ctx, p.cfg.CodecTimeout, p.logger, "transcode")
	defer cancel()

	if err := p.transcoder.Transcode(cctx, src, dst); err != nil {
		return nil, voiceerr.Wrap(voiceerr.ErrCodecFailure, err)
	}
	wav, err := os.ReadFile(dst)
	if err != nil {
		return nil, fmt.Errorf("%w: read normalized audio: %w", voiceerr.ErrCodecFailure, err)
	}
	return wav, nil
}

func (p *Pipeline) embed(ctx context.Context, wav []byte) ([]float64, error) {
	start := time.Now()
	defer metrics.ObserveStage("embed", start)

	ectx, cancel := timeouts.WithTimeout(ctx, p.cfg.EmbedTimeout, p.logger, "embed")
	defer cancel()

	vec, err := p.embedder.Embed(ectx, wav)
	if err != nil {
		return nil, voiceerr.Wrap(voiceerr.ErrEmbeddingFailure, err)
	}
	if len(vec) == 0 {
		return nil, fmt.Errorf("%w: empty vector", voiceerr.ErrEmbeddingFailure)
	}
	return vec, nil
}

func (p *Pipeline) cleanup(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		metrics.TempCleanupFailures.Inc()
		p.logger.Warn("failed to remove temp dir", zap.String("dir", dir), zap.Error(err))
	}
}

// Digest returns the BLAKE2b-256 hex digest of data.
func Digest(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}
