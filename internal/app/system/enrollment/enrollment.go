// Package enrollment registers a new voice profile from a set of recordings.
//
// Enroll rejects bad input before doing any audio work, extracts one
// voiceprint per recording concurrently (bounded, order preserved), checks
// that every vector has the same dimension and then creates the profile in a
// single store write. When archiving is enabled the raw recordings are
// written first and removed again if the profile cannot be created.
package enrollment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	profilestore "github.com/dalemusser/voxsecure/internal/app/store/profiles"
	"github.com/dalemusser/voxsecure/internal/app/system/htmlsanitize"
	"github.com/dalemusser/voxsecure/internal/app/system/inputval"
	"github.com/dalemusser/voxsecure/internal/app/system/metrics"
	"github.com/dalemusser/voxsecure/internal/app/system/normalize"
	"github.com/dalemusser/voxsecure/internal/app/system/pipeline"
	"github.com/dalemusser/voxsecure/internal/app/system/timeouts"
	"github.com/dalemusser/voxsecure/internal/app/system/voiceerr"
	"github.com/dalemusser/voxsecure/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidInput is matched by every *InputError.
var ErrInvalidInput = errors.New("invalid registration input")

// InputError reports field validation failures.
type InputError struct {
	Result *inputval.Result
}

func (e *InputError) Error() string { return e.Result.All() }

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// Fields maps field name to message.
func (e *InputError) Fields() map[string]string {
	out := make(map[string]string, len(e.Result.Errors))
	for _, fe := range e.Result.Errors {
		out[fe.Field] = fe.Message
	}
	return out
}

// ProfileStore is the part of the profile store enrollment needs.
type ProfileStore interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	CreateProfile(ctx context.Context, email, name, mobile string, voiceprints []models.Voiceprint, opts ...profilestore.CreateOption) (models.UserProfile, error)
}

// Extractor turns recordings into voiceprints. *pipeline.Pipeline satisfies it.
type Extractor interface {
	Extract(ctx context.Context, rec pipeline.Recording) (pipeline.Feature, error)
	Accepts(format string) bool
	EmbedderName() string
}

// Archive keeps the raw enrollment audio. storage.Store satisfies it.
type Archive interface {
	Put(ctx context.Context, path string, r io.Reader, opts *storage.PutOptions) error
	Delete(ctx context.Context, path string) error
}

// Config tunes enrollment.
type Config struct {
	// Concurrency bounds simultaneous extractions. Zero means 4.
	Concurrency int
	// ArchivePrefix is the key prefix for archived recordings.
	ArchivePrefix string
	// MaxRecordings caps recordings per enrollment. Zero means 10.
	MaxRecordings int
}

// Input is one registration request.
type Input struct {
	Email      string
	Name       string
	Mobile     string
	Recordings []pipeline.Recording
}

// fields is the validated shape of Input.
type fields struct {
	Email  string `json:"email" validate:"required,email,max=254" label:"Email"`
	Name   string `json:"name" validate:"required,max=200" label:"Name"`
	Mobile string `json:"mobile" validate:"mobile" label:"Mobile"`
}

// Service runs enrollments. It is safe for concurrent use.
type Service struct {
	profiles  ProfileStore
	extractor Extractor
	archive   Archive
	cfg       Config
	logger    *zap.Logger
}

// New returns a Service. archive may be nil to disable archiving.
func New(profiles ProfileStore, extractor Extractor, archive Archive, cfg Config, logger *zap.Logger) *Service {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.MaxRecordings <= 0 {
		cfg.MaxRecordings = 10
	}
	if cfg.ArchivePrefix == "" {
		cfg.ArchivePrefix = "enrollments"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{profiles: profiles, extractor: extractor, archive: archive, cfg: cfg, logger: logger}
}

// Enroll validates in, extracts its voiceprints and creates the profile.
//
// Errors: voiceerr.ErrNoRecordings, ErrInvalidInput (*InputError),
// voiceerr.ErrUnsupportedFormat, voiceerr.ErrDuplicateEmail,
// voiceerr.ErrCodecFailure, voiceerr.ErrEmbeddingFailure,
// voiceerr.ErrDimensionMismatch or voiceerr.ErrStorage. Nothing is written
// unless the profile is created.
func (s *Service) Enroll(ctx context.Context, in Input) (profile models.UserProfile, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveStage("enroll", start)
		metrics.Enrollments.WithLabelValues(resultLabel(err)).Inc()
	}()

	if len(in.Recordings) == 0 {
		return models.UserProfile{}, voiceerr.ErrNoRecordings
	}

	f := fields{
		Email:  normalize.Email(in.Email),
		Name:   normalize.Name(htmlsanitize.PlainText(in.Name)),
		Mobile: strings.TrimSpace(htmlsanitize.PlainText(in.Mobile)),
	}
	if res := inputval.Validate(f); res.HasErrors() {
		return models.UserProfile{}, &InputError{Result: res}
	}
	if len(in.Recordings) > s.cfg.MaxRecordings {
		return models.UserProfile{}, &InputError{Result: &inputval.Result{Errors: []inputval.FieldError{{
			Field:   "recordings",
			Label:   "Recordings",
			Message: fmt.Sprintf("At most %d recordings are accepted.", s.cfg.MaxRecordings),
		}}}}
	}
	for i, rec := range in.Recordings {
		if !s.extractor.Accepts(rec.Format) {
			return models.UserProfile{}, fmt.Errorf("%w: recording %d has format %q", voiceerr.ErrUnsupportedFormat, i, rec.Format)
		}
	}

	// Fast path only; the unique index decides races.
	exists, err := s.profiles.ExistsByEmail(ctx, f.Email)
	if err != nil {
		return models.UserProfile{}, err
	}
	if exists {
		return models.UserProfile{}, voiceerr.ErrDuplicateEmail
	}

	voiceprints, err := s.extract(ctx, in.Recordings)
	if err != nil {
		return models.UserProfile{}, err
	}

	keys, err := s.store(ctx, in.Recordings)
	if err != nil {
		return models.UserProfile{}, err
	}

	opts := []profilestore.CreateOption{profilestore.WithEmbedder(s.extractor.EmbedderName())}
	if len(keys) > 0 {
		opts = append(opts, profilestore.WithRecordings(keys))
	}
	profile, err = s.profiles.CreateProfile(ctx, f.Email, f.Name, f.Mobile, voiceprints, opts...)
	if err != nil {
		s.discard(ctx, keys)
		return models.UserProfile{}, err
	}

	s.logger.Info("profile enrolled",
		zap.String("email", profile.Email),
		zap.String("profile_id", profile.ID.Hex()),
		zap.Int("voiceprints", profile.VoiceprintCount()),
		zap.Int("dimension", profile.Dimension),
		zap.Duration("took", time.Since(start)))
	return profile, nil
}

// extract runs the pipeline on every recording with bounded concurrency. The
// first failure cancels the rest.
func (s *Service) extract(ctx context.Context, recs []pipeline.Recording) ([]models.Voiceprint, error) {
	out := make([]models.Voiceprint, len(recs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for i, rec := range recs {
		g.Go(func() error {
			feat, err := s.extractOne(gctx, rec)
			if err != nil {
				return fmt.Errorf("recording %d: %w", i, err)
			}
			out[i] = models.Voiceprint(feat.Vector)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dim := len(out[0])
	for i, vp := range out {
		if len(vp) != dim {
			return nil, fmt.Errorf("%w: recording %d produced %d values, recording 0 produced %d",
				voiceerr.ErrDimensionMismatch, i, len(vp), dim)
		}
	}
	return out, nil
}

// extractOne runs on an errgroup goroutine, outside the request goroutine
// that chi's Recoverer watches, so a collaborator panic is turned into an
// extraction error here.
func (s *Service) extractOne(ctx context.Context, rec pipeline.Recording) (feat pipeline.Feature, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("feature extraction panicked",
				zap.Any("panic", r),
				zap.Stack("stack"))
			err = fmt.Errorf("%w: extraction panicked: %v", voiceerr.ErrEmbeddingFailure, r)
		}
	}()
	return s.extractor.Extract(ctx, rec)
}

// store archives the raw recordings. On failure anything already written is
// removed.
func (s *Service) store(ctx context.Context, recs []pipeline.Recording) ([]string, error) {
	if s.archive == nil {
		return nil, nil
	}

	batch := uuid.NewString()
	keys := make([]string, 0, len(recs))
	for i, rec := range recs {
		format := strings.ToLower(strings.TrimSpace(rec.Format))
		key := path.Join(s.cfg.ArchivePrefix, batch, fmt.Sprintf("%d.%s", i, format))

		pctx, cancel := timeouts.WithTimeout(ctx, timeouts.Medium(), s.logger, "archive put")
		err := s.archive.Put(pctx, key, bytes.NewReader(rec.Data), &storage.PutOptions{
			ContentType: "audio/" + format,
		})
		cancel()
		if err != nil {
			s.discard(ctx, keys)
			return nil, voiceerr.Wrap(voiceerr.ErrStorage, fmt.Errorf("archive recording %d: %w", i, err))
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// discard removes archived recordings. Failures are logged and left for
// manual cleanup.
func (s *Service) discard(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Medium())
	defer cancel()
	for _, k := range keys {
		if err := s.archive.Delete(dctx, k); err != nil {
			s.logger.Warn("failed to remove archived recording", zap.String("key", k), zap.Error(err))
		}
	}
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsClientError(err):
		return "rejected"
	default:
		return "failed"
	}
}

// IsClientError reports whether err was caused by the request rather than
// the server.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, voiceerr.ErrNoRecordings) ||
		errors.Is(err, voiceerr.ErrUnsupportedFormat) ||
		errors.Is(err, voiceerr.ErrDimensionMismatch) ||
		errors.Is(err, voiceerr.ErrDuplicateEmail)
}
