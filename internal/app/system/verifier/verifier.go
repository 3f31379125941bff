// Package verifier turns a claimed identity, a recording and a passphrase into
// an authentication verdict.
//
// A login walks Started → ProfileResolved → FeatureExtracted → VoiceChecked →
// PassphraseChecked and is always closed by one deferred finalization that
// writes exactly one LoginAttempt, recovers panics and records metrics. The
// profile is resolved before any audio work, so an unknown email costs no
// embedding or transcription. A profile whose voiceprints came from another
// embedder is refused before extraction as an internal error.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/voxsecure/internal/app/system/matcher"
	"github.com/dalemusser/voxsecure/internal/app/system/metrics"
	"github.com/dalemusser/voxsecure/internal/app/system/normalize"
	"github.com/dalemusser/voxsecure/internal/app/system/passphrase"
	"github.com/dalemusser/voxsecure/internal/app/system/pipeline"
	"github.com/dalemusser/voxsecure/internal/app/system/timeouts"
	"github.com/dalemusser/voxsecure/internal/app/system/voiceerr"
	"github.com/dalemusser/voxsecure/internal/domain/models"
	"go.uber.org/zap"
)

// Messages reported to callers and stored on attempts.
const (
	MsgNotFound           = "User not found"
	MsgVoiceMismatch      = "Voice not recognized"
	MsgPassphraseMismatch = "Passphrase mismatch"
	MsgSuccess            = "Login successful"
	MsgFailedPrefix       = "Login failed: "
	// MsgInternal is the caller-facing message for internal errors. The
	// stored attempt carries the detailed cause.
	MsgInternal = MsgFailedPrefix + "internal error"
)

// ProfileFinder resolves a claimed email to an enrolled profile.
type ProfileFinder interface {
	FindByEmail(ctx context.Context, email string) (models.UserProfile, error)
}

// AttemptRecorder persists login attempts.
type AttemptRecorder interface {
	AppendAttempt(ctx context.Context, a models.LoginAttempt) error
}

// Extractor turns a recording into a candidate vector. EmbedderName must match
// the embedder a profile was enrolled with.
type Extractor interface {
	Extract(ctx context.Context, rec pipeline.Recording) (pipeline.Feature, error)
	EmbedderName() string
}

// PhraseChecker transcribes normalized audio and looks for the passphrase.
type PhraseChecker interface {
	Verify(ctx context.Context, wav []byte, expected string) (passphrase.Result, error)
}

// Config holds the decision policy and audit settings.
type Config struct {
	Policy matcher.Policy
	// AuditTimeout bounds the attempt write. Zero uses timeouts.AuditWrite().
	AuditTimeout time.Duration
	// LogAttempts mirrors every finalized attempt to the logger at info level.
	LogAttempts bool
}

// Verifier runs logins. It is safe for concurrent use.
type Verifier struct {
	profiles  ProfileFinder
	attempts  AttemptRecorder
	extractor Extractor
	phrases   PhraseChecker
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
}

// New returns a Verifier.
func New(profiles ProfileFinder, attempts AttemptRecorder, extractor Extractor, phrases PhraseChecker, cfg Config, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Policy.Rule == "" {
		cfg.Policy = matcher.DefaultPolicy()
	}
	return &Verifier{
		profiles:  profiles,
		attempts:  attempts,
		extractor: extractor,
		phrases:   phrases,
		cfg:       cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Policy returns the matching policy in effect.
func (v *Verifier) Policy() matcher.Policy { return v.cfg.Policy }

// LoginRequest is one login call.
type LoginRequest struct {
	Email      string
	Passphrase string
	Recording  pipeline.Recording
	IP         string
	UserAgent  string
}

// Verdict is the result of a login. Evidence fields are nil when the stage
// that produces them did not run.
type Verdict struct {
	Outcome models.Outcome
	// Message is safe to show the caller.
	Message string
	Email   string
	// Profile is set once the email resolved to an enrolled user.
	Profile *models.UserProfile

	BestSimilarity  *float64
	AllSimilarities []float64
	TranscribedText *string

	// Stage is Finalized once Login returns. The stored attempt records the
	// last state reached before that.
	Stage State
	// Err is the cause of an internal-error outcome.
	Err error
}

// Success reports whether the login was accepted.
func (v Verdict) Success() bool { return v.Outcome == models.OutcomeSuccess }

// Login evaluates req. It never returns an error: every failure, including a
// panic in a collaborator, becomes an internal-error verdict. Exactly one
// attempt record is written per call.
func (v *Verifier) Login(ctx context.Context, req LoginRequest) (verdict Verdict) {
	started := time.Now()
	at := v.now()
	verdict = Verdict{Email: normalize.Email(req.Email), Stage: Started}
	var digest string

	defer func() {
		if r := recover(); r != nil {
			v.logger.Error("login panicked",
				zap.String("email", verdict.Email),
				zap.String("stage", verdict.Stage.String()),
				zap.Any("panic", r),
				zap.Stack("stack"))
			verdict.fail(fmt.Errorf("panic: %v", r))
		}
		v.finalize(ctx, &verdict, req, digest, at, started)
	}()

	profile, err := v.profiles.FindByEmail(ctx, verdict.Email)
	if errors.Is(err, voiceerr.ErrNotFound) {
		verdict.Outcome = models.OutcomeNotFound
		verdict.Message = MsgNotFound
		return verdict
	}
	if err != nil {
		verdict.fail(err)
		return verdict
	}
	verdict.Profile = &profile
	verdict.Stage = ProfileResolved

	// Profiles enrolled before the embedder was recorded carry no name.
	if name := v.extractor.EmbedderName(); profile.Embedder != "" && profile.Embedder != name {
		verdict.fail(fmt.Errorf("%w: profile enrolled with %q, configured embedder is %q",
			voiceerr.ErrEmbedderMismatch, profile.Embedder, name))
		return verdict
	}

	feature, err := v.extractor.Extract(ctx, req.Recording)
	if err != nil {
		verdict.fail(err)
		return verdict
	}
	digest = feature.Digest
	verdict.Stage = FeatureExtracted

	voiceStart := time.Now()
	res, err := matcher.Match(models.Voiceprint(feature.Vector), profile.Voiceprints, v.cfg.Policy)
	metrics.ObserveStage("match", voiceStart)
	if err != nil {
		verdict.fail(err)
		return verdict
	}
	best := res.Best
	verdict.BestSimilarity = &best
	verdict.AllSimilarities = res.All
	verdict.Stage = VoiceChecked
	metrics.BestSimilarity.Observe(best)

	if !res.Matched {
		verdict.Outcome = models.OutcomeVoiceMismatch
		verdict.Message = MsgVoiceMismatch
		return verdict
	}

	phrase, err := v.phrases.Verify(ctx, feature.WAV, req.Passphrase)
	if err != nil {
		verdict.fail(err)
		return verdict
	}
	text := phrase.Text
	verdict.TranscribedText = &text
	verdict.Stage = PassphraseChecked

	if !phrase.Present {
		verdict.Outcome = models.OutcomePassphraseMismatch
		verdict.Message = MsgPassphraseMismatch
		return verdict
	}

	verdict.Outcome = models.OutcomeSuccess
	verdict.Message = MsgSuccess
	return verdict
}

func (vd *Verdict) fail(err error) {
	vd.Outcome = models.OutcomeInternalError
	vd.Message = MsgInternal
	vd.Err = err
}

// finalize persists the attempt on a context detached from the request so a
// disconnecting client cannot suppress the record. A failed write is logged
// and counted; the verdict is left as it is. The attempt is stamped with at,
// the time the login began.
func (v *Verifier) finalize(ctx context.Context, vd *Verdict, req LoginRequest, digest string, at, started time.Time) {
	message := vd.Message
	if vd.Err != nil {
		message = MsgFailedPrefix + vd.Err.Error()
	}

	attempt := models.LoginAttempt{
		Email:           vd.Email,
		Timestamp:       at,
		Outcome:         vd.Outcome,
		Message:         message,
		BestSimilarity:  vd.BestSimilarity,
		AllSimilarities: vd.AllSimilarities,
		TranscribedText: vd.TranscribedText,
		Stage:           vd.Stage.String(),
		Threshold:       v.cfg.Policy.Threshold,
		Rule:            string(v.cfg.Policy.Rule),
		RecordingDigest: digest,
		IP:              req.IP,
		UserAgent:       req.UserAgent,
		DurationMS:      time.Since(started).Milliseconds(),
	}
	if attempt.RecordingDigest == "" && len(req.Recording.Data) > 0 {
		attempt.RecordingDigest = pipeline.Digest(req.Recording.Data)
	}

	timeout := v.cfg.AuditTimeout
	if timeout <= 0 {
		timeout = timeouts.AuditWrite()
	}
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	if err := v.safeAppend(actx, attempt); err != nil {
		metrics.AuditWriteFailures.Inc()
		v.logger.Error("failed to record login attempt",
			zap.String("email", attempt.Email),
			zap.String("outcome", string(attempt.Outcome)),
			zap.Error(err))
	}

	metrics.LoginAttempts.WithLabelValues(string(vd.Outcome)).Inc()
	metrics.ObserveStage("login", started)

	if v.cfg.LogAttempts {
		fields := []zap.Field{
			zap.String("email", attempt.Email),
			zap.String("outcome", string(attempt.Outcome)),
			zap.String("stage", attempt.Stage),
			zap.Int64("duration_ms", attempt.DurationMS),
			zap.String("ip", attempt.IP),
		}
		if attempt.BestSimilarity != nil {
			fields = append(fields, zap.Float64("best_similarity", *attempt.BestSimilarity))
		}
		if vd.Err != nil {
			fields = append(fields, zap.Error(vd.Err))
		}
		v.logger.Info("login attempt", fields...)
	}

	vd.Stage = Finalized
}

// safeAppend shields finalization from a panicking recorder.
func (v *Verifier) safeAppend(ctx context.Context, a models.LoginAttempt) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("attempt recorder panicked: %v", r)
		}
	}()
	return v.attempts.AppendAttempt(ctx, a)
}
