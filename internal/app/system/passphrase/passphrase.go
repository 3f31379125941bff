// Package passphrase checks that a spoken recording contains the expected
// secret phrase.
//
// Matching is on whole words. Both sides are NFKC-normalized, lower-cased
// and split into words of Unicode letters, marks and digits (apostrophes inside a
// word are kept, so "don't" stays one word). The phrase matches when its
// words appear as a contiguous run in the transcript: "access" matches
// "please grant access now" but not "accessory granted".
package passphrase

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/dalemusser/voxsecure/internal/app/system/metrics"
	"github.com/dalemusser/voxsecure/internal/app/system/timeouts"
	"github.com/dalemusser/voxsecure/internal/app/system/transcribe"
	"github.com/dalemusser/voxsecure/internal/app/system/voiceerr"
	"go.uber.org/zap"
	"golang.org/x/text/unicode/norm"
)

// Result is the outcome of one verification.
type Result struct {
	// Text is the trimmed, lower-cased transcript.
	Text    string
	Present bool
}

// Verifier transcribes audio and looks for the expected phrase.
type Verifier struct {
	transcriber transcribe.Transcriber
	timeout     time.Duration
	logger      *zap.Logger
}

// New returns a Verifier. A non-positive timeout uses timeouts.Transcribe().
func New(t transcribe.Transcriber, timeout time.Duration, logger *zap.Logger) *Verifier {
	if timeout <= 0 {
		timeout = timeouts.Transcribe()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Verifier{transcriber: t, timeout: timeout, logger: logger}
}

// Verify transcribes wav and reports whether expected was spoken. Failures
// wrap voiceerr.ErrTranscriptionFailure.
func (v *Verifier) Verify(ctx context.Context, wav []byte, expected string) (Result, error) {
	start := time.Now()
	defer metrics.ObserveStage("transcribe", start)

	tctx, cancel := timeouts.WithTimeout(ctx, v.timeout, v.logger, "transcribe")
	defer cancel()

	text, err := v.transcriber.Transcribe(tctx, wav)
	if err != nil {
		return Result{}, voiceerr.Wrap(voiceerr.ErrTranscriptionFailure, err)
	}

	text = strings.ToLower(strings.TrimSpace(text))
	return Result{Text: text, Present: Contains(text, expected)}, nil
}

// Contains reports whether phrase occurs in transcript on word boundaries.
// An empty phrase never matches.
func Contains(transcript, phrase string) bool {
	want := Words(phrase)
	if len(want) == 0 {
		return false
	}
	have := Words(transcript)
	for i := 0; i+len(want) <= len(have); i++ {
		match := true
		for j := range want {
			if have[i+j] != want[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// Words splits s into normalized lower-case words.
func Words(s string) []string {
	s = strings.ToLower(norm.NFKC.String(s))
	rs := []rune(s)

	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}

	for i, r := range rs {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.M, r):
			cur.WriteRune(r)
		case isApostrophe(r) && cur.Len() > 0 && i+1 < len(rs) && isWordRune(rs[i+1]):
			cur.WriteRune('\'')
		default:
			flush()
		}
	}
	flush()
	return words
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isApostrophe(r rune) bool {
	return r == '\'' || r == '’'
}
