// Package voiceerr defines the error taxonomy shared by enrollment and login.
//
// Components wrap one of these sentinels with fmt.Errorf("%w: ...") so that
// callers can classify failures with errors.Is without depending on the
// component that produced them.
package voiceerr

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat is returned when a recording's container format is not accepted.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
	// ErrCodecFailure is returned when transcoding to normalized PCM fails.
	ErrCodecFailure = errors.New("audio codec failure")
	// ErrEmbeddingFailure is returned when the embedder cannot produce a vector.
	ErrEmbeddingFailure = errors.New("embedding failure")
	// ErrTranscriptionFailure is returned when speech-to-text fails.
	ErrTranscriptionFailure = errors.New("transcription failure")
	// ErrDimensionMismatch is returned when two vectors of different length are compared or stored together.
	ErrDimensionMismatch = errors.New("voiceprint dimension mismatch")
	// ErrDuplicateEmail is returned when a profile already exists for an email.
	ErrDuplicateEmail = errors.New("a profile with this email already exists")
	// ErrStorage is returned for persistence failures.
	ErrStorage = errors.New("storage failure")
	// ErrNotFound is returned when no profile exists for an email. It is an
	// expected outcome, not a fault.
	ErrNotFound = errors.New("profile not found")
	// ErrNoRecordings is returned when enrollment is attempted without audio.
	ErrNoRecordings = errors.New("at least one recording is required")
	// ErrEmbedderMismatch is returned when a profile was enrolled with a
	// different embedder than the one now configured.
	ErrEmbedderMismatch = errors.New("voiceprint embedder mismatch")
)

// Wrap annotates err with kind so that errors.Is(result, kind) holds while the
// underlying cause stays visible in the message. A nil err yields nil.
func Wrap(kind, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// Kind returns the taxonomy sentinel err belongs to, or nil when err is not
// classified.
func Kind(err error) error {
	for _, k := range []error{
		ErrUnsupportedFormat,
		ErrCodecFailure,
		ErrEmbeddingFailure,
		ErrTranscriptionFailure,
		ErrDimensionMismatch,
		ErrDuplicateEmail,
		ErrStorage,
		ErrNotFound,
		ErrNoRecordings,
		ErrEmbedderMismatch,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
