// Package codec normalizes uploaded recordings to the single audio layout the
// rest of the system understands: 16 kHz, mono, signed 16-bit little-endian
// PCM in a WAV container.
package codec

import (
	"context"
	"slices"
	"strings"
)

// Target layout produced by every Transcoder.
const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
)

// Transcoder converts the recording at src into a normalized WAV file at dst.
// Both paths are generated by the caller. Failures wrap voiceerr.ErrCodecFailure.
type Transcoder interface {
	Transcode(ctx context.Context, src, dst string) error
}

// FormatChecker is implemented by transcoders that accept only a subset of
// the supported formats.
type FormatChecker interface {
	Supports(format string) bool
}

// supportedFormats are the container formats accepted for upload.
var supportedFormats = []string{"webm", "ogg", "wav", "mp3", "m4a", "mp4", "flac", "aac", "opus"}

// IsSupported reports whether format (a lowercase extension without the dot)
// is an accepted container format.
func IsSupported(format string) bool {
	return slices.Contains(supportedFormats, strings.ToLower(format))
}

// Accepts reports whether t can handle format, combining the global format
// list with any restriction the transcoder declares.
func Accepts(t Transcoder, format string) bool {
	if !IsSupported(format) {
		return false
	}
	if fc, ok := t.(FormatChecker); ok {
		return fc.Supports(strings.ToLower(format))
	}
	return true
}
