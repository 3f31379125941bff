package codec

import (
	"context"
	"fmt"
	"os"

	"github.com/dalemusser/voxsecure/internal/app/system/voiceerr"
	resampling "github.com/tphakala/go-audio-resampling"
)

// Native is an in-process Transcoder for WAV uploads. It downmixes to mono
// and resamples to SampleRate without any external binary, which makes it
// the codec of choice for tests and for deployments that only receive WAV.
type Native struct{}

// NewNative returns a WAV-only Transcoder.
func NewNative() *Native { return &Native{} }

// Supports reports whether format can be decoded in-process.
func (n *Native) Supports(format string) bool { return format == "wav" }

// Transcode reads the WAV file at src and writes the normalized WAV to dst.
func (n *Native) Transcode(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return voiceerr.Wrap(voiceerr.ErrCodecFailure, err)
	}

	raw, err := os.ReadFile(src)
	if err != nil {
		return voiceerr.Wrap(voiceerr.ErrCodecFailure, err)
	}
	in, err := DecodeWAV(raw)
	if err != nil {
		return voiceerr.Wrap(voiceerr.ErrCodecFailure, err)
	}

	out, err := Normalize(in)
	if err != nil {
		return voiceerr.Wrap(voiceerr.ErrCodecFailure, err)
	}
	if err := ctx.Err(); err != nil {
		return voiceerr.Wrap(voiceerr.ErrCodecFailure, err)
	}

	if err := os.WriteFile(dst, EncodeWAV(out), 0o600); err != nil {
		return voiceerr.Wrap(voiceerr.ErrCodecFailure, err)
	}
	return nil
}

// Normalize downmixes a to mono and resamples it to SampleRate.
func Normalize(a Audio) (Audio, error) {
	mono := a.Mono()
	if mono.SampleRate == SampleRate || len(mono.Samples) == 0 {
		return Audio{SampleRate: SampleRate, Channels: Channels, Samples: mono.Samples}, nil
	}

	rs, err := resampling.New(&resampling.Config{
		InputRate:  float64(mono.SampleRate),
		OutputRate: float64(SampleRate),
		Channels:   Channels,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return Audio{}, fmt.Errorf("create resampler: %w", err)
	}
	samples, err := rs.Process(mono.Samples)
	if err != nil {
		return Audio{}, fmt.Errorf("resample %d Hz to %d Hz: %w", mono.SampleRate, SampleRate, err)
	}
	return Audio{SampleRate: SampleRate, Channels: Channels, Samples: samples}, nil
}
