package testutil

import (
	"math"

	"github.com/dalemusser/voxsecure/internal/app/system/codec"
)

// SineWAV returns a normalized (16 kHz mono PCM16) WAV holding the sum of the
// given tones for the requested duration.
func SineWAV(seconds float64, freqs ...float64) []byte {
	n := int(float64(codec.SampleRate) * seconds)
	samples := make([]float64, n)
	amp := 0.8 / float64(max(len(freqs), 1))
	for i := range samples {
		for _, f := range freqs {
			samples[i] += amp * math.Sin(2*math.Pi*f*float64(i)/codec.SampleRate)
		}
	}
	return codec.EncodeWAV(codec.Audio{SampleRate: codec.SampleRate, Channels: 1, Samples: samples})
}
