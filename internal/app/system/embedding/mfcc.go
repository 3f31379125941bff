package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/dalemusser/voxsecure/internal/app/system/codec"
	"github.com/dalemusser/voxsecure/internal/app/system/voiceerr"
)

// ErrTooShort is returned when a recording holds less than one analysis window.
var ErrTooShort = errors.New("recording shorter than one analysis window")

// MFCCConfig controls MFCC extraction.
//
// Defaults follow the common speech front-end at 16 kHz:
//
//	WindowSize:   400 (25 ms)
//	HopSize:      160 (10 ms)
//	FFTSize:      512
//	NumMels:      40
//	LowFreq:      20
//	HighFreq:     7600
//	PreEmphasis:  0.97
//	Coefficients: 13
type MFCCConfig struct {
	SampleRate   int
	WindowSize   int
	HopSize      int
	FFTSize      int
	NumMels      int
	LowFreq      float64
	HighFreq     float64
	PreEmphasis  float64
	Coefficients int
}

// DefaultMFCCConfig returns the standard 13-coefficient configuration.
func DefaultMFCCConfig() MFCCConfig {
	return MFCCConfig{
		SampleRate:   codec.SampleRate,
		WindowSize:   400,
		HopSize:      160,
		FFTSize:      512,
		NumMels:      40,
		LowFreq:      20,
		HighFreq:     7600,
		PreEmphasis:  0.97,
		Coefficients: 13,
	}
}

// Validate reports configuration errors.
func (c MFCCConfig) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("sample rate must be positive")
	case c.WindowSize <= 0 || c.HopSize <= 0:
		return fmt.Errorf("window and hop must be positive")
	case !isPowerOfTwo(c.FFTSize) || c.FFTSize < c.WindowSize:
		return fmt.Errorf("fft size %d must be a power of two >= window size %d", c.FFTSize, c.WindowSize)
	case c.NumMels <= 0:
		return fmt.Errorf("mel bins must be positive")
	case c.Coefficients <= 0 || c.Coefficients > c.NumMels:
		return fmt.Errorf("coefficients must be in [1, %d]", c.NumMels)
	case c.LowFreq < 0 || c.HighFreq <= c.LowFreq || c.HighFreq > float64(c.SampleRate)/2:
		return fmt.Errorf("mel range [%v, %v] invalid for %d Hz", c.LowFreq, c.HighFreq, c.SampleRate)
	}
	return nil
}

// MFCC is the in-process embedder. Its vector is the per-coefficient mean of
// the MFCC matrix over all frames.
type MFCC struct {
	cfg     MFCCConfig
	window  []float64
	melBank [][]float64
}

// NewMFCC builds an MFCC embedder, precomputing the window and filterbank.
func NewMFCC(cfg MFCCConfig) (*MFCC, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("mfcc config: %w", err)
	}
	return &MFCC{
		cfg:     cfg,
		window:  hammingWindow(cfg.WindowSize),
		melBank: melFilterBank(cfg.NumMels, cfg.FFTSize, cfg.SampleRate, cfg.LowFreq, cfg.HighFreq),
	}, nil
}

// Name identifies the embedder and its output dimension.
func (m *MFCC) Name() string {
	return fmt.Sprintf("mfcc-mean-%d", m.cfg.Coefficients)
}

// Embed decodes wav and returns the mean MFCC vector.
func (m *MFCC) Embed(ctx context.Context, wav []byte) ([]float64, error) {
	a, err := codec.DecodeWAV(wav)
	if err != nil {
		return nil, voiceerr.Wrap(voiceerr.ErrEmbeddingFailure, err)
	}
	a = a.Mono()
	if a.SampleRate != m.cfg.SampleRate {
		return nil, fmt.Errorf("%w: expected %d Hz audio, got %d Hz",
			voiceerr.ErrEmbeddingFailure, m.cfg.SampleRate, a.SampleRate)
	}

	frames, err := m.Frames(ctx, a.Samples)
	if err != nil {
		return nil, voiceerr.Wrap(voiceerr.ErrEmbeddingFailure, err)
	}

	mean := make([]float64, m.cfg.Coefficients)
	for _, f := range frames {
		for i, v := range f {
			mean[i] += v
		}
	}
	for i := range mean {
		mean[i] /= float64(len(frames))
	}
	return mean, nil
}

// Frames computes the MFCC matrix, one row of Coefficients per frame.
func (m *MFCC) Frames(ctx context.Context, samples []float64) ([][]float64, error) {
	cfg := m.cfg
	if len(samples) < cfg.WindowSize {
		return nil, ErrTooShort
	}

	numFrames := (len(samples)-cfg.WindowSize)/cfg.HopSize + 1
	half := cfg.FFTSize/2 + 1
	buf := make([]complex128, cfg.FFTSize)
	logMel := make([]float64, cfg.NumMels)
	out := make([][]float64, numFrames)

	for t := 0; t < numFrames; t++ {
		// Long recordings check for cancellation once per second of audio.
		if t%100 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		start := t * cfg.HopSize
		for i := 0; i < cfg.WindowSize; i++ {
			s := samples[start+i]
			if i > 0 {
				s -= cfg.PreEmphasis * samples[start+i-1]
			}
			buf[i] = complex(s*m.window[i], 0)
		}
		for i := cfg.WindowSize; i < cfg.FFTSize; i++ {
			buf[i] = 0
		}
		fft(buf)

		for j, filter := range m.melBank {
			var e float64
			for k := 0; k < half; k++ {
				if filter[k] == 0 {
					continue
				}
				re, im := real(buf[k]), imag(buf[k])
				e += filter[k] * (re*re + im*im)
			}
			if e < 1e-10 {
				e = 1e-10
			}
			logMel[j] = 10 * math.Log10(e)
		}
		out[t] = dctII(logMel, cfg.Coefficients)
	}
	return out, nil
}
