// Package embedding turns normalized audio into fixed-length speaker
// feature vectors.
//
// Two embedders are provided. MFCC runs in-process and averages mel-frequency
// cepstral coefficients over the whole recording. Sidecar delegates to an
// HTTP service that hosts a neural speaker model. Both receive the
// normalized WAV produced by the codec package and report failures as
// voiceerr.ErrEmbeddingFailure.
package embedding

import "context"

// Embedder produces a feature vector for one normalized recording.
// Vectors from the same embedder always have the same length.
type Embedder interface {
	Embed(ctx context.Context, wav []byte) ([]float64, error)
	// Name identifies the embedder and its parameters; it is stored with
	// every profile so vectors from different embedders are never compared.
	Name() string
}
