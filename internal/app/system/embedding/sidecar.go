package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/voxsecure/internal/app/system/voiceerr"
)

const (
	defaultSidecarURL     = "http://localhost:8390"
	defaultSidecarTimeout = 30 * time.Second
)

// SidecarConfig configures the HTTP speaker-embedding service client.
type SidecarConfig struct {
	URL     string
	Timeout time.Duration
}

// Sidecar posts audio to a speaker-embedding service and returns the vector
// it computes. The service accepts multipart "audio" at POST /embed and
// replies {"embedding": [...], "model": "..."}.
type Sidecar struct {
	cfg    SidecarConfig
	client *http.Client
}

// NewSidecar returns a Sidecar client with defaults applied.
func NewSidecar(cfg SidecarConfig) *Sidecar {
	if cfg.URL == "" {
		cfg.URL = defaultSidecarURL
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSidecarTimeout
	}
	return &Sidecar{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// Name identifies the embedder by its service URL.
func (s *Sidecar) Name() string { return "sidecar:" + s.cfg.URL }

// IsAvailable checks whether the service answers its health endpoint.
func (s *Sidecar) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type sidecarResponse struct {
	Embedding []float64 `json:"embedding"`
	Model     string    `json:"model"`
}

// Embed sends wav to the service.
func (s *Sidecar) Embed(ctx context.Context, wav []byte) ([]float64, error) {
	vec, err := s.embed(ctx, wav)
	if err != nil {
		return nil, voiceerr.Wrap(voiceerr.ErrEmbeddingFailure, err)
	}
	return vec, nil
}

func (s *Sidecar) embed(ctx context.Context, wav []byte) ([]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("audio", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(wav); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL+"/embed", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("embed service error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out sidecarResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("embed service returned an empty vector")
	}
	return out.Embedding, nil
}
