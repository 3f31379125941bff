package testutil

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// FakeTranscoder copies the input file to the output unchanged, so tests can
// feed already-normalized WAV through the pipeline. It records every temp
// directory it was handed.
type FakeTranscoder struct {
	Err   error
	Panic bool

	calls atomic.Int64
	mu    sync.Mutex
	dirs  []string
}

// Transcode implements codec.Transcoder.
func (f *FakeTranscoder) Transcode(ctx context.Context, src, dst string) error {
	f.calls.Add(1)
	f.mu.Lock()
	f.dirs = append(f.dirs, filepath.Dir(src))
	f.mu.Unlock()

	if f.Panic {
		panic("fake transcoder panic")
	}
	if f.Err != nil {
		return f.Err
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o600)
}

// Calls returns how many times Transcode ran.
func (f *FakeTranscoder) Calls() int { return int(f.calls.Load()) }

// Dirs returns the temp directories Transcode was called in.
func (f *FakeTranscoder) Dirs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.dirs)
}

// FakeEmbedder returns preset vectors. Vectors is keyed by the exact audio
// bytes it receives; anything else gets Default.
type FakeEmbedder struct {
	Vectors map[string][]float64
	Default []float64
	Err     error
	Panic   bool
	// Delay blocks each call until it elapses or ctx is done.
	Delay time.Duration

	calls atomic.Int64
}

// Name implements embedding.Embedder.
func (f *FakeEmbedder) Name() string { return "fake" }

// Embed implements embedding.Embedder.
func (f *FakeEmbedder) Embed(ctx context.Context, wav []byte) ([]float64, error) {
	f.calls.Add(1)
	if f.Panic {
		panic("fake embedder panic")
	}
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.Err != nil {
		return nil, f.Err
	}
	if v, ok := f.Vectors[string(wav)]; ok {
		return slices.Clone(v), nil
	}
	return slices.Clone(f.Default), nil
}

// Calls returns how many times Embed ran.
func (f *FakeEmbedder) Calls() int { return int(f.calls.Load()) }

// FakeTranscriber returns Text for every call.
type FakeTranscriber struct {
	Text  string
	Err   error
	Panic bool

	calls atomic.Int64
}

// Transcribe implements transcribe.Transcriber.
func (f *FakeTranscriber) Transcribe(ctx context.Context, wav []byte) (string, error) {
	f.calls.Add(1)
	if f.Panic {
		panic("fake transcriber panic")
	}
	if f.Err != nil {
		return "", f.Err
	}
	return f.Text, nil
}

// Calls returns how many times Transcribe ran.
func (f *FakeTranscriber) Calls() int { return int(f.calls.Load()) }
