package codec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/voxsecure/internal/app/system/voiceerr"
)

// DefaultFFmpegTimeout bounds a single conversion when none is configured.
const DefaultFFmpegTimeout = 30 * time.Second

// Command describes one subprocess invocation. Args are passed directly to
// the binary; no shell is involved.
type Command struct {
	Binary      string
	Args        []string
	GracePeriod time.Duration
}

// Result is what a finished subprocess left behind.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
}

// Runner executes a Command. The default runner is Run; tests substitute
// their own.
type Runner func(ctx context.Context, cmd Command) (*Result, error)

// FFmpeg transcodes any container ffmpeg understands into the normalized
// WAV layout.
type FFmpeg struct {
	Path    string
	Timeout time.Duration
	run     Runner
}

// NewFFmpeg returns an FFmpeg transcoder. An empty path resolves "ffmpeg"
// through PATH. A non-positive timeout uses DefaultFFmpegTimeout.
func NewFFmpeg(path string, timeout time.Duration) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	if timeout <= 0 {
		timeout = DefaultFFmpegTimeout
	}
	return &FFmpeg{Path: path, Timeout: timeout, run: Run}
}

// WithRunner replaces the subprocess runner.
func (f *FFmpeg) WithRunner(r Runner) *FFmpeg {
	f.run = r
	return f
}

// Args returns the fixed argument list used to convert src into dst.
func (f *FFmpeg) Args(src, dst string) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostdin",
		"-y",
		"-i", src,
		"-vn",
		"-ac", strconv.Itoa(Channels),
		"-ar", strconv.Itoa(SampleRate),
		"-acodec", "pcm_s16le",
		"-f", "wav",
		dst,
	}
}

// Transcode runs ffmpeg with a bounded timeout. Any failure, including the
// timeout, is reported as voiceerr.ErrCodecFailure with ffmpeg's stderr.
func (f *FFmpeg) Transcode(ctx context.Context, src, dst string) error {
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	res, err := f.run(ctx, Command{
		Binary:      f.Path,
		Args:        f.Args(src, dst),
		GracePeriod: 2 * time.Second,
	})
	if err != nil {
		if res != nil {
			if msg := strings.TrimSpace(string(res.Stderr)); msg != "" {
				return fmt.Errorf("%w: ffmpeg: %v: %s", voiceerr.ErrCodecFailure, err, lastLine(msg))
			}
		}
		return fmt.Errorf("%w: ffmpeg: %w", voiceerr.ErrCodecFailure, err)
	}
	return nil
}

// Available reports whether the ffmpeg binary can be found.
func (f *FFmpeg) Available() bool {
	_, err := exec.LookPath(f.Path)
	return err == nil
}

// Run executes cmd and captures its output. When ctx is done the process
// group receives SIGTERM, then SIGKILL after the grace period.
func Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Binary == "" {
		return nil, errors.New("binary is required")
	}
	grace := cmd.GracePeriod
	if grace == 0 {
		grace = 5 * time.Second
	}

	c := exec.CommandContext(ctx, cmd.Binary, cmd.Args...)
	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr
	configureProcessGroup(c)
	c.WaitDelay = grace

	start := time.Now()
	err := c.Run()
	res := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: -1,
		Duration: time.Since(start),
	}
	if c.ProcessState != nil {
		res.ExitCode = c.ProcessState.ExitCode()
	}

	if err != nil {
		if ctx.Err() != nil {
			return res, fmt.Errorf("killed by context: %w", ctx.Err())
		}
		return res, fmt.Errorf("exit code %d: %w", res.ExitCode, err)
	}
	return res, nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
