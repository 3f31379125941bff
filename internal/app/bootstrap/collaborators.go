// internal/app/bootstrap/collaborators.go
package bootstrap

import (
	"context"

	healthfeature "github.com/dalemusser/voxsecure/internal/app/features/health"
	"github.com/dalemusser/voxsecure/internal/app/system/codec"
	"github.com/dalemusser/voxsecure/internal/app/system/embedding"
	"github.com/dalemusser/voxsecure/internal/app/system/transcribe"
)

// collaborators are the audio services behind the pipeline and the
// passphrase verifier. They are built once from config and injected.
type collaborators struct {
	transcoder  codec.Transcoder
	embedder    embedding.Embedder
	transcriber transcribe.Transcriber

	ffmpeg  *codec.FFmpeg
	sidecar *embedding.Sidecar
	whisper *transcribe.Whisper
}

// voiceCollab is the instance Startup reported on; BuildHandler wires the same
// one so /health checks the clients that serve logins.
var voiceCollab *collaborators

// sharedCollaborators returns voiceCollab, building it on first use.
func sharedCollaborators(appCfg AppConfig) (*collaborators, error) {
	if voiceCollab != nil {
		return voiceCollab, nil
	}
	c, err := newCollaborators(appCfg)
	if err != nil {
		return nil, err
	}
	voiceCollab = c
	return c, nil
}

func newCollaborators(appCfg AppConfig) (*collaborators, error) {
	c := &collaborators{}

	switch appCfg.Codec {
	case "native":
		c.transcoder = codec.NewNative()
	default:
		c.ffmpeg = codec.NewFFmpeg(appCfg.FFmpegPath, appCfg.CodecTimeout)
		c.transcoder = c.ffmpeg
	}

	switch appCfg.Embedder {
	case "sidecar":
		c.sidecar = embedding.NewSidecar(embedding.SidecarConfig{
			URL:     appCfg.EmbedURL,
			Timeout: appCfg.EmbedTimeout,
		})
		c.embedder = c.sidecar
	default:
		cfg := embedding.DefaultMFCCConfig()
		if appCfg.MFCCCoefficients > 0 {
			cfg.Coefficients = appCfg.MFCCCoefficients
		}
		mfcc, err := embedding.NewMFCC(cfg)
		if err != nil {
			return nil, err
		}
		c.embedder = mfcc
	}

	c.whisper = transcribe.NewWhisper(transcribe.WhisperConfig{
		URL:      appCfg.WhisperURL,
		Model:    appCfg.WhisperModel,
		Language: appCfg.WhisperLanguage,
		Timeout:  appCfg.TranscribeTimeout,
	})
	c.transcriber = c.whisper

	return c, nil
}

// dependencies lists the external services /health reports on.
func (c *collaborators) dependencies() []healthfeature.Dependency {
	var deps []healthfeature.Dependency
	if c.ffmpeg != nil {
		deps = append(deps, healthfeature.Dependency{
			Name:  "ffmpeg",
			Check: func(context.Context) bool { return c.ffmpeg.Available() },
		})
	}
	if c.sidecar != nil {
		deps = append(deps, healthfeature.Dependency{Name: "embedder", Check: c.sidecar.IsAvailable})
	}
	if c.whisper != nil {
		deps = append(deps, healthfeature.Dependency{Name: "whisper", Check: c.whisper.IsAvailable})
	}
	return deps
}
