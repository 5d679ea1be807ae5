// Package capture provides local media for a chat session from files or synthetic silence.
package capture

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/saker-ai/spiritio-client/internal/media"
)

var (
	// ErrDisabled is returned when capture is switched off.
	ErrDisabled = errors.New("capture: media disabled")
	// ErrNoSources is returned when no requested kind has a source.
	ErrNoSources = errors.New("capture: no capture sources")
)

// Config represents a config.
type Config struct {
	Enabled     bool
	Video       bool
	Audio       bool
	AudioFile   string
	VideoFile   string
	SampleRate  int
	FrameMs     int
	OpusBitrate int
}

// Devices implements media.Devices.
type Devices struct {
	cfg    Config
	logger *zap.Logger
}

var _ media.Devices = (*Devices)(nil)

// New creates a device set.
func New(cfg Config, logger *zap.Logger) *Devices {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 48000
	}
	if cfg.FrameMs <= 0 {
		cfg.FrameMs = 20
	}
	return &Devices{cfg: cfg, logger: logger}
}

// GetUserMedia opens the sources allowed by both the config and constraints
// and starts pacing samples into their tracks until the stream is stopped.
func (d *Devices) GetUserMedia(ctx context.Context, constraints media.Constraints) (*media.LocalStream, error) {
	if !d.cfg.Enabled {
		return nil, ErrDisabled
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	streamID := uuid.NewString()
	var (
		tracks  []webrtc.TrackLocal
		runners []func(context.Context)
	)

	if constraints.Video && d.cfg.Video && d.cfg.VideoFile != "" {
		src, err := newVideoSource(d.cfg.VideoFile, streamID, d.logger)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, src.track)
		runners = append(runners, src.run)
	}
	if constraints.Audio && d.cfg.Audio {
		src, err := newAudioSource(d.cfg, streamID, d.logger)
		if err != nil {
			return nil, err
		}
		tracks = append(tracks, src.track)
		runners = append(runners, src.run)
	}
	if len(tracks) == 0 {
		return nil, ErrNoSources
	}

	runCtx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for _, run := range runners {
		wg.Add(1)
		go func(run func(context.Context)) {
			defer wg.Done()
			run(runCtx)
		}(run)
	}

	d.logger.Info("capture started", zap.String("stream_id", streamID), zap.Int("tracks", len(tracks)))
	return media.NewLocalStream(streamID, tracks, func() {
		cancel()
		wg.Wait()
	}), nil
}
