package capture

import (
	"context"
	"fmt"
	"time"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"go.uber.org/zap"

	"github.com/saker-ai/spiritio-client/pkg/audio"
)

type audioSource struct {
	track   *webrtc.TrackLocalStaticSample
	encoder *audio.OpusEncoder
	pcm     []int16
	pos     int
	logger  *zap.Logger
}

func newAudioSource(cfg Config, streamID string, logger *zap.Logger) (*audioSource, error) {
	var pcm []int16
	if cfg.AudioFile != "" {
		clip, err := ReadWAVFile(cfg.AudioFile)
		if err != nil {
			return nil, fmt.Errorf("open audio source: %w", err)
		}
		pcm, err = clip.Mono(cfg.SampleRate)
		if err != nil {
			return nil, fmt.Errorf("resample audio source: %w", err)
		}
	}

	encoder, err := audio.NewOpusEncoder(cfg.SampleRate, 1, cfg.FrameMs, audio.EncoderOptions{Bitrate: cfg.OpusBitrate})
	if err != nil {
		return nil, err
	}
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", streamID,
	)
	if err != nil {
		_ = encoder.Close()
		return nil, err
	}
	return &audioSource{track: track, encoder: encoder, pcm: pcm, logger: logger}, nil
}

// nextFrame loops over the clip, or yields silence when there is none.
func (s *audioSource) nextFrame() []int16 {
	size := s.encoder.FrameSize()
	frame := make([]int16, size)
	if len(s.pcm) == 0 {
		return frame
	}
	for i := range frame {
		frame[i] = s.pcm[s.pos]
		s.pos++
		if s.pos == len(s.pcm) {
			s.pos = 0
		}
	}
	return frame
}

func (s *audioSource) run(ctx context.Context) {
	defer s.encoder.Close()
	duration := time.Duration(s.encoder.FrameDuration()) * time.Millisecond
	ticker := time.NewTicker(duration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		packet, err := s.encoder.Encode(s.nextFrame())
		if err != nil {
			s.logger.Warn("audio encode failed", zap.Error(err))
			return
		}
		if packet == nil {
			continue
		}
		if err := s.track.WriteSample(pionmedia.Sample{Data: packet, Duration: duration}); err != nil {
			s.logger.Debug("audio sample dropped", zap.Error(err))
		}
	}
}
