package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/ivfreader"
	"go.uber.org/zap"
)

type videoSource struct {
	path   string
	track  *webrtc.TrackLocalStaticSample
	frame  time.Duration
	logger *zap.Logger
}

func ivfMimeType(fourCC string) (string, error) {
	switch fourCC {
	case "VP80":
		return webrtc.MimeTypeVP8, nil
	case "VP90":
		return webrtc.MimeTypeVP9, nil
	case "AV01":
		return webrtc.MimeTypeAV1, nil
	default:
		return "", fmt.Errorf("unsupported ivf codec %q", fourCC)
	}
}

func frameDuration(header *ivfreader.IVFFileHeader) time.Duration {
	if header.TimebaseDenominator == 0 {
		return 33 * time.Millisecond
	}
	d := time.Duration(float64(time.Second) * float64(header.TimebaseNumerator) / float64(header.TimebaseDenominator))
	if d <= 0 {
		return 33 * time.Millisecond
	}
	return d
}

func openIVF(path string) (*os.File, *ivfreader.IVFReader, *ivfreader.IVFFileHeader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, err
	}
	reader, header, err := ivfreader.NewWith(file)
	if err != nil {
		_ = file.Close()
		return nil, nil, nil, fmt.Errorf("read ivf header: %w", err)
	}
	return file, reader, header, nil
}

func newVideoSource(path, streamID string, logger *zap.Logger) (*videoSource, error) {
	file, _, header, err := openIVF(path)
	if err != nil {
		return nil, fmt.Errorf("open video source: %w", err)
	}
	_ = file.Close()

	mime, err := ivfMimeType(header.FourCC)
	if err != nil {
		return nil, err
	}
	track, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: mime}, "video", streamID)
	if err != nil {
		return nil, err
	}
	return &videoSource{path: path, track: track, frame: frameDuration(header), logger: logger}, nil
}

func (s *videoSource) run(ctx context.Context) {
	ticker := time.NewTicker(s.frame)
	defer ticker.Stop()

	for ctx.Err() == nil {
		file, reader, _, err := openIVF(s.path)
		if err != nil {
			s.logger.Warn("video source reopen failed", zap.Error(err))
			return
		}
		err = s.play(ctx, ticker, reader)
		_ = file.Close()
		if err != nil {
			s.logger.Warn("video source stopped", zap.Error(err))
			return
		}
	}
}

// play streams one pass over the file; a clean EOF returns nil so the caller loops.
func (s *videoSource) play(ctx context.Context, ticker *time.Ticker, reader *ivfreader.IVFReader) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		frame, _, err := reader.ParseNextFrame()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.track.WriteSample(pionmedia.Sample{Data: frame, Duration: s.frame}); err != nil {
			s.logger.Debug("video sample dropped", zap.Error(err))
		}
	}
}
