package media

import (
	"context"
	"sync"

	"github.com/pion/webrtc/v4"
)

// Constraints selects which kinds of local capture are requested.
type Constraints struct {
	Video bool `json:"video"`
	Audio bool `json:"audio"`
}

// Devices acquires local capture. A returned error means permission was not granted.
type Devices interface {
	GetUserMedia(ctx context.Context, constraints Constraints) (*LocalStream, error)
}

// DevicesFunc adapts a function to Devices.
type DevicesFunc func(ctx context.Context, constraints Constraints) (*LocalStream, error)

// GetUserMedia implements Devices.
func (f DevicesFunc) GetUserMedia(ctx context.Context, constraints Constraints) (*LocalStream, error) {
	return f(ctx, constraints)
}

// LocalStream groups the captured tracks under one stream id.
type LocalStream struct {
	id     string
	tracks []webrtc.TrackLocal
	stop   func()
	once   sync.Once
}

// NewLocalStream wraps tracks. stop releases the capture sources and may be nil.
func NewLocalStream(id string, tracks []webrtc.TrackLocal, stop func()) *LocalStream {
	return &LocalStream{id: id, tracks: tracks, stop: stop}
}

// ID returns the stream id.
func (s *LocalStream) ID() string {
	return s.id
}

// Tracks returns the captured tracks.
func (s *LocalStream) Tracks() []webrtc.TrackLocal {
	return append([]webrtc.TrackLocal(nil), s.tracks...)
}

// HasVideo reports whether any track carries video.
func (s *LocalStream) HasVideo() bool {
	for _, track := range s.tracks {
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			return true
		}
	}
	return false
}

// Stop ends capture. Calls after the first are no-ops.
func (s *LocalStream) Stop() {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
	})
}
