package router

import (
	"context"
	"errors"
	"io"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"github.com/saker-ai/spiritio-client/internal/media"
	"github.com/saker-ai/spiritio-client/internal/media/fsm"
	"github.com/saker-ai/spiritio-client/internal/protocol"
)

// startMedia requests capture once per session. A denial leaves the
// session in chat-only mode without a diagnostic.
func (r *Router) startMedia(ctx context.Context) error {
	if r.media.State() != fsm.StateUninitialized {
		return nil
	}
	err := r.media.Init(ctx)
	r.refreshMediaStatus()
	if errors.Is(err, media.ErrPermissionDenied) {
		r.logger.Info("continuing without media", zap.Error(err))
		return nil
	}
	if err != nil {
		return err
	}

	if stream := r.media.LocalStream(); stream != nil {
		r.presenter.AddVideo(VideoSource{StreamID: stream.ID(), Label: "you", Local: true})
	}
	if err := r.media.AddTracks(); err != nil {
		return err
	}
	if err := r.media.AssignCallbacks(r.onTrack, r.onICECandidate); err != nil {
		return err
	}
	r.refreshMediaStatus()
	return r.send(protocol.OrderMediaRequest, r.media.Constraints())
}

func (r *Router) refreshMediaStatus() {
	state := r.media.State()
	granted := r.media.PermissionsGranted()
	r.updateStatus(func(s *Status) {
		s.Media = string(state)
		s.PermissionsGranted = granted
	})
}

// onICECandidate runs on a pion goroutine.
func (r *Router) onICECandidate(candidate *webrtc.ICECandidate) {
	if candidate == nil {
		return
	}
	candidateInit := candidate.ToJSON()
	r.post("local candidate", func(context.Context) error {
		encoded, err := protocol.EncodeEmbedded(candidateInit)
		if err != nil {
			return err
		}
		return r.send(protocol.OrderCandidate, encoded)
	})
}

// onTrack runs on a pion goroutine.
func (r *Router) onTrack(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	r.post("remote track", func(context.Context) error {
		return r.handleTrack(track)
	})
}

func (r *Router) handleTrack(track remoteTrack) error {
	streamID := track.StreamID()
	r.logger.Info("remote track",
		zap.String("stream_id", streamID),
		zap.String("kind", track.Kind().String()),
		zap.String("codec", track.Codec().MimeType),
	)

	if _, seen := r.seenStreams[streamID]; !seen {
		r.seenStreams[streamID] = struct{}{}
		if err := r.send(protocol.OrderIdentifyStreamID, streamID); err != nil {
			return err
		}
	}

	if track.Kind() != webrtc.RTPCodecTypeVideo {
		go drainTrack(track)
		return nil
	}

	label, _ := r.roster.StreamLabel(streamID)
	handle := r.presenter.AddVideo(VideoSource{
		StreamID: streamID,
		Label:    label,
		MimeType: track.Codec().MimeType,
	})
	if handle == nil {
		go drainTrack(track)
		return nil
	}
	if previous, ok := r.videos[streamID]; ok {
		_ = previous.Close()
	}
	r.videos[streamID] = handle
	r.updateStatus(func(s *Status) { s.RemoteStreams = len(r.videos) })
	go r.pump(streamID, track, handle)
	return nil
}

// pump copies RTP into the handle until the track ends, then removes the video.
func (r *Router) pump(streamID string, track remoteTrack, handle VideoHandle) {
	for {
		packet, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				r.logger.Debug("remote track read ended", zap.String("stream_id", streamID), zap.Error(err))
			}
			break
		}
		if err := handle.WriteRTP(packet); err != nil {
			r.logger.Debug("remote video write failed", zap.String("stream_id", streamID), zap.Error(err))
		}
	}
	r.post("remote track ended", func(context.Context) error {
		r.removeVideo(streamID, handle)
		return nil
	})
}

func (r *Router) removeVideo(streamID string, handle VideoHandle) {
	if current, ok := r.videos[streamID]; ok && current == handle {
		delete(r.videos, streamID)
	}
	if err := handle.Close(); err != nil {
		r.logger.Debug("close remote video", zap.String("stream_id", streamID), zap.Error(err))
	}
	r.updateStatus(func(s *Status) { s.RemoteStreams = len(r.videos) })
}

func drainTrack(track remoteTrack) {
	for {
		if _, _, err := track.ReadRTP(); err != nil {
			return
		}
	}
}
