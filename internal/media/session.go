// Package media owns local capture and the single peer connection of a chat session.
package media

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pion/interceptor"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	applogger "github.com/saker-ai/spiritio-client/internal/logger"
	"github.com/saker-ai/spiritio-client/internal/media/fsm"
)

var (
	// ErrPermissionDenied wraps the capture failure that left the session without media.
	ErrPermissionDenied = errors.New("media: permission denied")
	// ErrUnavailable is returned by every operation of a session without a peer connection.
	ErrUnavailable = errors.New("media: no peer connection")
	// ErrNoRemoteDescription is returned when an answer is requested before an offer was applied.
	ErrNoRemoteDescription = errors.New("media: remote description not set")
	// ErrAlreadyInitialized is returned by a second Init.
	ErrAlreadyInitialized = errors.New("media: already initialized")
)

// Config represents a config.
type Config struct {
	ICEServers  []string
	Constraints Constraints
}

// Session wraps local capture and one peer connection. Operations on a
// session whose permission was denied are no-ops returning ErrUnavailable.
type Session struct {
	cfg     Config
	api     *webrtc.API
	devices Devices
	logger  *zap.Logger
	machine *fsm.Machine

	mu        sync.Mutex
	stream    *LocalStream
	pc        *webrtc.PeerConnection
	pending   []webrtc.ICECandidateInit
	remoteSet bool

	iceConnected atomic.Bool
}

// NewAPI builds a pion API with default codecs and interceptors and pion
// logging routed through logger.
func NewAPI(logger *zap.Logger) (*webrtc.API, error) {
	engine := &webrtc.MediaEngine{}
	if err := engine.RegisterDefaultCodecs(); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}
	registry := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(engine, registry); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}
	settings := webrtc.SettingEngine{LoggerFactory: applogger.NewPionFactory(logger)}
	return webrtc.NewAPI(
		webrtc.WithMediaEngine(engine),
		webrtc.WithInterceptorRegistry(registry),
		webrtc.WithSettingEngine(settings),
	), nil
}

// NewSession creates an uninitialized session.
func NewSession(cfg Config, devices Devices, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if devices == nil {
		return nil, errors.New("media: nil devices")
	}
	api, err := NewAPI(logger)
	if err != nil {
		return nil, err
	}
	return &Session{
		cfg:     cfg,
		api:     api,
		devices: devices,
		logger:  logger,
		machine: fsm.New(),
	}, nil
}

// Init requests capture with the configured constraints and, on success,
// builds the peer connection. It is never retried; a failure leaves the
// session permanently without media.
func (s *Session) Init(ctx context.Context) error {
	if state := s.machine.State(); state != fsm.StateUninitialized {
		if state == fsm.StateClosed {
			return ErrUnavailable
		}
		return ErrAlreadyInitialized
	}

	stream, err := s.devices.GetUserMedia(ctx, s.cfg.Constraints)
	if err == nil && stream == nil {
		err = errors.New("no stream")
	}
	if err != nil {
		s.deny(err)
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}

	pc, err := s.api.NewPeerConnection(webrtc.Configuration{ICEServers: s.iceServers()})
	if err != nil {
		stream.Stop()
		s.deny(err)
		return fmt.Errorf("%w: create peer connection: %v", ErrPermissionDenied, err)
	}
	pc.OnConnectionStateChange(s.handleConnectionState)

	s.mu.Lock()
	if err := s.machine.Transition(fsm.StatePermissionsGranted); err != nil {
		s.mu.Unlock()
		stream.Stop()
		_ = pc.Close()
		return err
	}
	s.stream = stream
	s.pc = pc
	s.mu.Unlock()

	s.logger.Info("media permissions granted",
		zap.String("stream_id", stream.ID()),
		zap.Int("tracks", len(stream.Tracks())),
		zap.Bool("video", stream.HasVideo()),
	)
	return nil
}

func (s *Session) deny(cause error) {
	if err := s.machine.Transition(fsm.StatePermissionsDenied); err != nil {
		s.logger.Warn("media deny transition failed", zap.Error(err))
	}
	s.logger.Warn("media permissions denied", zap.Error(cause))
}

func (s *Session) iceServers() []webrtc.ICEServer {
	if len(s.cfg.ICEServers) == 0 {
		return nil
	}
	return []webrtc.ICEServer{{URLs: append([]string(nil), s.cfg.ICEServers...)}}
}

// AddTracks attaches every local track to the peer connection.
func (s *Session) AddTracks() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pc == nil || s.stream == nil {
		return ErrUnavailable
	}
	for _, track := range s.stream.Tracks() {
		sender, err := s.pc.AddTrack(track)
		if err != nil {
			return fmt.Errorf("add %s track: %w", track.Kind(), err)
		}
		go drainRTCP(sender)
	}
	return s.machine.Transition(fsm.StateTracksAttached)
}

// drainRTCP keeps the sender's interceptors running; it exits when the connection closes.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

// AssignCallbacks binds the remote track and local candidate notifications.
// Both fire on pion goroutines.
func (s *Session) AssignCallbacks(onTrack func(*webrtc.TrackRemote, *webrtc.RTPReceiver), onICECandidate func(*webrtc.ICECandidate)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pc == nil {
		return ErrUnavailable
	}
	s.pc.OnTrack(onTrack)
	s.pc.OnICECandidate(onICECandidate)
	return nil
}

// SetRemoteDescription applies a remote offer, then any candidates that
// arrived ahead of it.
func (s *Session) SetRemoteDescription(offer webrtc.SessionDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pc == nil {
		return ErrUnavailable
	}
	if !s.machine.Can(fsm.StateOfferReceived) {
		return &fsm.TransitionError{From: s.machine.State(), To: fsm.StateOfferReceived}
	}
	if err := s.pc.SetRemoteDescription(offer); err != nil {
		return fmt.Errorf("set remote description: %w", err)
	}
	if err := s.machine.Transition(fsm.StateOfferReceived); err != nil {
		return err
	}
	s.remoteSet = true

	pending := s.pending
	s.pending = nil
	for _, candidate := range pending {
		if err := s.pc.AddICECandidate(candidate); err != nil {
			s.logger.Warn("buffered candidate rejected", zap.String("candidate", candidate.Candidate), zap.Error(err))
		}
	}
	if len(pending) > 0 {
		s.logger.Debug("applied buffered candidates", zap.Int("count", len(pending)))
	}
	return nil
}

// CreateAnswer creates the local answer for the applied offer.
func (s *Session) CreateAnswer() (webrtc.SessionDescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pc == nil {
		return webrtc.SessionDescription{}, ErrUnavailable
	}
	if s.machine.State() != fsm.StateOfferReceived {
		return webrtc.SessionDescription{}, ErrNoRemoteDescription
	}
	answer, err := s.pc.CreateAnswer(nil)
	if err != nil {
		return webrtc.SessionDescription{}, fmt.Errorf("create answer: %w", err)
	}
	return answer, nil
}

// SetLocalDescription applies the answer returned by CreateAnswer.
func (s *Session) SetLocalDescription(answer webrtc.SessionDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pc == nil {
		return ErrUnavailable
	}
	if s.machine.State() != fsm.StateOfferReceived {
		return ErrNoRemoteDescription
	}
	if err := s.pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local description: %w", err)
	}
	if err := s.machine.Transition(fsm.StateAnswerSent); err != nil {
		return err
	}
	if s.iceConnected.Load() {
		s.machine.Advance(fsm.StateAnswerSent, fsm.StateConnected)
	}
	return nil
}

// AddCandidate applies a remote candidate, or buffers it until the remote description is set.
func (s *Session) AddCandidate(candidate webrtc.ICECandidateInit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pc == nil {
		return ErrUnavailable
	}
	if !s.remoteSet {
		s.pending = append(s.pending, candidate)
		return nil
	}
	if err := s.pc.AddICECandidate(candidate); err != nil {
		return fmt.Errorf("add candidate: %w", err)
	}
	return nil
}

// ClosePeerConnection stops local tracks and releases the peer connection.
// Calling it again is a no-op.
func (s *Session) ClosePeerConnection() error {
	s.mu.Lock()
	if !s.machine.Can(fsm.StateClosed) {
		s.mu.Unlock()
		return nil
	}
	_ = s.machine.Transition(fsm.StateClosed)
	stream, pc := s.stream, s.pc
	s.stream, s.pc = nil, nil
	s.pending = nil
	s.mu.Unlock()

	if stream != nil {
		stream.Stop()
	}
	if pc == nil {
		return nil
	}
	if err := pc.Close(); err != nil {
		return fmt.Errorf("close peer connection: %w", err)
	}
	s.logger.Info("media session closed")
	return nil
}

func (s *Session) handleConnectionState(state webrtc.PeerConnectionState) {
	s.logger.Info("peer connection state", zap.String("state", state.String()))
	switch state {
	case webrtc.PeerConnectionStateConnected:
		s.iceConnected.Store(true)
		s.machine.Advance(fsm.StateAnswerSent, fsm.StateConnected)
	case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
		s.iceConnected.Store(false)
	}
}

// State returns the negotiation state.
func (s *Session) State() fsm.State {
	return s.machine.State()
}

// PermissionsGranted reports whether capture succeeded.
func (s *Session) PermissionsGranted() bool {
	if s.machine.Terminal() {
		return false
	}
	return s.machine.State() != fsm.StateUninitialized
}

// LocalStream returns the captured stream, nil without permission.
func (s *Session) LocalStream() *LocalStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream
}

// Constraints returns the capture constraints requested by Init.
func (s *Session) Constraints() Constraints {
	return s.cfg.Constraints
}

// pendingCandidates returns how many remote candidates wait for the remote description.
func (s *Session) pendingCandidates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
