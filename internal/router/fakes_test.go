package router

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/saker-ai/spiritio-client/internal/media"
	"github.com/saker-ai/spiritio-client/internal/media/fsm"
	"github.com/saker-ai/spiritio-client/internal/protocol"
)

type fakeSender struct {
	mu     sync.Mutex
	open   bool
	closed bool
	sent   []protocol.WorkOrder
	err    error
}

func (s *fakeSender) Send(message any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, message.(protocol.WorkOrder))
	return nil
}

func (s *fakeSender) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *fakeSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	s.closed = true
	return nil
}

func (s *fakeSender) orders() []protocol.WorkOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.WorkOrder(nil), s.sent...)
}

type fakeMedia struct {
	machine     *fsm.Machine
	initErr     error
	answerErr   error
	panicOnAdd  bool
	constraints media.Constraints
	stream      *media.LocalStream

	calls      []string
	offers     []webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit
	onTrack    func(*webrtc.TrackRemote, *webrtc.RTPReceiver)
	onICE      func(*webrtc.ICECandidate)
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{
		machine:     fsm.New(),
		constraints: media.Constraints{Video: true, Audio: true},
		stream:      media.NewLocalStream("local-1", nil, nil),
	}
}

func (m *fakeMedia) Init(context.Context) error {
	m.calls = append(m.calls, "init")
	if m.initErr != nil {
		_ = m.machine.Transition(fsm.StatePermissionsDenied)
		return m.initErr
	}
	return m.machine.Transition(fsm.StatePermissionsGranted)
}

func (m *fakeMedia) State() fsm.State { return m.machine.State() }

func (m *fakeMedia) PermissionsGranted() bool {
	switch m.machine.State() {
	case fsm.StateUninitialized, fsm.StatePermissionsDenied, fsm.StateClosed:
		return false
	}
	return true
}

func (m *fakeMedia) available() bool {
	return m.PermissionsGranted()
}

func (m *fakeMedia) LocalStream() *media.LocalStream {
	if !m.available() {
		return nil
	}
	return m.stream
}

func (m *fakeMedia) Constraints() media.Constraints { return m.constraints }

func (m *fakeMedia) AddTracks() error {
	m.calls = append(m.calls, "add tracks")
	if !m.available() {
		return media.ErrUnavailable
	}
	return m.machine.Transition(fsm.StateTracksAttached)
}

func (m *fakeMedia) AssignCallbacks(onTrack func(*webrtc.TrackRemote, *webrtc.RTPReceiver), onICE func(*webrtc.ICECandidate)) error {
	m.calls = append(m.calls, "assign callbacks")
	if !m.available() {
		return media.ErrUnavailable
	}
	m.onTrack, m.onICE = onTrack, onICE
	return nil
}

func (m *fakeMedia) SetRemoteDescription(offer webrtc.SessionDescription) error {
	m.calls = append(m.calls, "set remote")
	if !m.available() {
		return media.ErrUnavailable
	}
	m.offers = append(m.offers, offer)
	return m.machine.Transition(fsm.StateOfferReceived)
}

func (m *fakeMedia) CreateAnswer() (webrtc.SessionDescription, error) {
	m.calls = append(m.calls, "create answer")
	if m.answerErr != nil {
		return webrtc.SessionDescription{}, m.answerErr
	}
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "v=0 answer"}, nil
}

func (m *fakeMedia) SetLocalDescription(webrtc.SessionDescription) error {
	m.calls = append(m.calls, "set local")
	return m.machine.Transition(fsm.StateAnswerSent)
}

func (m *fakeMedia) AddCandidate(candidate webrtc.ICECandidateInit) error {
	if m.panicOnAdd {
		panic("boom")
	}
	if !m.available() {
		return media.ErrUnavailable
	}
	m.candidates = append(m.candidates, candidate)
	return nil
}

func (m *fakeMedia) ClosePeerConnection() error {
	m.calls = append(m.calls, "close")
	if m.machine.Can(fsm.StateClosed) {
		_ = m.machine.Transition(fsm.StateClosed)
	}
	return nil
}

type fakeVideo struct {
	source  VideoSource
	mu      sync.Mutex
	packets int
	closed  chan struct{}
	once    sync.Once
}

func (v *fakeVideo) WriteRTP(*rtp.Packet) error {
	v.mu.Lock()
	v.packets++
	v.mu.Unlock()
	return nil
}

func (v *fakeVideo) Close() error {
	v.once.Do(func() { close(v.closed) })
	return nil
}

func (v *fakeVideo) count() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.packets
}

type fakePresenter struct {
	mu           sync.Mutex
	messages     []Message
	videos       []*fakeVideo
	removed      int
	identified   map[string]string
	participants []protocol.Guest
}

func newFakePresenter() *fakePresenter {
	return &fakePresenter{identified: make(map[string]string)}
}

func (p *fakePresenter) AddMessage(message Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message)
}

func (p *fakePresenter) AddVideo(source VideoSource) VideoHandle {
	p.mu.Lock()
	defer p.mu.Unlock()
	video := &fakeVideo{source: source, closed: make(chan struct{})}
	p.videos = append(p.videos, video)
	return video
}

func (p *fakePresenter) RemoveRemoteVideos() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.removed++
}

func (p *fakePresenter) IdentifyStream(streamID, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.identified[streamID] = name
}

func (p *fakePresenter) SetParticipantList(guests []protocol.Guest) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.participants = guests
}

func (p *fakePresenter) lines() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.messages))
	for _, m := range p.messages {
		out = append(out, m.String())
	}
	return out
}

type fakeCredentials struct {
	token    string
	loadErr  error
	clearErr error
	saved    []string
	cleared  int
}

func (c *fakeCredentials) Load() (string, error) { return c.token, c.loadErr }

func (c *fakeCredentials) Save(token string) error {
	c.token = token
	c.saved = append(c.saved, token)
	return nil
}

func (c *fakeCredentials) Clear() error {
	c.cleared++
	if c.clearErr != nil {
		return c.clearErr
	}
	c.token = ""
	return nil
}

type fakeCommandLog struct {
	lines []string
}

func (l *fakeCommandLog) Append(_ context.Context, line string) error {
	l.lines = append(l.lines, line)
	return nil
}

type fakeTrack struct {
	streamID string
	kind     webrtc.RTPCodecType
	mime     string
	packets  chan *rtp.Packet
}

func newFakeTrack(streamID string, kind webrtc.RTPCodecType, mime string) *fakeTrack {
	return &fakeTrack{streamID: streamID, kind: kind, mime: mime, packets: make(chan *rtp.Packet, 8)}
}

func (t *fakeTrack) StreamID() string          { return t.streamID }
func (t *fakeTrack) Kind() webrtc.RTPCodecType { return t.kind }

func (t *fakeTrack) Codec() webrtc.RTPCodecParameters {
	return webrtc.RTPCodecParameters{RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: t.mime}}
}

func (t *fakeTrack) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	packet, ok := <-t.packets
	if !ok {
		return nil, nil, io.EOF
	}
	return packet, nil, nil
}

var errAnswer = errors.New("answer failed")
