package media

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pion/transport/v3/test"
	"github.com/pion/webrtc/v4"

	"github.com/saker-ai/spiritio-client/internal/media/fsm"
)

func opusTrack(t *testing.T) *webrtc.TrackLocalStaticSample {
	t.Helper()
	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2},
		"audio", "local-stream",
	)
	if err != nil {
		t.Fatalf("NewTrackLocalStaticSample: %v", err)
	}
	return track
}

func grantingDevices(t *testing.T, stopped *bool) Devices {
	track := opusTrack(t)
	return DevicesFunc(func(ctx context.Context, constraints Constraints) (*LocalStream, error) {
		return NewLocalStream("local-stream", []webrtc.TrackLocal{track}, func() {
			if stopped != nil {
				*stopped = true
			}
		}), nil
	})
}

func denyingDevices() Devices {
	return DevicesFunc(func(ctx context.Context, constraints Constraints) (*LocalStream, error) {
		return nil, errors.New("no camera")
	})
}

func newOfferer(t *testing.T) (*webrtc.PeerConnection, webrtc.SessionDescription) {
	t.Helper()
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		t.Fatalf("NewPeerConnection: %v", err)
	}
	t.Cleanup(func() { _ = pc.Close() })
	if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionSendrecv,
	}); err != nil {
		t.Fatalf("AddTransceiverFromKind: %v", err)
	}
	offer, err := pc.CreateOffer(nil)
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		t.Fatalf("SetLocalDescription: %v", err)
	}
	<-gathered
	return pc, *pc.LocalDescription()
}

func TestInitDeniedLeavesSessionUnavailable(t *testing.T) {
	session, err := NewSession(Config{Constraints: Constraints{Video: true, Audio: true}}, denyingDevices(), nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	err = session.Init(context.Background())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("Init err=%v, want ErrPermissionDenied", err)
	}
	if session.State() != fsm.StatePermissionsDenied {
		t.Fatalf("state=%s, want %s", session.State(), fsm.StatePermissionsDenied)
	}
	if session.PermissionsGranted() {
		t.Fatalf("PermissionsGranted=true after denial")
	}

	if err := session.AddTracks(); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("AddTracks err=%v, want ErrUnavailable", err)
	}
	if err := session.AddCandidate(webrtc.ICECandidateInit{Candidate: "x"}); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("AddCandidate err=%v, want ErrUnavailable", err)
	}
	if _, err := session.CreateAnswer(); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("CreateAnswer err=%v, want ErrUnavailable", err)
	}
	if err := session.ClosePeerConnection(); err != nil {
		t.Fatalf("ClosePeerConnection: %v", err)
	}
	if err := session.Init(context.Background()); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("second Init err=%v, want ErrAlreadyInitialized", err)
	}
}

func TestCreateAnswerRequiresOffer(t *testing.T) {
	session, err := NewSession(Config{}, grantingDevices(t, nil), nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := session.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer session.ClosePeerConnection()

	if _, err := session.CreateAnswer(); !errors.Is(err, ErrNoRemoteDescription) {
		t.Fatalf("CreateAnswer err=%v, want ErrNoRemoteDescription", err)
	}
	if err := session.SetLocalDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer}); !errors.Is(err, ErrNoRemoteDescription) {
		t.Fatalf("SetLocalDescription err=%v, want ErrNoRemoteDescription", err)
	}
}

func TestNegotiationBuffersEarlyCandidates(t *testing.T) {
	lim := test.TimeOut(20 * time.Second)
	defer lim.Stop()

	stopped := false
	session, err := NewSession(Config{Constraints: Constraints{Audio: true}}, grantingDevices(t, &stopped), nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := session.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if !session.PermissionsGranted() {
		t.Fatalf("PermissionsGranted=false after Init")
	}
	if session.LocalStream() == nil || session.LocalStream().ID() != "local-stream" {
		t.Fatalf("LocalStream=%v", session.LocalStream())
	}
	if err := session.AddTracks(); err != nil {
		t.Fatalf("AddTracks: %v", err)
	}
	if err := session.AssignCallbacks(func(*webrtc.TrackRemote, *webrtc.RTPReceiver) {}, func(*webrtc.ICECandidate) {}); err != nil {
		t.Fatalf("AssignCallbacks: %v", err)
	}

	mid := "0"
	early := webrtc.ICECandidateInit{
		Candidate: "candidate:1 1 udp 2130706431 127.0.0.1 9 typ host",
		SDPMid:    &mid,
	}
	if err := session.AddCandidate(early); err != nil {
		t.Fatalf("AddCandidate before offer: %v", err)
	}
	if got := session.pendingCandidates(); got != 1 {
		t.Fatalf("pending=%d, want 1", got)
	}

	_, offer := newOfferer(t)
	if err := session.SetRemoteDescription(offer); err != nil {
		t.Fatalf("SetRemoteDescription: %v", err)
	}
	if got := session.pendingCandidates(); got != 0 {
		t.Fatalf("pending=%d after remote description, want 0", got)
	}
	if session.State() != fsm.StateOfferReceived {
		t.Fatalf("state=%s, want %s", session.State(), fsm.StateOfferReceived)
	}

	answer, err := session.CreateAnswer()
	if err != nil {
		t.Fatalf("CreateAnswer: %v", err)
	}
	if answer.Type != webrtc.SDPTypeAnswer || answer.SDP == "" {
		t.Fatalf("answer=%+v", answer)
	}
	if err := session.SetLocalDescription(answer); err != nil {
		t.Fatalf("SetLocalDescription: %v", err)
	}
	if state := session.State(); state != fsm.StateAnswerSent && state != fsm.StateConnected {
		t.Fatalf("state=%s after answer", state)
	}

	if err := session.ClosePeerConnection(); err != nil {
		t.Fatalf("ClosePeerConnection: %v", err)
	}
	if !stopped {
		t.Fatalf("local stream not stopped on close")
	}
	if err := session.ClosePeerConnection(); err != nil {
		t.Fatalf("second ClosePeerConnection: %v", err)
	}
	if session.State() != fsm.StateClosed {
		t.Fatalf("state=%s, want closed", session.State())
	}
}

func negotiatedSession(t *testing.T) *Session {
	t.Helper()
	session, err := NewSession(Config{Constraints: Constraints{Audio: true}}, grantingDevices(t, nil), nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(func() { _ = session.ClosePeerConnection() })
	if err := session.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := session.AddTracks(); err != nil {
		t.Fatalf("AddTracks: %v", err)
	}
	return session
}

func answerOffer(t *testing.T, session *Session, offer webrtc.SessionDescription) webrtc.SessionDescription {
	t.Helper()
	if err := session.SetRemoteDescription(offer); err != nil {
		t.Fatalf("SetRemoteDescription: %v", err)
	}
	answer, err := session.CreateAnswer()
	if err != nil {
		t.Fatalf("CreateAnswer: %v", err)
	}
	if err := session.SetLocalDescription(answer); err != nil {
		t.Fatalf("SetLocalDescription: %v", err)
	}
	if state := session.State(); state != fsm.StateAnswerSent && state != fsm.StateConnected {
		t.Fatalf("state=%s after answer", state)
	}
	return answer
}

func TestRenegotiationAcceptsSecondOffer(t *testing.T) {
	lim := test.TimeOut(20 * time.Second)
	defer lim.Stop()

	session := negotiatedSession(t)
	offerer, offer := newOfferer(t)
	answer := answerOffer(t, session, offer)
	if err := offerer.SetRemoteDescription(answer); err != nil {
		t.Fatalf("offerer SetRemoteDescription: %v", err)
	}

	if _, err := offerer.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		t.Fatalf("AddTransceiverFromKind: %v", err)
	}
	second, err := offerer.CreateOffer(nil)
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if err := offerer.SetLocalDescription(second); err != nil {
		t.Fatalf("offerer SetLocalDescription: %v", err)
	}

	answer = answerOffer(t, session, *offerer.LocalDescription())
	if err := offerer.SetRemoteDescription(answer); err != nil {
		t.Fatalf("offerer SetRemoteDescription second answer: %v", err)
	}
}

func TestFailedAnswerDoesNotBlockNextOffer(t *testing.T) {
	lim := test.TimeOut(20 * time.Second)
	defer lim.Stop()

	session := negotiatedSession(t)
	_, offer := newOfferer(t)
	if err := session.SetRemoteDescription(offer); err != nil {
		t.Fatalf("SetRemoteDescription: %v", err)
	}
	bad := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: "garbage"}
	if err := session.SetLocalDescription(bad); err == nil {
		t.Fatal("SetLocalDescription accepted a malformed answer")
	}
	if session.State() != fsm.StateOfferReceived {
		t.Fatalf("state=%s, want %s", session.State(), fsm.StateOfferReceived)
	}

	answerOffer(t, session, offer)
}

func TestLocalStreamStopOnce(t *testing.T) {
	calls := 0
	stream := NewLocalStream("s", nil, func() { calls++ })
	stream.Stop()
	stream.Stop()
	if calls != 1 {
		t.Fatalf("stop calls=%d, want 1", calls)
	}
	if stream.HasVideo() {
		t.Fatalf("HasVideo=true for empty stream")
	}
}
