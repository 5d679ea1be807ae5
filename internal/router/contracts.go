package router

import (
	"context"
	"fmt"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/saker-ai/spiritio-client/internal/media"
	"github.com/saker-ai/spiritio-client/internal/media/fsm"
	"github.com/saker-ai/spiritio-client/internal/protocol"
)

// Sender is the signaling channel as the router sees it.
type Sender interface {
	Send(message any) error
	Open() bool
	Close() error
}

// Media is the negotiation surface of a media session.
type Media interface {
	Init(ctx context.Context) error
	State() fsm.State
	PermissionsGranted() bool
	LocalStream() *media.LocalStream
	Constraints() media.Constraints
	AddTracks() error
	AssignCallbacks(onTrack func(*webrtc.TrackRemote, *webrtc.RTPReceiver), onICECandidate func(*webrtc.ICECandidate)) error
	SetRemoteDescription(offer webrtc.SessionDescription) error
	CreateAnswer() (webrtc.SessionDescription, error)
	SetLocalDescription(answer webrtc.SessionDescription) error
	AddCandidate(candidate webrtc.ICECandidateInit) error
	ClosePeerConnection() error
}

// Credentials stores the access token between sessions.
type Credentials interface {
	Load() (string, error)
	Save(token string) error
	Clear() error
}

// CommandLog records submitted lines.
type CommandLog interface {
	Append(ctx context.Context, line string) error
}

// MessageKind tells the presenter how to style a message.
type MessageKind int

const (
	KindChat MessageKind = iota
	KindHistory
	KindNotice
	KindDiagnostic
)

// AdminSender labels diagnostics addressed to the local user.
const AdminSender = "ADMIN (to you)"

// Message is one line for the chat log.
type Message struct {
	Kind    MessageKind
	From    string
	Text    string
	Private bool
}

func (m Message) String() string {
	if m.From == "" {
		return m.Text
	}
	return fmt.Sprintf("%s: %s", m.From, m.Text)
}

// VideoSource describes a stream to show.
type VideoSource struct {
	StreamID string
	Label    string
	Local    bool
	MimeType string
}

// VideoHandle is a displayed video. Remote handles receive the stream's RTP.
type VideoHandle interface {
	WriteRTP(packet *rtp.Packet) error
	Close() error
}

// Presenter renders the session.
type Presenter interface {
	AddMessage(message Message)
	AddVideo(source VideoSource) VideoHandle
	RemoveRemoteVideos()
	IdentifyStream(streamID, name string)
	SetParticipantList(guests []protocol.Guest)
}

// remoteTrack is the part of *webrtc.TrackRemote the router reads.
type remoteTrack interface {
	StreamID() string
	Kind() webrtc.RTPCodecType
	Codec() webrtc.RTPCodecParameters
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
}

var _ remoteTrack = (*webrtc.TrackRemote)(nil)
