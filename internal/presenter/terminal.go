// Package presenter renders a chat session to a terminal.
package presenter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/ivfwriter"
	"go.uber.org/zap"

	"github.com/saker-ai/spiritio-client/internal/protocol"
	"github.com/saker-ai/spiritio-client/internal/router"
)

// Options configures a Terminal.
type Options struct {
	Theme Theme
	// RecordDir, when set, receives one IVF file per remote video stream.
	RecordDir string
	Logger    *zap.Logger
}

// Terminal writes the chat log, video events and participant changes as lines.
type Terminal struct {
	mu        sync.Mutex
	out       io.Writer
	styles    styles
	recordDir string
	logger    *zap.Logger

	labels map[string]string
	remote map[*video]struct{}
}

var _ router.Presenter = (*Terminal)(nil)

// New creates a terminal presenter writing to out.
func New(out io.Writer, opts Options) *Terminal {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Theme == (Theme{}) {
		opts.Theme = DefaultTheme()
	}
	return &Terminal{
		out:       out,
		styles:    newStyles(opts.Theme),
		recordDir: opts.RecordDir,
		logger:    opts.Logger,
		labels:    make(map[string]string),
		remote:    make(map[*video]struct{}),
	}
}

// SetOutput redirects rendering, e.g. to a prompt-aware writer.
func (t *Terminal) SetOutput(out io.Writer) {
	t.mu.Lock()
	t.out = out
	t.mu.Unlock()
}

func (t *Terminal) println(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.printlnLocked(line)
}

func (t *Terminal) printlnLocked(line string) {
	if _, err := fmt.Fprintln(t.out, line); err != nil {
		t.logger.Debug("presenter write failed", zap.Error(err))
	}
}

// AddMessage renders one chat log line.
func (t *Terminal) AddMessage(message router.Message) {
	t.println(t.render(message))
}

func (t *Terminal) render(message router.Message) string {
	s := t.styles
	switch message.Kind {
	case router.KindDiagnostic:
		return s.admin.Render(message.From+":") + " " + message.Text
	case router.KindNotice:
		return s.notice.Render("* " + message.Text)
	case router.KindHistory:
		return s.history.Render(message.String())
	}
	if message.From == "" {
		return message.Text
	}
	name := s.sender
	if message.Private {
		name = s.private
	}
	return name.Render(message.From+":") + " " + message.Text
}

// AddVideo announces a stream. Remote streams are recorded when a record
// dir is configured and the codec has an IVF mapping.
func (t *Terminal) AddVideo(source router.VideoSource) router.VideoHandle {
	t.mu.Lock()
	defer t.mu.Unlock()

	if source.Label == "" {
		source.Label = t.labels[source.StreamID]
	}
	v := &video{owner: t, source: source}
	if source.Local {
		t.printlnLocked(t.styles.video.Render(fmt.Sprintf("[video] local preview %s", source.StreamID)))
		return v
	}

	t.remote[v] = struct{}{}
	if t.recordDir != "" {
		if path, writer, err := t.openRecording(source); err != nil {
			t.logger.Warn("remote video recording disabled", zap.String("stream_id", source.StreamID), zap.Error(err))
		} else {
			v.writer, v.path = writer, path
		}
	}
	t.printlnLocked(t.styles.video.Render(fmt.Sprintf("[video] %s joined with video", v.name())))
	return v
}

func (t *Terminal) openRecording(source router.VideoSource) (string, *ivfwriter.IVFWriter, error) {
	switch source.MimeType {
	case webrtc.MimeTypeVP8, webrtc.MimeTypeVP9, webrtc.MimeTypeAV1:
	default:
		return "", nil, fmt.Errorf("no ivf mapping for %q", source.MimeType)
	}
	if err := os.MkdirAll(t.recordDir, 0o755); err != nil {
		return "", nil, err
	}
	name := fmt.Sprintf("%s-%s.ivf", sanitize(source.StreamID), time.Now().Format("20060102-150405"))
	path := filepath.Join(t.recordDir, name)
	writer, err := ivfwriter.New(path, ivfwriter.WithCodec(source.MimeType))
	if err != nil {
		return "", nil, err
	}
	return path, writer, nil
}

func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, id)
}

// RemoveRemoteVideos ends every remote video.
func (t *Terminal) RemoveRemoteVideos() {
	t.mu.Lock()
	remote := make([]*video, 0, len(t.remote))
	for v := range t.remote {
		remote = append(remote, v)
	}
	t.mu.Unlock()

	for _, v := range remote {
		_ = v.Close()
	}
}

// IdentifyStream labels a stream with a participant name.
func (t *Terminal) IdentifyStream(streamID, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.labels[streamID] = name
	for v := range t.remote {
		if v.source.StreamID == streamID {
			v.source.Label = name
		}
	}
	t.printlnLocked(t.styles.video.Render(fmt.Sprintf("[video] %s is %s", streamID, name)))
}

// SetParticipantList renders the room's participants.
func (t *Terminal) SetParticipantList(guests []protocol.Guest) {
	names := make([]string, 0, len(guests))
	for _, guest := range guests {
		names = append(names, guest.Name)
	}
	sort.Strings(names)

	t.mu.Lock()
	defer t.mu.Unlock()
	if len(names) == 0 {
		t.printlnLocked(t.styles.notice.Render("* nobody else is here"))
		return
	}
	t.printlnLocked(t.styles.notice.Render("* in the room: " + strings.Join(names, ", ")))
}

type video struct {
	owner  *Terminal
	source router.VideoSource
	writer *ivfwriter.IVFWriter
	path   string

	mu      sync.Mutex
	packets int
	closed  bool
}

func (v *video) name() string {
	if v.source.Label != "" {
		return v.source.Label
	}
	return v.source.StreamID
}

// WriteRTP records the packet when recording is on.
func (v *video) WriteRTP(packet *rtp.Packet) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil
	}
	v.packets++
	if v.writer == nil {
		return nil
	}
	return v.writer.WriteRTP(packet)
}

// Close ends the video. Later calls are no-ops.
func (v *video) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	writer, packets := v.writer, v.packets
	v.writer = nil
	v.mu.Unlock()

	t := v.owner
	t.mu.Lock()
	defer t.mu.Unlock()
	if v.source.Local {
		return nil
	}
	delete(t.remote, v)

	var err error
	if writer != nil {
		err = writer.Close()
		t.logger.Info("remote video recorded", zap.String("path", v.path), zap.Int("packets", packets))
	}
	t.printlnLocked(t.styles.video.Render(fmt.Sprintf("[video] %s stopped", v.name())))
	return err
}
