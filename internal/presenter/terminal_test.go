package presenter

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/saker-ai/spiritio-client/internal/protocol"
	"github.com/saker-ai/spiritio-client/internal/router"
)

func TestAddMessageRendersKinds(t *testing.T) {
	var out bytes.Buffer
	term := New(&out, Options{})

	term.AddMessage(router.Message{Kind: router.KindChat, From: "bob", Text: "hello"})
	term.AddMessage(router.Message{Kind: router.KindChat, From: "bob (to you)", Text: "psst", Private: true})
	term.AddMessage(router.Message{Kind: router.KindDiagnostic, From: router.AdminSender, Text: "able to receive messages"})
	term.AddMessage(router.Message{Kind: router.KindNotice, Text: "dave entered the chat"})
	term.AddMessage(router.Message{Kind: router.KindHistory, Text: "old line"})

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("lines=%q, want 5", lines)
	}
	checks := [][]string{
		{"bob:", "hello"},
		{"bob (to you):", "psst"},
		{"ADMIN (to you):", "able to receive messages"},
		{"* dave entered the chat"},
		{"old line"},
	}
	for i, parts := range checks {
		for _, part := range parts {
			if !strings.Contains(lines[i], part) {
				t.Fatalf("line %d=%q, missing %q", i, lines[i], part)
			}
		}
	}
}

func TestVideoLifecycle(t *testing.T) {
	var out bytes.Buffer
	term := New(&out, Options{})

	local := term.AddVideo(router.VideoSource{StreamID: "me", Local: true})
	remote := term.AddVideo(router.VideoSource{StreamID: "s-1", MimeType: webrtc.MimeTypeVP8})
	term.IdentifyStream("s-1", "bob")

	if err := remote.WriteRTP(&rtp.Packet{}); err != nil {
		t.Fatalf("WriteRTP without recording: %v", err)
	}

	term.RemoveRemoteVideos()
	if err := remote.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if err := local.Close(); err != nil {
		t.Fatalf("local Close: %v", err)
	}

	text := out.String()
	for _, want := range []string{"local preview me", "s-1 joined with video", "s-1 is bob", "bob stopped"} {
		if !strings.Contains(text, want) {
			t.Fatalf("output=%q, missing %q", text, want)
		}
	}
	if strings.Count(text, "stopped") != 1 {
		t.Fatalf("output=%q, want one stop line", text)
	}
}

func TestRemoteVideoRecording(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "rec")
	var out bytes.Buffer
	term := New(&out, Options{RecordDir: dir})

	handle := term.AddVideo(router.VideoSource{StreamID: "stream/1", MimeType: webrtc.MimeTypeVP8})
	if err := handle.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || !strings.HasPrefix(entries[0].Name(), "stream_1-") {
		t.Fatalf("entries=%v", entries)
	}
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("DKIF")) {
		t.Fatalf("recording does not start with an IVF header")
	}
}

func TestRecordingSkipsUnmappedCodecs(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "rec")
	term := New(&bytes.Buffer{}, Options{RecordDir: dir})
	handle := term.AddVideo(router.VideoSource{StreamID: "h264", MimeType: webrtc.MimeTypeH264})
	_ = handle.Close()
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("record dir created for H264: %v", err)
	}
}

func TestSetParticipantList(t *testing.T) {
	var out bytes.Buffer
	term := New(&out, Options{})
	term.SetParticipantList([]protocol.Guest{{Name: "zoe"}, {Name: "adam"}})
	term.SetParticipantList(nil)

	text := out.String()
	if !strings.Contains(text, "in the room: adam, zoe") || !strings.Contains(text, "nobody else is here") {
		t.Fatalf("output=%q", text)
	}
}
