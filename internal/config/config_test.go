package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigKeepsEmbeddedDefaults(t *testing.T) {
	path := writeConfig(t, "room: \"7\"\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.Room != "7" {
		t.Fatalf("room=%q, want %q", cfg.Room, "7")
	}
	if cfg.WSPath != "/ws" {
		t.Fatalf("ws_path=%q, want %q", cfg.WSPath, "/ws")
	}
	if cfg.Transport.HandshakeTimeout != 10*time.Second {
		t.Fatalf("handshake_timeout=%v, want %v", cfg.Transport.HandshakeTimeout, 10*time.Second)
	}
	if len(cfg.Media.ICEServers) != 1 {
		t.Fatalf("ice_servers=%v, want one default server", cfg.Media.ICEServers)
	}
	if cfg.Storage.CredentialKey != "access_token" {
		t.Fatalf("credential_key=%q, want %q", cfg.Storage.CredentialKey, "access_token")
	}
}

func TestLoadConfigResolvesPathsAgainstRoot(t *testing.T) {
	path := writeConfig(t, "media:\n  audio_file: \"media/voice.wav\"\n")
	root := filepath.Dir(path)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.RootDir != root {
		t.Fatalf("root_dir=%q, want %q", cfg.RootDir, root)
	}
	if want := filepath.Join(root, "data", "commands.db"); cfg.Storage.CommandLogPath != want {
		t.Fatalf("command_log_path=%q, want %q", cfg.Storage.CommandLogPath, want)
	}
	if want := filepath.Join(root, "media", "voice.wav"); cfg.Media.AudioFile != want {
		t.Fatalf("audio_file=%q, want %q", cfg.Media.AudioFile, want)
	}
	if cfg.Media.VideoFile != "" {
		t.Fatalf("video_file=%q, want empty", cfg.Media.VideoFile)
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := writeConfig(t, "page_url: \"http://example.test/\"\n")
	t.Setenv("SPIRITIO_PAGE_URL", "https://chat.example.test/?room=3")
	t.Setenv("SPIRITIO_ROUTER_TASK_QUEUE", "16")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.PageURL != "https://chat.example.test/?room=3" {
		t.Fatalf("page_url=%q, want env value", cfg.PageURL)
	}
	if cfg.Router.TaskQueue != 16 {
		t.Fatalf("task_queue=%d, want 16", cfg.Router.TaskQueue)
	}
}

func TestResolvePath(t *testing.T) {
	tests := []struct {
		configured string
		fallback   string
		want       string
	}{
		{configured: "", fallback: "data", want: filepath.Join("/srv", "data")},
		{configured: " logs ", fallback: "data", want: filepath.Join("/srv", "logs")},
		{configured: "/var/lib/x", fallback: "data", want: "/var/lib/x"},
	}
	for _, tt := range tests {
		if got := resolvePath("/srv", tt.configured, tt.fallback); got != tt.want {
			t.Fatalf("resolvePath(%q)=%q, want %q", tt.configured, got, tt.want)
		}
	}
}
