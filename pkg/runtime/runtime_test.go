package runtime

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	appconfig "github.com/saker-ai/spiritio-client/internal/config"
	applogger "github.com/saker-ai/spiritio-client/internal/logger"
)

func TestApplyOverrides(t *testing.T) {
	cfg := appconfig.Config{PageURL: "http://a/", Room: "1", StatusAddr: ""}
	applyOverrides(&cfg, Overrides{Room: " 9 ", StatusAddr: "127.0.0.1:0"})

	if cfg.PageURL != "http://a/" {
		t.Fatalf("page_url=%q, want unchanged", cfg.PageURL)
	}
	if cfg.Room != "9" {
		t.Fatalf("room=%q, want 9", cfg.Room)
	}
	if cfg.StatusAddr != "127.0.0.1:0" {
		t.Fatalf("status_addr=%q", cfg.StatusAddr)
	}
}

func TestLoadGrammarDefault(t *testing.T) {
	grammar, err := loadGrammar("")
	if err != nil {
		t.Fatalf("loadGrammar: %v", err)
	}
	if _, ok := grammar.Lookup("login"); !ok {
		t.Fatal("default grammar lacks login")
	}
}

func TestLoadGrammarFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commands.yaml")
	body := "command_sigil: \"!\"\ncommands:\n  guests:\n    work_order: get_current_guests\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write grammar: %v", err)
	}

	grammar, err := loadGrammar(path)
	if err != nil {
		t.Fatalf("loadGrammar: %v", err)
	}
	if grammar.Sigil() != "!" {
		t.Fatalf("sigil=%q, want !", grammar.Sigil())
	}
	if _, ok := grammar.Lookup("login"); ok {
		t.Fatal("file grammar should replace the default")
	}
}

func TestLoadGrammarMissingFile(t *testing.T) {
	if _, err := loadGrammar(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing grammar file")
	}
}

func TestNewRejectsBadPageURL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "conf.yaml")
	body := "page_url: \"::not a url\"\nlog:\n  file:\n    enabled: false\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := New(path, Overrides{}, IO{}); err == nil {
		t.Fatal("expected page url error")
	}
}

func TestBaseLoggerFallbackReportsError(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	core, logs := observer.New(zapcore.WarnLevel)
	fallback := func(...zap.Option) (*zap.Logger, error) { return zap.New(core), nil }

	cfg := applogger.Config{Level: "info", File: applogger.FileConfig{Enabled: true, Path: filepath.Join(blocker, "logs")}}
	logger := newBaseLogger(cfg, fallback)
	if logger == nil {
		t.Fatal("logger is nil")
	}
	entries := logs.FilterMessage("logger config invalid, using defaults").All()
	if len(entries) != 1 {
		t.Fatalf("warnings=%d, want 1", len(entries))
	}
	if _, ok := entries[0].ContextMap()["error"]; !ok {
		t.Fatalf("warning has no error field: %v", entries[0].ContextMap())
	}
}

func TestBaseLoggerUsesConfig(t *testing.T) {
	called := false
	fallback := func(...zap.Option) (*zap.Logger, error) {
		called = true
		return zap.NewNop(), nil
	}
	if logger := newBaseLogger(applogger.Config{Level: "warn"}, fallback); logger == nil || called {
		t.Fatalf("logger=%v fallback called=%v", logger, called)
	}
}
