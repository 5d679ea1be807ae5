package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestCommandLogAppendAndAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "commands.db")
	log, err := OpenCommandLog(path)
	if err != nil {
		t.Fatalf("OpenCommandLog: %v", err)
	}
	ctx := context.Background()
	for _, line := range []string{"/guests", "@bob hi", "hello"} {
		if err := log.Append(ctx, line); err != nil {
			t.Fatalf("Append(%q): %v", line, err)
		}
	}
	if err := log.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := OpenCommandLog(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	lines, err := reopened.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	want := []string{"/guests", "@bob hi", "hello"}
	if len(lines) != len(want) {
		t.Fatalf("lines=%v, want %v", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Fatalf("lines[%d]=%q, want %q", i, lines[i], want[i])
		}
	}
}

func TestCommandLogInMemory(t *testing.T) {
	log, err := OpenCommandLog(":memory:")
	if err != nil {
		t.Fatalf("OpenCommandLog: %v", err)
	}
	defer log.Close()
	if err := log.Append(context.Background(), "x"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	lines, err := log.All(context.Background())
	if err != nil || len(lines) != 1 {
		t.Fatalf("All=%v, %v", lines, err)
	}
}

func TestRecallBrowsing(t *testing.T) {
	r := NewRecall([]string{"a", "b", "c"})
	if r.index != -1 {
		t.Fatalf("index=%d, want -1", r.index)
	}
	if _, ok := r.Next(); ok {
		t.Fatalf("Next while not browsing ok=true")
	}

	for _, want := range []string{"c", "b", "a", "a"} {
		got, ok := r.Prev()
		if !ok || got != want {
			t.Fatalf("Prev=%q,%v; want %q", got, ok, want)
		}
	}
	for _, want := range []string{"b", "c", ""} {
		got, ok := r.Next()
		if !ok || got != want {
			t.Fatalf("Next=%q,%v; want %q", got, ok, want)
		}
	}
	if r.index != -1 {
		t.Fatalf("index=%d after leaving newest, want -1", r.index)
	}

	r.Prev()
	r.Push("d")
	if r.index != -1 {
		t.Fatalf("index=%d after Push, want -1", r.index)
	}
	if got, _ := r.Prev(); got != "d" {
		t.Fatalf("Prev after Push=%q, want d", got)
	}
}

func TestRecallEmpty(t *testing.T) {
	r := NewRecall(nil)
	if _, ok := r.Prev(); ok {
		t.Fatalf("Prev on empty ok=true")
	}
}

func TestCredentialStoreKeyring(t *testing.T) {
	keyring.MockInit()
	store := NewCredentialStore("spiritio-test", "access_token", "", nil)

	token, err := store.Load()
	if err != nil || token != "" {
		t.Fatalf("Load empty=%q, %v", token, err)
	}
	if err := store.Save("tok-1"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if token, _ := store.Load(); token != "tok-1" {
		t.Fatalf("Load=%q, want tok-1", token)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if token, _ := store.Load(); token != "" {
		t.Fatalf("Load after Clear=%q", token)
	}
}

func TestCredentialStoreFallbackFile(t *testing.T) {
	keyring.MockInitWithError(errors.New("no keyring"))
	t.Cleanup(keyring.MockInit)

	path := filepath.Join(t.TempDir(), "data", "access_token")
	store := NewCredentialStore("spiritio-test", "access_token", path, nil)

	if token, err := store.Load(); err != nil || token != "" {
		t.Fatalf("Load missing file=%q, %v", token, err)
	}
	if err := store.Save("tok-2"); err != nil {
		t.Fatalf("Save: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("perm=%o, want 600", perm)
	}
	if token, _ := store.Load(); token != "tok-2" {
		t.Fatalf("Load=%q, want tok-2", token)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file still present: %v", err)
	}
}

func TestCredentialStoreNoFallbackError(t *testing.T) {
	keyring.MockInitWithError(errors.New("no keyring"))
	t.Cleanup(keyring.MockInit)

	store := NewCredentialStore("spiritio-test", "access_token", "", nil)
	if _, err := store.Load(); err == nil {
		t.Fatalf("Load err=nil without keyring or fallback")
	}
	if err := store.Save("x"); err == nil {
		t.Fatalf("Save err=nil without keyring or fallback")
	}
}
