package watchdog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

// dropFile creates a file in dir atomically so the creation event never
// races a partial write.
func dropFile(t *testing.T, dir, name, content string) {
	t.Helper()
	tmp := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(tmp, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, name)); err != nil {
		t.Fatal(err)
	}
}

func TestWatcherForwardsCreatedFiles(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifyChan := make(chan string, 16)
	w, err := NewFactory(zap.NewNop()).New(ctx, notifyChan, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.AddDir(dir); err != nil {
		t.Fatal(err)
	}

	dropFile(t, dir, "seed-1", "content")

	select {
	case path := <-notifyChan:
		if filepath.Base(path) != "seed-1" {
			t.Fatalf("forwarded %q, want seed-1", path)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("creation event never arrived")
	}
}

func TestWatcherAppliesFilter(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	notifyChan := make(chan string, 16)
	noDotfiles := func(path string) bool {
		return !strings.HasPrefix(filepath.Base(path), ".")
	}
	w, err := NewFactory(zap.NewNop()).New(ctx, notifyChan, noDotfiles)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.AddDir(dir); err != nil {
		t.Fatal(err)
	}

	dropFile(t, dir, ".hidden", "skip me")
	dropFile(t, dir, "visible", "keep me")

	select {
	case path := <-notifyChan:
		if filepath.Base(path) != "visible" {
			t.Fatalf("filter let %q through", path)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("creation event never arrived")
	}
}

func TestWatcherClosesChannelOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	notifyChan := make(chan string, 16)
	w, err := NewFactory(zap.NewNop()).New(ctx, notifyChan, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.AddDir(t.TempDir()); err != nil {
		t.Fatal(err)
	}

	cancel()
	select {
	case _, ok := <-notifyChan:
		if ok {
			t.Fatal("received an event instead of channel close")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

// A full buffer with no consumer must not wedge the watch goroutine; cancel
// still shuts it down and closes the channel.
func TestWatcherUnblocksOnCancelWhenBufferFull(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())

	notifyChan := make(chan string, 1)
	w, err := NewFactory(zap.NewNop()).New(ctx, notifyChan, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.AddDir(dir); err != nil {
		t.Fatal(err)
	}

	dropFile(t, dir, "fills-buffer", "x")
	dropFile(t, dir, "blocks-send", "x")
	time.Sleep(200 * time.Millisecond)
	cancel()

	deadline := time.After(3 * time.Second)
	for {
		select {
		case _, ok := <-notifyChan:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("notify channel never closed after cancel")
		}
	}
}

func TestAddDirRequiresExistingDirectory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w, err := NewFactory(zap.NewNop()).New(ctx, make(chan string, 1), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.AddDir(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Fatal("watching a missing directory did not fail")
	}
}
