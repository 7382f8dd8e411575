package crash

import (
	"bytes"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"greyfuzz/config"
	"greyfuzz/internal/target"
)

func TestManagerPersistsAndDedupsCrashes(t *testing.T) {
	crashDir := filepath.Join(t.TempDir(), "crashes")
	cfg := &config.AppConfig{TargetName: "demo", CrashDir: crashDir}

	lc := fxtest.NewLifecycle(t)
	m := NewManager(cfg, nil, zap.NewNop(), lc)
	lc.RequireStart()

	result := target.RunResult{Outcome: target.OutcomeCrash, ExitCode: -1, Signal: syscall.SIGSEGV}
	m.Report([]byte("bad!input"), result)
	m.Report([]byte("bad!input"), result)
	m.Report([]byte("bad!other"), result)

	// Stop waits for the queue to flush.
	lc.RequireStop()

	entries, err := os.ReadDir(crashDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("%d crash files on disk, want 2 (dedup by content)", len(entries))
	}

	found := false
	for _, entry := range entries {
		data, err := os.ReadFile(filepath.Join(crashDir, entry.Name()))
		if err != nil {
			t.Fatal(err)
		}
		if bytes.Equal(data, []byte("bad!input")) {
			found = true
		}
	}
	if !found {
		t.Fatal("persisted crash files do not contain the reported input")
	}
}
