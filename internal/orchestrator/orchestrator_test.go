package orchestrator

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"greyfuzz/config"
	"greyfuzz/internal/corpus"
	"greyfuzz/internal/coverage"
	"greyfuzz/internal/target"
)

type fakeExecutor func(input []byte) (target.RunResult, coverage.Snapshot, error)

func (f fakeExecutor) Execute(ctx context.Context, input []byte) (target.RunResult, coverage.Snapshot, error) {
	return f(input)
}

type recordingCrasher struct {
	inputs [][]byte
}

func (r *recordingCrasher) Report(input []byte, result target.RunResult) {
	r.inputs = append(r.inputs, input)
}

func newBaselineOrchestrator(t *testing.T, c *corpus.Corpus) (*Orchestrator, *recordingCrasher, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := corpus.NewStore(dir, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	crasher := &recordingCrasher{}
	o := &Orchestrator{
		cfg:          &config.AppConfig{TargetName: "demo"},
		logger:       zap.NewNop(),
		corpus:       c,
		store:        store,
		crashManager: crasher,
		keyer:        coverage.HashKeyer{},
	}
	return o, crasher, dir
}

func snapshotOf(lines ...int) coverage.Snapshot {
	snap := coverage.NewSnapshot()
	for _, line := range lines {
		snap.Add(coverage.Location{Unit: "demo", Line: line})
	}
	return snap
}

// A passing seed must keep its single population entry, get its novelty key
// attached to it, and land in the corpus store.
func TestBaselineAttributesSeedCoverageInPlace(t *testing.T) {
	c := corpus.New(corpus.ScheduleRare, [][]byte{[]byte("good")})
	o, _, dir := newBaselineOrchestrator(t, c)

	exec := fakeExecutor(func(input []byte) (target.RunResult, coverage.Snapshot, error) {
		return target.RunResult{Outcome: target.OutcomePass}, snapshotOf(8, 9), nil
	})
	o.runBaseline(context.Background(), exec)

	stats := c.SnapshotStats()
	if stats.CorpusSize != 1 {
		t.Fatalf("CorpusSize = %d after baselining one seed, want 1", stats.CorpusSize)
	}
	if stats.Distinct != 1 {
		t.Fatalf("Distinct = %d, want 1", stats.Distinct)
	}
	if stats.Cases != 1 {
		t.Fatalf("Cases = %d, want 1", stats.Cases)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("%d files persisted, want the seed's coverage representative", len(entries))
	}
	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte("good")) {
		t.Fatalf("persisted %q, want the seed content", data)
	}
}

func TestBaselineSharedCoverageClaimsOnce(t *testing.T) {
	c := corpus.New(corpus.ScheduleRare, [][]byte{[]byte("one"), []byte("two")})
	o, _, dir := newBaselineOrchestrator(t, c)

	exec := fakeExecutor(func(input []byte) (target.RunResult, coverage.Snapshot, error) {
		return target.RunResult{Outcome: target.OutcomePass}, snapshotOf(8, 9), nil
	})
	o.runBaseline(context.Background(), exec)

	stats := c.SnapshotStats()
	if stats.CorpusSize != 2 {
		t.Fatalf("CorpusSize = %d, want both seeds kept", stats.CorpusSize)
	}
	if stats.Distinct != 1 {
		t.Fatalf("Distinct = %d, want the shared key counted once", stats.Distinct)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("%d files persisted for one coverage key, want 1", len(entries))
	}
}

func TestBaselineReportsCrashingSeed(t *testing.T) {
	c := corpus.New(corpus.ScheduleRare, [][]byte{[]byte("bad!seed")})
	o, crasher, dir := newBaselineOrchestrator(t, c)

	exec := fakeExecutor(func(input []byte) (target.RunResult, coverage.Snapshot, error) {
		return target.RunResult{Outcome: target.OutcomeCrash, ExitCode: 134}, nil, nil
	})
	o.runBaseline(context.Background(), exec)

	if len(crasher.inputs) != 1 || !bytes.Equal(crasher.inputs[0], []byte("bad!seed")) {
		t.Fatalf("crasher got %q, want the crashing seed", crasher.inputs)
	}
	stats := c.SnapshotStats()
	if stats.Crashes != 1 {
		t.Fatalf("Crashes = %d, want 1", stats.Crashes)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatal("crashing seed persisted to the corpus store")
	}
}
