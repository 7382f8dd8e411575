package worker

import (
	"context"
	"math/rand"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"greyfuzz/internal/corpus"
	"greyfuzz/internal/coverage"
	"greyfuzz/internal/mutate"
	"greyfuzz/internal/target"
	"greyfuzz/pkg/database"
)

// Executor runs one candidate against the target. Satisfied by
// *target.Runner; tests substitute in-process fakes.
type Executor interface {
	Execute(ctx context.Context, input []byte) (target.RunResult, coverage.Snapshot, error)
}

// Persister stores an interesting input and returns where it went.
// Satisfied by *corpus.Store.
type Persister interface {
	Put(input []byte) (string, error)
}

// Crasher accepts crashing inputs. Satisfied by *crash.Manager.
type Crasher interface {
	Report(input []byte, result target.RunResult)
}

// Worker drives one fuzzing loop: sample a seed, mutate it, execute the
// candidate, classify the outcome, update the corpus. Workers share only
// the corpus; the RNG, and every input until it is handed to the corpus,
// are exclusively theirs.
type Worker struct {
	id      int
	corpus  *corpus.Corpus
	mutator *mutate.Mutator
	exec    Executor
	keyer   coverage.Keyer
	store   Persister
	crasher Crasher
	db      *gorm.DB
	target  string
	rng     *rand.Rand
	logger  *zap.Logger
}

func New(
	id int,
	c *corpus.Corpus,
	mutator *mutate.Mutator,
	exec Executor,
	keyer coverage.Keyer,
	store Persister,
	crasher Crasher,
	db *gorm.DB,
	targetName string,
	rngSeed int64,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		id:      id,
		corpus:  c,
		mutator: mutator,
		exec:    exec,
		keyer:   keyer,
		store:   store,
		crasher: crasher,
		db:      db,
		target:  targetName,
		rng:     rand.New(rand.NewSource(rngSeed)),
		logger:  logger.With(zap.Int("worker", id)),
	}
}

// Run loops until the context is cancelled. The stop flag is checked at the
// top of each iteration; an execution already in flight finishes on its own
// per-run timeout.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Debug("worker started")
	for ctx.Err() == nil {
		w.step(ctx)
	}
	w.logger.Debug("worker stopped")
}

func (w *Worker) step(ctx context.Context) {
	seed := w.corpus.SampleSeed(w.rng)
	candidate := w.mutator.Mutate(w.rng, seed)

	// Re-running a byte-identical candidate cannot produce new coverage on
	// a deterministic target; skip it before paying for a subprocess.
	if !w.corpus.MarkSeen(candidate) {
		return
	}

	result, snap, err := w.exec.Execute(ctx, candidate)
	if ctx.Err() != nil {
		return
	}
	w.corpus.AddCase()
	if err != nil {
		// Per-run errors are absorbed: the case is discarded and the loop
		// continues. They must never take the worker down.
		w.corpus.AddReject()
		w.logger.Debug("fuzz case discarded", zap.Error(err))
		return
	}

	switch result.Outcome {
	case target.OutcomeCrash:
		w.corpus.AddCrash()
		w.crasher.Report(candidate, result)

	case target.OutcomeTimeout:
		w.corpus.AddTimeout()

	case target.OutcomePass:
		key := w.keyer.Key(snap)
		if !w.corpus.TryRecord(key, candidate) {
			return
		}
		w.corpus.MergeCoverage(snap)
		path, err := w.store.Put(candidate)
		if err != nil {
			w.logger.Error("failed to persist input", zap.Error(err))
			return
		}
		w.logger.Info("new coverage",
			zap.String("key", key),
			zap.Int("coverage", snap.Len()),
			zap.String("path", path))
		record := database.NewCorpusRecord(w.target, path, key)
		if err := database.AddCorpusRecord(ctx, w.db, record); err != nil {
			w.logger.Error("failed to record corpus entry", zap.Error(err))
		}
	}
}
