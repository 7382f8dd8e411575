package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"greyfuzz/config"
	"greyfuzz/internal/corpus"
	"greyfuzz/internal/coverage"
	"greyfuzz/internal/crash"
	"greyfuzz/internal/mutate"
	"greyfuzz/internal/target"
	"greyfuzz/internal/worker"
	"greyfuzz/pkg/database"
	"greyfuzz/pkg/telemetry"
)

// Orchestrator owns the run: it compiles the target once, seeds the corpus
// with baseline executions, fans out the workers, reports progress and
// coordinates shutdown when a budget is exhausted or the process is
// interrupted.
type Orchestrator struct {
	cfg           *config.AppConfig
	logger        *zap.Logger
	tracerFactory *telemetry.TracerFactory
	builder       *target.Builder
	corpus        *corpus.Corpus
	store         *corpus.Store
	crashManager  worker.Crasher
	db            *gorm.DB
	shutdowner    fx.Shutdowner

	keyer   coverage.Keyer
	mutator *mutate.Mutator
	done    chan struct{}
}

type Params struct {
	fx.In

	Lc            fx.Lifecycle
	Shutdowner    fx.Shutdowner
	Cfg           *config.AppConfig
	Logger        *zap.Logger
	TracerFactory *telemetry.TracerFactory
	Builder       *target.Builder
	Corpus        *corpus.Corpus
	Store         *corpus.Store
	CrashManager  *crash.Manager
	DB            *gorm.DB `optional:"true"`
}

func New(p Params) *Orchestrator {
	o := &Orchestrator{
		cfg:           p.Cfg,
		logger:        p.Logger.Named("orchestrator"),
		tracerFactory: p.TracerFactory,
		builder:       p.Builder,
		corpus:        p.Corpus,
		store:         p.Store,
		crashManager:  p.CrashManager,
		db:            p.DB,
		shutdowner:    p.Shutdowner,
		keyer:         coverage.KeyerFor(p.Cfg.NoveltyMode),
		mutator: mutate.New(mutate.Config{
			MinLen:       p.Cfg.MinInputLen,
			MinMutations: p.Cfg.MinMutations,
			MaxMutations: p.Cfg.MaxMutations,
			ForbidNUL:    p.Cfg.InputMode == config.InputArgv,
		}),
		done: make(chan struct{}),
	}

	engineCtx, cancel := context.WithCancel(context.Background())

	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			// Setup errors are the only ones allowed to take the process
			// down; everything past this point is absorbed per-run.
			if len(o.corpus.Population()) == 0 {
				cancel()
				return errors.New("no seed inputs configured (set SEEDS or SEED_DIR)")
			}
			build, err := o.builder.Compile(o.cfg.TargetSrc, o.cfg.TargetName, o.cfg.WorkDir)
			if err != nil {
				cancel()
				return err
			}
			runner := target.NewRunner(build, o.cfg.WorkDir, o.cfg.InputMode, o.cfg.RunTimeout, o.logger)
			go o.run(engineCtx, runner)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			select {
			case <-o.done:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		},
	})

	return o
}

func (o *Orchestrator) run(ctx context.Context, runner worker.Executor) {
	defer close(o.done)

	tracer := o.tracerFactory.NewTracer(ctx, "fuzzing session")
	tracer.Start()
	defer tracer.End()

	o.runBaseline(ctx, runner)

	var wg sync.WaitGroup
	for i := 0; i < o.cfg.WorkerCount; i++ {
		w := worker.New(i, o.corpus, o.mutator, runner, o.keyer, o.store,
			o.crashManager, o.db, o.cfg.TargetName, o.cfg.RNGSeed+int64(i), o.logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Run(ctx)
		}()
	}
	o.logger.Info("workers started",
		zap.Int("count", o.cfg.WorkerCount),
		zap.Int64("rng_seed", o.cfg.RNGSeed))

	o.report(ctx)

	wg.Wait()
	stats := o.corpus.SnapshotStats()
	o.printStats(stats)
	o.logger.Info("fuzzing finished",
		zap.Uint64("cases", stats.Cases),
		zap.Int("distinct_coverage", stats.Distinct),
		zap.Int("corpus_size", stats.CorpusSize),
		zap.Uint64("crashes", stats.Crashes))
	tracer.WithAttributes(map[string]any{
		"fuzz.cases":             stats.Cases,
		"fuzz.distinct_coverage": stats.Distinct,
		"fuzz.corpus_size":       stats.CorpusSize,
		"fuzz.crashes":           stats.Crashes,
		"fuzz.timeouts":          stats.Timeouts,
	})
	if stats.Crashes > 0 {
		tracer.SetStatus(codes.Ok, "crashes found")
	}
}

// runBaseline executes the initial seeds once each so their coverage is
// attributed before mutation starts. Baseline failures are per-run errors;
// the seed stays in the population either way. A passing seed claims its
// key on the population entry it already occupies and is persisted like
// any other coverage representative.
func (o *Orchestrator) runBaseline(ctx context.Context, runner worker.Executor) {
	for _, seed := range o.corpus.Population() {
		if ctx.Err() != nil {
			return
		}
		o.corpus.MarkSeen(seed)
		result, snap, err := runner.Execute(ctx, seed)
		o.corpus.AddCase()
		if err != nil {
			o.corpus.AddReject()
			o.logger.Warn("baseline seed execution failed", zap.Error(err))
			continue
		}
		switch result.Outcome {
		case target.OutcomeCrash:
			o.corpus.AddCrash()
			o.crashManager.Report(seed, result)
		case target.OutcomeTimeout:
			o.corpus.AddTimeout()
		case target.OutcomePass:
			key := o.keyer.Key(snap)
			if !o.corpus.ClaimSeed(key, seed) {
				continue
			}
			o.corpus.MergeCoverage(snap)
			path, err := o.store.Put(seed)
			if err != nil {
				o.logger.Error("failed to persist seed", zap.Error(err))
				continue
			}
			record := database.NewCorpusRecord(o.cfg.TargetName, path, key)
			if err := database.AddCorpusRecord(ctx, o.db, record); err != nil {
				o.logger.Error("failed to record corpus entry", zap.Error(err))
			}
		}
	}
}

// report prints a progress line once per interval and enforces the case and
// time budgets. Returns when the engine context is cancelled.
func (o *Orchestrator) report(ctx context.Context) {
	ticker := time.NewTicker(o.cfg.StatsInterval)
	defer ticker.Stop()

	var deadline <-chan time.Time
	if o.cfg.MaxDuration > 0 {
		timer := time.NewTimer(o.cfg.MaxDuration)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			o.logger.Info("time budget exhausted")
			o.shutdowner.Shutdown()
			return
		case <-ticker.C:
			stats := o.corpus.SnapshotStats()
			o.printStats(stats)
			if o.cfg.MaxCases > 0 && stats.Cases >= o.cfg.MaxCases {
				o.logger.Info("case budget exhausted", zap.Uint64("cases", stats.Cases))
				o.shutdowner.Shutdown()
				return
			}
		}
	}
}

func (o *Orchestrator) printStats(stats corpus.Stats) {
	fmt.Printf("%10.2fs | %9d fuzz cases | %6d cov | %6d distinct | %5d corpus | %4d crashes | %7.1f exec/s\n",
		stats.Elapsed.Seconds(), stats.Cases, stats.CoveredLocs, stats.Distinct,
		stats.CorpusSize, stats.Crashes, stats.ExecPerSec)
}
