package crash

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"greyfuzz/config"
	"greyfuzz/internal/target"
	"greyfuzz/pkg/database"
)

// Report is one crashing execution handed over by a worker.
type Report struct {
	Input  []byte
	Result target.RunResult
}

// Manager drains crash reports off the hot path. Workers only enqueue; the
// manager's goroutine dedups by content hash, persists the proof-of-crash
// input and records the finding. A crash is a discovery, never an engine
// error: nothing here propagates back into the fuzzing loop.
type Manager struct {
	db     *gorm.DB
	logger *zap.Logger
	target string

	crashDir string
	reports  chan Report
	seen     map[string]struct{}
	done     chan struct{}
}

func NewManager(cfg *config.AppConfig, db *gorm.DB, logger *zap.Logger, lifeCycle fx.Lifecycle) *Manager {
	m := &Manager{
		db:       db,
		logger:   logger.Named("crash"),
		target:   cfg.TargetName,
		crashDir: cfg.CrashDir,
		reports:  make(chan Report, 1024),
		seen:     make(map[string]struct{}),
		done:     make(chan struct{}),
	}

	lifeCycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := os.MkdirAll(m.crashDir, 0755); err != nil {
				return fmt.Errorf("failed to create crash directory: %w", err)
			}
			go m.start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			m.logger.Debug("stopping crash manager")
			close(m.reports)
			<-m.done // wait until queued crashes are flushed
			return nil
		},
	})

	return m
}

// Report enqueues a crashing input. Drops the report if the queue is full
// rather than stalling the worker; the crash count in statistics still
// reflects it.
func (m *Manager) Report(input []byte, result target.RunResult) {
	select {
	case m.reports <- Report{Input: input, Result: result}:
	default:
		m.logger.Warn("crash queue full, dropping report")
	}
}

func (m *Manager) start() {
	defer close(m.done)
	for report := range m.reports {
		if err := m.process(report); err != nil {
			m.logger.Error("failed to process crash", zap.Error(err))
		}
	}
}

func (m *Manager) process(report Report) error {
	sum := md5.Sum(report.Input)
	key := hex.EncodeToString(sum[:])
	if _, ok := m.seen[key]; ok {
		return nil
	}
	m.seen[key] = struct{}{}

	crashPath := filepath.Join(m.crashDir, key+".input")
	if err := os.WriteFile(crashPath, report.Input, 0644); err != nil {
		return fmt.Errorf("failed to write crash file: %w", err)
	}

	signal := ""
	if report.Result.Signal != 0 {
		signal = report.Result.Signal.String()
	}
	m.logger.Warn("crash persisted",
		zap.String("path", crashPath),
		zap.String("signal", signal),
		zap.Int("exit_code", report.Result.ExitCode))

	finding := database.NewFinding(m.target, crashPath, signal, report.Result.ExitCode)
	if err := database.AddFinding(context.Background(), m.db, finding); err != nil {
		return fmt.Errorf("failed to record finding: %w", err)
	}
	return nil
}
