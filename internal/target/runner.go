package target

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"greyfuzz/config"
	"greyfuzz/internal/coverage"
)

// Outcome classifies a single target execution.
type Outcome int

const (
	OutcomePass Outcome = iota
	OutcomeCrash
	OutcomeTimeout
)

func (o Outcome) String() string {
	switch o {
	case OutcomePass:
		return "pass"
	case OutcomeCrash:
		return "crash"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// RunResult is the outcome of one execution. Ephemeral; consumed by the
// worker that triggered the run.
type RunResult struct {
	Outcome  Outcome
	ExitCode int
	Signal   syscall.Signal // set when the target died to a signal
}

// Runner executes the compiled target once per call. Each execution gets a
// private scratch directory, so concurrent runners never read or write each
// other's coverage artifacts. Runners themselves hold no mutable state and
// are shared freely across workers.
type Runner struct {
	build     *Build
	workDir   string
	inputMode config.InputMode
	timeout   time.Duration
	logger    *zap.Logger
}

func NewRunner(build *Build, workDir string, inputMode config.InputMode, timeout time.Duration, logger *zap.Logger) *Runner {
	return &Runner{
		build:     build,
		workDir:   workDir,
		inputMode: inputMode,
		timeout:   timeout,
		logger:    logger.Named("runner"),
	}
}

// Execute runs the target with input and returns its outcome plus the
// coverage snapshot of the run. The per-run timeout is enforced with a hard
// kill; the subprocess never outlives the call. A run already in flight is
// deliberately not interrupted by engine shutdown; the per-run timeout
// bounds how long that can take, and it keeps coverage artifacts whole.
func (r *Runner) Execute(ctx context.Context, input []byte) (RunResult, coverage.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return RunResult{}, nil, err
	}

	scratch := filepath.Join(r.workDir, "greyfuzz-run-"+uuid.NewString())
	if err := os.MkdirAll(scratch, 0755); err != nil {
		return RunResult{}, nil, fmt.Errorf("failed to create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	// The instrumented binary writes its .gcda counters relative to the
	// compile-time path unless redirected, so each file it needs is staged
	// into the scratch dir and GCOV_PREFIX points the counters there too.
	for _, src := range []string{r.build.BinPath, r.build.SrcPath, r.build.GCNOPath} {
		if err := stageFile(src, filepath.Join(scratch, filepath.Base(src))); err != nil {
			return RunResult{}, nil, err
		}
	}

	runCtx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, filepath.Join(scratch, r.build.Unit))
	cmd.Dir = scratch
	cmd.Env = append(os.Environ(), "GCOV_PREFIX=.", "GCOV_PREFIX_STRIP=32")
	if r.inputMode == config.InputStdin {
		cmd.Stdin = bytes.NewReader(input)
	} else {
		cmd.Args = append(cmd.Args, string(input))
	}

	runErr := cmd.Run()

	if runCtx.Err() == context.DeadlineExceeded {
		return RunResult{Outcome: OutcomeTimeout}, nil, nil
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result := RunResult{Outcome: OutcomeCrash, ExitCode: exitErr.ExitCode()}
			if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
				result.Signal = ws.Signal()
			}
			return result, nil, nil
		}
		// Spawn failure: a per-run error, not a discovery.
		return RunResult{}, nil, fmt.Errorf("failed to run target: %w", runErr)
	}

	snap, err := r.collectCoverage(scratch)
	if err != nil {
		return RunResult{}, nil, err
	}
	return RunResult{Outcome: OutcomePass}, snap, nil
}

// collectCoverage turns the run's .gcda counters into a snapshot. The gcov
// invocation itself is best-effort: all that matters is that the report file
// exists and parses afterwards.
func (r *Runner) collectCoverage(scratch string) (coverage.Snapshot, error) {
	gcov := exec.Command("gcov", r.build.Unit+".c")
	gcov.Dir = scratch
	if out, err := gcov.CombinedOutput(); err != nil {
		r.logger.Debug("gcov invocation failed",
			zap.Error(err), zap.ByteString("output", out))
	}

	report, err := os.Open(filepath.Join(scratch, r.build.Unit+".c.gcov"))
	if err != nil {
		return nil, fmt.Errorf("coverage artifact unreadable: %w", err)
	}
	defer report.Close()

	return ParseGcov(report, r.build.Unit)
}

func stageFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("failed to stage %s: %w", filepath.Base(src), err)
	}
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.WriteFile(dst, data, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to stage %s: %w", filepath.Base(src), err)
	}
	return nil
}
