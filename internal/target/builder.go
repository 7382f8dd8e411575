package target

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"go.uber.org/zap"
)

// Build is the process-scoped handle to the compiled, instrumented target.
// It is produced exactly once at startup and shared read-only by every
// runner for the lifetime of the run.
type Build struct {
	Unit     string // source unit name used in coverage locations
	Dir      string // build directory holding all three files below
	BinPath  string
	SrcPath  string
	GCNOPath string // compile-time coverage notes emitted by gcc
}

// Builder compiles a target C source with coverage instrumentation. Any
// failure here is a setup error: the caller aborts startup instead of
// retrying per run.
type Builder struct {
	logger *zap.Logger
}

func NewBuilder(logger *zap.Logger) *Builder {
	return &Builder{logger: logger.Named("builder")}
}

// Compile runs `gcc -Wall -g --coverage` once over srcPath, placing the
// binary and its .gcno notes in a build directory under workDir.
func (b *Builder) Compile(srcPath, unit, workDir string) (*Build, error) {
	if _, err := exec.LookPath("gcc"); err != nil {
		return nil, fmt.Errorf("gcc not found on PATH: %w", err)
	}

	src, err := os.ReadFile(srcPath)
	if err != nil {
		return nil, fmt.Errorf("target source unreadable: %w", err)
	}

	buildDir := filepath.Join(workDir, "greyfuzz-build-"+unit)
	if err := os.MkdirAll(buildDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create build directory: %w", err)
	}

	// The source is copied next to the binary under the unit name, so the
	// .gcno notes and later .gcov artifacts all share that name.
	localSrc := filepath.Join(buildDir, unit+".c")
	if err := os.WriteFile(localSrc, src, 0644); err != nil {
		return nil, fmt.Errorf("failed to stage target source: %w", err)
	}

	cmd := exec.Command("gcc", "-Wall", "-g", "--coverage", "-o", unit, unit+".c")
	cmd.Dir = buildDir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("target compilation failed: %w\n%s", err, out)
	}

	build := &Build{
		Unit:     unit,
		Dir:      buildDir,
		BinPath:  filepath.Join(buildDir, unit),
		SrcPath:  localSrc,
		GCNOPath: filepath.Join(buildDir, unit+".gcno"),
	}
	if _, err := os.Stat(build.BinPath); err != nil {
		return nil, fmt.Errorf("compiled binary missing: %w", err)
	}

	b.logger.Info("target compiled",
		zap.String("src", srcPath),
		zap.String("bin", build.BinPath))
	return build, nil
}
