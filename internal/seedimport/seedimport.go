package seedimport

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"greyfuzz/config"
	"greyfuzz/internal/corpus"
	"greyfuzz/pkg/watchdog"
)

// Importer feeds externally supplied seeds into a running corpus. Files
// dropped into the import directory mid-run (an operator copying in a
// minimized corpus, another tool syncing its queue) join the seed
// population and get fuzzed like any other member.
type Importer struct {
	corpus    *corpus.Corpus
	importDir string
	logger    *zap.Logger
}

func NewImporter(cfg *config.AppConfig, c *corpus.Corpus, factory *watchdog.Factory, logger *zap.Logger, lifeCycle fx.Lifecycle) *Importer {
	imp := &Importer{
		corpus:    c,
		importDir: cfg.ImportDir,
		logger:    logger.Named("seedimport"),
	}

	watchCtx, cancel := context.WithCancel(context.Background())

	lifeCycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := os.MkdirAll(imp.importDir, 0755); err != nil {
				cancel()
				return err
			}
			notifyChan := make(chan string, 256)
			watcher, err := factory.New(watchCtx, notifyChan, filterHidden)
			if err != nil {
				cancel()
				return err
			}
			if err := watcher.AddDir(imp.importDir); err != nil {
				cancel()
				return err
			}
			go imp.drain(notifyChan)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			return nil
		},
	})

	return imp
}

// filterHidden skips dotfiles and editor temp files.
func filterHidden(path string) bool {
	return !strings.HasPrefix(filepath.Base(path), ".")
}

func (imp *Importer) drain(notifyChan <-chan string) {
	for path := range notifyChan {
		data, err := os.ReadFile(path)
		if err != nil {
			imp.logger.Warn("failed to read imported seed",
				zap.String("path", path), zap.Error(err))
			continue
		}
		if len(data) == 0 {
			continue
		}
		imp.corpus.AddSeed(data)
		imp.logger.Info("seed imported",
			zap.String("path", path), zap.Int("len", len(data)))
	}
}
