package corpus

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"greyfuzz/config"
)

// NewFromConfig builds the corpus seeded from SEEDS and, when set, every
// regular file under SEED_DIR.
func NewFromConfig(cfg *config.AppConfig, logger *zap.Logger) *Corpus {
	seeds := make([][]byte, 0, len(cfg.Seeds))
	seeds = append(seeds, cfg.Seeds...)

	if cfg.SeedDir != "" {
		entries, err := os.ReadDir(cfg.SeedDir)
		if err != nil {
			logger.Warn("failed to read seed directory",
				zap.String("dir", cfg.SeedDir), zap.Error(err))
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			data, err := os.ReadFile(filepath.Join(cfg.SeedDir, entry.Name()))
			if err != nil {
				logger.Warn("failed to read seed file",
					zap.String("file", entry.Name()), zap.Error(err))
				continue
			}
			if len(data) > 0 {
				seeds = append(seeds, data)
			}
		}
	}

	return New(ScheduleFor(cfg.SeedSchedule), seeds)
}

// NewStoreFromConfig builds the on-disk corpus store at CORPUS_DIR.
func NewStoreFromConfig(cfg *config.AppConfig, logger *zap.Logger) (*Store, error) {
	return NewStore(cfg.CorpusDir, logger)
}
