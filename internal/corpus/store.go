package corpus

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Store persists interesting inputs, one file per input. Filenames are the
// md5 of the content, so concurrent writers never collide and re-discovered
// inputs dedup on inspection.
type Store struct {
	dir    string
	logger *zap.Logger
}

func NewStore(dir string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create corpus directory: %w", err)
	}
	return &Store{dir: dir, logger: logger}, nil
}

// Put writes the input and returns the path it was stored at.
func (s *Store) Put(input []byte) (string, error) {
	sum := md5.Sum(input)
	path := filepath.Join(s.dir, hex.EncodeToString(sum[:])+".input")
	if err := os.WriteFile(path, input, 0644); err != nil {
		return "", fmt.Errorf("failed to persist input: %w", err)
	}
	s.logger.Debug("persisted interesting input",
		zap.String("path", path), zap.Int("len", len(input)))
	return path, nil
}
