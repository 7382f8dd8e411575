package database

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// AddFinding inserts a crash record. A nil db is a no-op.
func AddFinding(ctx context.Context, db *gorm.DB, finding *Finding) error {
	if db == nil || finding == nil {
		return nil
	}
	return db.WithContext(ctx).Create(finding).Error
}

// AddCorpusRecord inserts a new-coverage record. A nil db is a no-op.
func AddCorpusRecord(ctx context.Context, db *gorm.DB, record *CorpusRecord) error {
	if db == nil || record == nil {
		return nil
	}
	return db.WithContext(ctx).Create(record).Error
}

// NewFinding creates a Finding for a crash persisted at poc.
func NewFinding(target, poc, signal string, exitCode int) *Finding {
	return &Finding{
		Target:    target,
		CreatedAt: time.Now(),
		POC:       poc,
		Signal:    signal,
		ExitCode:  exitCode,
	}
}

// NewCorpusRecord creates a CorpusRecord for an input persisted at path.
func NewCorpusRecord(target, path, fingerprint string) *CorpusRecord {
	return &CorpusRecord{
		Target:      target,
		CreatedAt:   time.Now(),
		Path:        path,
		Fingerprint: fingerprint,
	}
}
