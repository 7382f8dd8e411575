package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Finding is one persisted crash discovery.
type Finding struct {
	ID        int       `gorm:"primaryKey;column:id"`
	Target    string    `gorm:"column:target;not null"`
	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
	POC       string    `gorm:"column:poc;not null"` // path to the crashing input
	Signal    string    `gorm:"column:signal"`
	ExitCode  int       `gorm:"column:exit_code"`
	Metric    Metric    `gorm:"column:metric;type:jsonb"`
}

// CorpusRecord is one persisted new-coverage discovery.
type CorpusRecord struct {
	ID          int       `gorm:"primaryKey;column:id"`
	Target      string    `gorm:"column:target;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;default:now()"`
	Path        string    `gorm:"column:path;not null"`
	Fingerprint string    `gorm:"column:fingerprint;not null"`
}

// Metric is a free-form jsonb field for run metadata.
type Metric map[string]any

// Value implements the driver.Valuer interface for the Metric type
func (m Metric) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface for the Metric type
func (m *Metric) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(bytes, &m)
}
