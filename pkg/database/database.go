package database

import (
	"greyfuzz/config"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewDBConnection opens the findings database when DATABASE_URL is set. The
// engine runs standalone otherwise: a nil *gorm.DB means recording is
// skipped and every writer nil-checks before use.
func NewDBConnection(appConfig *config.AppConfig, logger *zap.Logger) *gorm.DB {
	if appConfig.DatabaseURL == "" {
		logger.Info("findings database disabled (DATABASE_URL not set)")
		return nil
	}
	db, err := gorm.Open(postgres.Open(appConfig.DatabaseURL), &gorm.Config{})
	if err != nil {
		logger.Fatal("failed to connect findings database", zap.Error(err))
	}
	if err := db.AutoMigrate(&Finding{}, &CorpusRecord{}); err != nil {
		logger.Fatal("failed to migrate findings schema", zap.Error(err))
	}
	logger.Debug("connected to findings database")
	return db
}
