package database

import (
	"fmt"

	"github.com/MarcoPoloResearchLab/canvas/backend/internal/drawings"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// OpenInMemory opens a private SQLite database that lives only in process memory and
// migrates the drawing schema. Nothing survives a restart.
func OpenInMemory(logger *zap.Logger) (*gorm.DB, error) {
	name, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:canvas-%s?mode=memory&cache=shared", name.String())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// The shared-cache database disappears once its last connection closes.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(0)

	if err := db.AutoMigrate(&drawings.Record{}); err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info("drawing store initialized", zap.String("dsn", dsn))
	}

	return db, nil
}
