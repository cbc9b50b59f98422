package database

import (
	"testing"

	"github.com/MarcoPoloResearchLab/canvas/backend/internal/drawings"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestOpenInMemoryMigratesDrawingSchema(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	db, err := OpenInMemory(zap.New(core))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql handle: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if !db.Migrator().HasTable(&drawings.Record{}) {
		t.Fatalf("expected saved_drawings table to exist")
	}
	if logs.FilterMessage("drawing store initialized").Len() != 1 {
		t.Fatalf("expected initialization log entry")
	}
}

func TestOpenInMemoryIsolatesDatabases(t *testing.T) {
	first, err := OpenInMemory(nil)
	if err != nil {
		t.Fatalf("failed to open first database: %v", err)
	}
	second, err := OpenInMemory(nil)
	if err != nil {
		t.Fatalf("failed to open second database: %v", err)
	}

	if err := first.Create(&drawings.Record{DrawingID: "d-1", RoomID: "r-1", ActionsJSON: "[]", CreatedAtMillis: 1, UpdatedAtMillis: 1}).Error; err != nil {
		t.Fatalf("failed to insert: %v", err)
	}
	var count int64
	if err := second.Model(&drawings.Record{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count: %v", err)
	}
	if count != 0 {
		t.Fatalf("databases should not share rows, found %d", count)
	}
}
