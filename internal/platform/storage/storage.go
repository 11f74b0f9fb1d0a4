package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"voiceclone-server-go/internal/platform/storage/migrations"
)

// Global database instance shared by the repositories.
var db *gorm.DB

// InitDatabase initializes the SQLite database for synthesis history and
// domain event persistence under ./data.
func InitDatabase() error {
	if db != nil {
		return nil
	}

	dataDir := "./data"
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	return InitDatabaseAt(filepath.Join(dataDir, "voiceclone.db"))
}

// InitDatabaseAt opens the database at an explicit path. Tests point this at
// a temp directory.
func InitDatabaseAt(path string) error {
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// Auto-migrate tables (fallback when the migration set lags the models)
	if err := gdb.AutoMigrate(&SynthesisRecord{}, &DomainEvent{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	migrationManager := NewMigrationManager(gdb)
	migrationManager.AddMigration(&migrations.Migration001Initial{})
	migrationManager.AddMigration(&migrations.Migration002HistoryIndexes{})

	if err := migrationManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	db = gdb
	return nil
}

// GetDB returns the global database instance.
func GetDB() *gorm.DB {
	if db == nil {
		panic("database not initialized, call InitDatabase() first")
	}
	return db
}

// CloseDatabase releases the underlying connection. Safe to call twice.
func CloseDatabase() error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	db = nil
	return sqlDB.Close()
}

// SynthesisRecord 合成历史记录
type SynthesisRecord struct {
	ID           uint      `gorm:"primaryKey"     json:"id"`
	Speaker      string    `gorm:"index;not null" json:"speaker"`
	TextChars    int       `gorm:"not null"       json:"text_chars"`
	Language     string    `                      json:"language"`
	Speed        float64   `                      json:"speed"`
	OutputPath   string    `                      json:"output_path"`
	AudioSeconds float64   `                      json:"audio_seconds"`
	ElapsedMS    int64     `                      json:"elapsed_ms"`
	Cached       bool      `                      json:"cached"`
	CreatedAt    time.Time `gorm:"index"          json:"created_at"`
}

// DomainEvent 领域事件存储模型
type DomainEvent struct {
	ID        uint           `gorm:"primaryKey"`
	EventType string         `gorm:"index;not null"` // 事件类型
	Speaker   string         `gorm:"index"`          // 说话人
	Data      datatypes.JSON `gorm:"not null"`       // 事件数据
	CreatedAt time.Time      `gorm:"index"`          // 创建时间
}
