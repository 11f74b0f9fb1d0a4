package migrations

import (
	"gorm.io/gorm"
)

// Migration001Initial 初始迁移 - 创建基础表结构
type Migration001Initial struct{}

func (m *Migration001Initial) Version() string {
	return "001_initial"
}

func (m *Migration001Initial) Description() string {
	return "Create synthesis history and domain event tables"
}

func (m *Migration001Initial) Up(db *gorm.DB) error {
	// 创建合成历史表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS synthesis_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			speaker VARCHAR(255) NOT NULL,
			text_chars INTEGER NOT NULL,
			language VARCHAR(16),
			speed REAL,
			output_path VARCHAR(512),
			audio_seconds REAL,
			elapsed_ms INTEGER,
			cached BOOLEAN DEFAULT FALSE,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return err
	}

	// 创建领域事件表
	if err := db.Exec(`
		CREATE TABLE IF NOT EXISTS domain_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_type VARCHAR(255) NOT NULL,
			speaker VARCHAR(255),
			data JSON NOT NULL,
			created_at DATETIME NOT NULL
		)
	`).Error; err != nil {
		return err
	}

	return nil
}

func (m *Migration001Initial) Down(db *gorm.DB) error {
	if err := db.Exec(`DROP TABLE IF EXISTS synthesis_records`).Error; err != nil {
		return err
	}
	return db.Exec(`DROP TABLE IF EXISTS domain_events`).Error
}
