package migrations

import (
	"gorm.io/gorm"
)

// Migration002HistoryIndexes 历史查询索引迁移
type Migration002HistoryIndexes struct{}

func (m *Migration002HistoryIndexes) Version() string {
	return "002_history_indexes"
}

func (m *Migration002HistoryIndexes) Description() string {
	return "Add lookup indexes for history and event queries"
}

func (m *Migration002HistoryIndexes) Up(db *gorm.DB) error {
	statements := []string{
		`CREATE INDEX IF NOT EXISTS idx_synthesis_records_speaker ON synthesis_records(speaker)`,
		`CREATE INDEX IF NOT EXISTS idx_synthesis_records_created_at ON synthesis_records(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_domain_events_event_type ON domain_events(event_type)`,
		`CREATE INDEX IF NOT EXISTS idx_domain_events_created_at ON domain_events(created_at)`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}

func (m *Migration002HistoryIndexes) Down(db *gorm.DB) error {
	statements := []string{
		`DROP INDEX IF EXISTS idx_synthesis_records_speaker`,
		`DROP INDEX IF EXISTS idx_synthesis_records_created_at`,
		`DROP INDEX IF EXISTS idx_domain_events_event_type`,
		`DROP INDEX IF EXISTS idx_domain_events_created_at`,
	}
	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
