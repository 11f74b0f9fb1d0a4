package storage

import (
	"context"

	"gorm.io/gorm"

	"voiceclone-server-go/internal/platform/errors"
)

// HistoryRepository 合成历史仓库
type HistoryRepository interface {
	Append(ctx context.Context, record *SynthesisRecord) error
	Recent(ctx context.Context, limit int) ([]SynthesisRecord, error)
}

// historyRepository 合成历史仓库实现
type historyRepository struct {
	db *gorm.DB
}

// NewHistoryRepository 创建合成历史仓库实例
func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{
		db: db,
	}
}

// Append 追加一条合成记录
func (r *historyRepository) Append(ctx context.Context, record *SynthesisRecord) error {
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return errors.Wrap(errors.KindStorage, "history.append", "failed to save synthesis record", err)
	}
	return nil
}

// Recent 按创建时间倒序返回最近的合成记录
func (r *historyRepository) Recent(ctx context.Context, limit int) ([]SynthesisRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	var records []SynthesisRecord
	if err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit).Find(&records).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "history.recent", "failed to query synthesis records", err)
	}
	return records, nil
}
