package storage

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"voiceclone-server-go/internal/platform/errors"
)

// EventRepository 领域事件仓库
type EventRepository interface {
	Append(ctx context.Context, eventType, speaker string, payload interface{}) error
	Recent(ctx context.Context, limit int) ([]DomainEvent, error)
}

// eventRepository 领域事件仓库实现
type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository 创建领域事件仓库实例
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{
		db: db,
	}
}

// Append 持久化一条领域事件，payload 序列化为 JSON
func (r *eventRepository) Append(ctx context.Context, eventType, speaker string, payload interface{}) error {
	data, err := sonic.Marshal(payload)
	if err != nil {
		return errors.Wrap(errors.KindStorage, "event.marshal", "failed to marshal event payload", err)
	}

	event := &DomainEvent{
		EventType: eventType,
		Speaker:   speaker,
		Data:      datatypes.JSON(data),
		CreatedAt: time.Now(),
	}
	if err := r.db.WithContext(ctx).Create(event).Error; err != nil {
		return errors.Wrap(errors.KindStorage, "event.append", "failed to save domain event", err)
	}
	return nil
}

// Recent 按创建时间倒序返回最近的领域事件
func (r *eventRepository) Recent(ctx context.Context, limit int) ([]DomainEvent, error) {
	if limit <= 0 {
		limit = 20
	}

	var events []DomainEvent
	if err := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, errors.Wrap(errors.KindStorage, "event.recent", "failed to query domain events", err)
	}
	return events, nil
}
