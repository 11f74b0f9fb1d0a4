package eventbus

import (
	"context"
	"time"

	"voiceclone-server-go/internal/platform/storage"
	"voiceclone-server-go/internal/utils"
)

const persistTimeout = 5 * time.Second

// Sink 领域事件落地器：写结构化日志，并把关键事件持久化到事件表。
// events 允许为 nil，此时只记日志不落库。
type Sink struct {
	logger *utils.Logger
	events storage.EventRepository
}

// NewSink 创建事件落地器
func NewSink(logger *utils.Logger, events storage.EventRepository) *Sink {
	return &Sink{
		logger: logger,
		events: events,
	}
}

// HandleVoiceCreated 处理声音注册事件
func (s *Sink) HandleVoiceCreated(data VoiceEventData) {
	s.logger.InfoTag("事件", "声音已注册: speaker=%s, 时长=%.2fs, 采样率=%d, 覆盖=%v",
		data.Speaker, data.DurationSeconds, data.SampleRate, data.Overwrite)
	s.persist(EventVoiceCreated, data.Speaker, data)
}

// HandleVoiceDeleted 处理声音删除事件
func (s *Sink) HandleVoiceDeleted(data VoiceEventData) {
	s.logger.InfoTag("事件", "声音已删除: speaker=%s", data.Speaker)
	s.persist(EventVoiceDeleted, data.Speaker, data)
}

// HandleSynthCompleted 处理合成完成事件
func (s *Sink) HandleSynthCompleted(data SynthEventData) {
	s.logger.InfoTag("事件", "合成完成: speaker=%s, 字符=%d, 语言=%s, 语速=%.2f, 耗时=%dms, 缓存=%v",
		data.Speaker, data.TextChars, data.Language, data.Speed, data.ElapsedMS, data.Cached)
	s.persist(EventSynthCompleted, data.Speaker, data)
}

// HandleSynthFailed 处理合成失败事件
func (s *Sink) HandleSynthFailed(data SynthEventData) {
	s.logger.WarnTag("事件", "合成失败: speaker=%s, 语言=%s, 原因=%s",
		data.Speaker, data.Language, data.Error)
	s.persist(EventSynthFailed, data.Speaker, data)
}

// HandleEngineReady 处理引擎就绪事件
func (s *Sink) HandleEngineReady(data EngineEventData) {
	s.logger.InfoTag("事件", "推理引擎就绪: %s", data.URL)
	s.persist(EventEngineReady, "", data)
}

// HandleCleanupDone 处理清理完成事件
func (s *Sink) HandleCleanupDone(data CleanupEventData) {
	s.logger.InfoTag("事件", "临时文件清理完成: 删除=%d, 失败=%d", data.Removed, data.Failed)
	s.persist(EventCleanupDone, "", data)
}

// HandleSystemEvent 处理系统级事件
func (s *Sink) HandleSystemEvent(data SystemEventData) {
	switch data.Level {
	case "error":
		s.logger.ErrorTag("事件", "%s", data.Message)
	case "warn":
		s.logger.WarnTag("事件", "%s", data.Message)
	default:
		s.logger.InfoTag("事件", "%s", data.Message)
	}
}

// persist 落库失败只告警，不影响业务链路
func (s *Sink) persist(eventType, speaker string, payload interface{}) {
	if s.events == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.events.Append(ctx, eventType, speaker, payload); err != nil {
		s.logger.WarnTag("事件", "事件落库失败: type=%s, err=%v", eventType, err)
	}
}

// SetupEventHandlers 注册默认事件订阅
func SetupEventHandlers(logger *utils.Logger, events storage.EventRepository) error {
	sink := NewSink(logger, events)

	subscriptions := []struct {
		topic string
		fn    interface{}
	}{
		{EventVoiceCreated, sink.HandleVoiceCreated},
		{EventVoiceDeleted, sink.HandleVoiceDeleted},
		{EventSynthCompleted, sink.HandleSynthCompleted},
		{EventSynthFailed, sink.HandleSynthFailed},
		{EventEngineReady, sink.HandleEngineReady},
		{EventCleanupDone, sink.HandleCleanupDone},
		{EventSystemError, sink.HandleSystemEvent},
		{EventSystemInfo, sink.HandleSystemEvent},
	}

	// 所有发布方都走异步总线，只注册一处
	for _, sub := range subscriptions {
		if err := GetAsync().Subscribe(sub.topic, sub.fn); err != nil {
			return err
		}
	}
	return nil
}
