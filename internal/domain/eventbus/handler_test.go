package eventbus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voiceclone-server-go/internal/platform/storage"
	"voiceclone-server-go/internal/utils"
)

type capturedEvent struct {
	eventType string
	speaker   string
	payload   interface{}
}

type capturingEventRepo struct {
	mu       sync.Mutex
	events   []capturedEvent
	appendFn func() error
}

func (r *capturingEventRepo) Append(_ context.Context, eventType, speaker string, payload interface{}) error {
	if r.appendFn != nil {
		if err := r.appendFn(); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, capturedEvent{eventType: eventType, speaker: speaker, payload: payload})
	return nil
}

func (r *capturingEventRepo) Recent(_ context.Context, _ int) ([]storage.DomainEvent, error) {
	return nil, nil
}

func (r *capturingEventRepo) captured() []capturedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]capturedEvent, len(r.events))
	copy(out, r.events)
	return out
}

func newTestLogger(t *testing.T) *utils.Logger {
	t.Helper()

	logger, err := utils.NewLogger(&utils.LogCfg{
		LogLevel: "debug",
		LogDir:   t.TempDir(),
		LogFile:  "events.log",
	})
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })
	return logger
}

func TestSinkPersistsVoiceCreated(t *testing.T) {
	// Arrange
	repo := &capturingEventRepo{}
	sink := NewSink(newTestLogger(t), repo)

	// Act
	sink.HandleVoiceCreated(VoiceEventData{
		Speaker:         "alice",
		DurationSeconds: 4.5,
		SampleRate:      22050,
	})

	// Assert
	events := repo.captured()
	require.Len(t, events, 1)
	assert.Equal(t, EventVoiceCreated, events[0].eventType)
	assert.Equal(t, "alice", events[0].speaker)

	data, ok := events[0].payload.(VoiceEventData)
	require.True(t, ok)
	assert.InDelta(t, 4.5, data.DurationSeconds, 1e-9)
}

func TestSinkPersistsSynthResults(t *testing.T) {
	repo := &capturingEventRepo{}
	sink := NewSink(newTestLogger(t), repo)

	sink.HandleSynthCompleted(SynthEventData{Speaker: "bob", TextChars: 42, Language: "en", Speed: 1.0})
	sink.HandleSynthFailed(SynthEventData{Speaker: "bob", Language: "en", Error: "engine unavailable"})

	events := repo.captured()
	require.Len(t, events, 2)
	assert.Equal(t, EventSynthCompleted, events[0].eventType)
	assert.Equal(t, EventSynthFailed, events[1].eventType)
	assert.Equal(t, "bob", events[1].speaker)
}

func TestSinkWithoutRepositoryOnlyLogs(t *testing.T) {
	sink := NewSink(newTestLogger(t), nil)

	// 不落库时所有处理函数都不应 panic
	assert.NotPanics(t, func() {
		sink.HandleVoiceCreated(VoiceEventData{Speaker: "alice"})
		sink.HandleVoiceDeleted(VoiceEventData{Speaker: "alice"})
		sink.HandleEngineReady(EngineEventData{URL: "http://127.0.0.1:8020"})
		sink.HandleCleanupDone(CleanupEventData{Removed: 3})
		sink.HandleSystemEvent(SystemEventData{Level: "error", Message: "boom"})
	})
}

func TestSinkSurvivesPersistFailure(t *testing.T) {
	repo := &capturingEventRepo{appendFn: func() error {
		return assert.AnError
	}}
	sink := NewSink(newTestLogger(t), repo)

	assert.NotPanics(t, func() {
		sink.HandleVoiceDeleted(VoiceEventData{Speaker: "ghost"})
	})
	assert.Empty(t, repo.captured())
}

func TestAsyncEventBusDeliversToSubscriber(t *testing.T) {
	bus := NewAsyncEventBus(2)
	bus.Start()
	defer bus.Stop()

	var mu sync.Mutex
	var got []string
	err := bus.Subscribe("test:topic", func(data VoiceEventData) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, data.Speaker)
	})
	require.NoError(t, err)

	bus.PublishAsync("test:topic", VoiceEventData{Speaker: "carol"})

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1 && got[0] == "carol"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAsyncEventBusDrainsQueueOnStop(t *testing.T) {
	bus := NewAsyncEventBus(1)

	var count sync.WaitGroup
	var mu sync.Mutex
	delivered := 0
	require.NoError(t, bus.Subscribe("drain:topic", func(_ VoiceEventData) {
		mu.Lock()
		delivered++
		mu.Unlock()
		count.Done()
	}))

	const total = 16
	count.Add(total)
	for i := 0; i < total; i++ {
		bus.PublishAsync("drain:topic", VoiceEventData{Speaker: "dave"})
	}

	// 事件先入队再启动 worker，Stop 必须等待队列排空
	bus.Start()
	bus.Stop()

	count.Wait()
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, total, delivered)
}

func TestAsyncEventBusCountsDroppedEvents(t *testing.T) {
	bus := NewAsyncEventBus(1) // 不启动 worker，队列只进不出

	for i := 0; i < asyncQueueSize+5; i++ {
		bus.PublishAsync("overflow:topic", VoiceEventData{Speaker: "eve"})
	}

	assert.Equal(t, int64(5), bus.Dropped())
}

func TestSetupEventHandlersRegistersSubscriptions(t *testing.T) {
	repo := &capturingEventRepo{}
	require.NoError(t, SetupEventHandlers(newTestLogger(t), repo))

	// 业务代码只通过异步总线发布，订阅必须挂在异步总线上才收得到
	PublishAsync(EventCleanupDone, CleanupEventData{Removed: 2, Failed: 1})

	assert.Eventually(t, func() bool {
		events := repo.captured()
		return len(events) > 0 && events[0].eventType == EventCleanupDone
	}, 2*time.Second, 10*time.Millisecond)
}
