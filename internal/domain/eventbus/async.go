package eventbus

import (
	"sync"
	"sync/atomic"

	evbus "github.com/asaskevich/EventBus"
)

const asyncQueueSize = 1024

// AsyncEventBus 在固定数量的工作协程上分发事件，
// 发布方永不阻塞，队列满时事件被丢弃并计数。
type AsyncEventBus struct {
	bus       evbus.Bus
	workerNum int
	workChan  chan asyncEvent
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	dropped   atomic.Int64
}

type asyncEvent struct {
	topic string
	args  []interface{}
}

// NewAsyncEventBus 创建异步事件总线
func NewAsyncEventBus(workerNum int) *AsyncEventBus {
	if workerNum <= 0 {
		workerNum = defaultAsyncWorkers
	}

	return &AsyncEventBus{
		bus:       evbus.New(),
		workerNum: workerNum,
		workChan:  make(chan asyncEvent, asyncQueueSize),
		stopChan:  make(chan struct{}),
	}
}

// Start 启动异步处理
func (aeb *AsyncEventBus) Start() {
	for i := 0; i < aeb.workerNum; i++ {
		aeb.wg.Add(1)
		go aeb.worker()
	}
}

// Stop 停止异步处理，排空已入队事件
func (aeb *AsyncEventBus) Stop() {
	aeb.stopOnce.Do(func() {
		close(aeb.stopChan)
	})
	aeb.wg.Wait()
}

func (aeb *AsyncEventBus) worker() {
	defer aeb.wg.Done()

	for {
		select {
		case <-aeb.stopChan:
			// 停止前先把队列里剩余的事件发完
			for {
				select {
				case event := <-aeb.workChan:
					aeb.dispatch(event)
				default:
					return
				}
			}
		case event := <-aeb.workChan:
			aeb.dispatch(event)
		}
	}
}

// dispatch 单个事件的订阅回调不允许拖垮 worker
func (aeb *AsyncEventBus) dispatch(event asyncEvent) {
	defer func() {
		_ = recover()
	}()
	aeb.bus.Publish(event.topic, event.args...)
}

// Publish 发布事件（同步）
func (aeb *AsyncEventBus) Publish(topic string, args ...interface{}) {
	aeb.bus.Publish(topic, args...)
}

// PublishAsync 异步发布事件
func (aeb *AsyncEventBus) PublishAsync(topic string, args ...interface{}) {
	select {
	case aeb.workChan <- asyncEvent{topic: topic, args: args}:
	default:
		aeb.dropped.Add(1)
	}
}

// Subscribe 订阅事件
func (aeb *AsyncEventBus) Subscribe(topic string, fn interface{}) error {
	return aeb.bus.Subscribe(topic, fn)
}

// SubscribeAsync 订阅异步事件
func (aeb *AsyncEventBus) SubscribeAsync(topic string, fn interface{}) error {
	return aeb.bus.Subscribe(topic, fn)
}

// Unsubscribe 取消订阅
func (aeb *AsyncEventBus) Unsubscribe(topic string, handler interface{}) error {
	return aeb.bus.Unsubscribe(topic, handler)
}

// HasCallback 检查是否有订阅者
func (aeb *AsyncEventBus) HasCallback(topic string) bool {
	return aeb.bus.HasCallback(topic)
}

// Dropped 返回因队列满被丢弃的事件数
func (aeb *AsyncEventBus) Dropped() int64 {
	return aeb.dropped.Load()
}
