package task

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"voiceclone-server-go/internal/domain/eventbus"
	"voiceclone-server-go/internal/utils"
)

// Manager 定期清理 uploads/ 与 outputs/ 下的过期临时文件。
// 只处理顶层普通文件，声音库目录不在清理范围内。
type Manager struct {
	dirs     []string
	maxAge   time.Duration
	interval time.Duration
	logger   *utils.Logger

	trigger  chan struct{}
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// SweepResult 一轮清理的统计
type SweepResult struct {
	Removed int
	Failed  int
	Elapsed time.Duration
}

// NewManager 创建清理管理器。maxAge 是文件保留时长，interval 是扫描周期
func NewManager(dirs []string, maxAge, interval time.Duration, logger *utils.Logger) *Manager {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Manager{
		dirs:     dirs,
		maxAge:   maxAge,
		interval: interval,
		logger:   logger,
		trigger:  make(chan struct{}, 1),
		stopChan: make(chan struct{}),
	}
}

// Start 启动后台清理循环
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.run()
	m.logger.InfoTag("清理", "临时文件清理已启动: 保留=%s, 周期=%s, 目录=%v",
		m.maxAge, m.interval, m.dirs)
}

// Stop 停止清理循环并等待退出
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.stopChan)
	})
	m.wg.Wait()
}

// TriggerAsync 请求尽快执行一轮清理，不阻塞调用方。
// 克隆和合成接口在产生新临时文件后调用。
func (m *Manager) TriggerAsync() {
	select {
	case m.trigger <- struct{}{}:
	default:
		// 已有待处理的触发请求
	}
}

func (m *Manager) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.sweepAndReport()
		case <-m.trigger:
			m.sweepAndReport()
		}
	}
}

func (m *Manager) sweepAndReport() {
	res := m.Sweep()
	if res.Removed == 0 && res.Failed == 0 {
		return
	}
	m.logger.InfoTag("清理", "清理完成: 删除=%d, 失败=%d, 耗时=%dms",
		res.Removed, res.Failed, res.Elapsed.Milliseconds())
	eventbus.PublishAsync(eventbus.EventCleanupDone, eventbus.CleanupEventData{
		Removed: res.Removed,
		Failed:  res.Failed,
		Dirs:    m.dirs,
	})
}

// Sweep 立即执行一轮清理并返回统计。子目录一律跳过
func (m *Manager) Sweep() SweepResult {
	start := time.Now()
	cutoff := time.Now().Add(-m.maxAge)

	var res SweepResult
	for _, dir := range m.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if !os.IsNotExist(err) {
				m.logger.WarnTag("清理", "读取目录 %s 失败: %v", dir, err)
				res.Failed++
			}
			continue
		}

		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			info, err := entry.Info()
			if err != nil {
				res.Failed++
				continue
			}
			if info.ModTime().After(cutoff) {
				continue
			}

			path := filepath.Join(dir, entry.Name())
			if err := os.Remove(path); err != nil {
				m.logger.WarnTag("清理", "删除 %s 失败: %v", path, err)
				res.Failed++
				continue
			}
			res.Removed++
		}
	}

	res.Elapsed = time.Since(start)
	return res
}
