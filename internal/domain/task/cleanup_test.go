package task

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voiceclone-server-go/internal/utils"
)

func newTestLogger(t *testing.T) *utils.Logger {
	t.Helper()
	logger, err := utils.NewLogger(&utils.LogCfg{
		LogLevel: "debug",
		LogDir:   t.TempDir(),
		LogFile:  "cleanup.log",
	})
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })
	return logger
}

// touchFile 创建文件并把修改时间拨到 age 之前
func touchFile(t *testing.T, path string, age time.Duration) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))
	old := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, old, old))
}

func TestSweepRemovesOnlyStaleFiles(t *testing.T) {
	uploads := t.TempDir()
	outputs := t.TempDir()

	touchFile(t, filepath.Join(uploads, "old_upload.wav"), 2*time.Hour)
	touchFile(t, filepath.Join(outputs, "old_output.wav"), 2*time.Hour)
	require.NoError(t, os.WriteFile(filepath.Join(outputs, "fresh_output.wav"), []byte("new"), 0o644))

	m := NewManager([]string{uploads, outputs}, time.Hour, time.Minute, newTestLogger(t))
	res := m.Sweep()

	assert.Equal(t, 2, res.Removed)
	assert.Equal(t, 0, res.Failed)
	assert.NoFileExists(t, filepath.Join(uploads, "old_upload.wav"))
	assert.NoFileExists(t, filepath.Join(outputs, "old_output.wav"))
	assert.FileExists(t, filepath.Join(outputs, "fresh_output.wav"))
}

func TestSweepSkipsDirectories(t *testing.T) {
	outputs := t.TempDir()

	// 子目录即使很旧也不能动
	nested := filepath.Join(outputs, "keep")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	old := time.Now().Add(-3 * time.Hour)
	require.NoError(t, os.Chtimes(nested, old, old))
	touchFile(t, filepath.Join(nested, "inner.wav"), 3*time.Hour)

	m := NewManager([]string{outputs}, time.Hour, time.Minute, newTestLogger(t))
	res := m.Sweep()

	assert.Equal(t, 0, res.Removed)
	assert.DirExists(t, nested)
	assert.FileExists(t, filepath.Join(nested, "inner.wav"))
}

func TestSweepToleratesMissingDirectory(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "not_created_yet")

	m := NewManager([]string{missing}, time.Hour, time.Minute, newTestLogger(t))
	res := m.Sweep()

	assert.Equal(t, 0, res.Removed)
	assert.Equal(t, 0, res.Failed, "目录不存在不算失败")
}

func TestTriggerAsyncRunsSweep(t *testing.T) {
	uploads := t.TempDir()
	stale := filepath.Join(uploads, "stale.wav")
	touchFile(t, stale, 2*time.Hour)

	// 扫描周期拉长到小时级，确保删除只能由触发请求引起
	m := NewManager([]string{uploads}, time.Hour, time.Hour, newTestLogger(t))
	m.Start()
	t.Cleanup(m.Stop)

	m.TriggerAsync()

	assert.Eventually(t, func() bool {
		_, err := os.Stat(stale)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestTriggerAsyncNeverBlocks(t *testing.T) {
	m := NewManager([]string{t.TempDir()}, time.Hour, time.Hour, newTestLogger(t))
	// 未启动循环时连续触发也不能阻塞
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			m.TriggerAsync()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("TriggerAsync 阻塞了调用方")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	m := NewManager([]string{t.TempDir()}, time.Hour, time.Hour, newTestLogger(t))
	m.Start()

	assert.NotPanics(t, func() {
		m.Stop()
		m.Stop()
	})
}
