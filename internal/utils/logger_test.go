package utils

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewLogger(&LogCfg{
		LogLevel: "debug",
		LogDir:   tmpDir,
		LogFile:  "test.log",
	})

	assert.NoError(t, err)
	assert.NotNil(t, logger)

	err = logger.Close()
	assert.NoError(t, err)
}

func TestNewLogger_DefaultConfig(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewLogger(&LogCfg{
		LogFile: "default.log",
		LogDir:  tmpDir,
	})

	assert.NoError(t, err)
	assert.NotNil(t, logger)

	err = logger.Close()
	assert.NoError(t, err)
}

func TestLogger_Info(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewLogger(&LogCfg{
		LogLevel: "info",
		LogDir:   tmpDir,
		LogFile:  "info.log",
	})
	require.NoError(t, err)
	defer logger.Close()

	testMsg := "test info message"
	logger.Info("%s", testMsg)

	time.Sleep(10 * time.Millisecond)

	logFile := filepath.Join(tmpDir, "info.log")
	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), testMsg)
}

func TestLogger_Error(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewLogger(&LogCfg{
		LogLevel: "error",
		LogDir:   tmpDir,
		LogFile:  "error.log",
	})
	require.NoError(t, err)
	defer logger.Close()

	testMsg := "test error message"
	logger.Error("%s", testMsg)

	time.Sleep(10 * time.Millisecond)

	logFile := filepath.Join(tmpDir, "error.log")
	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), testMsg)
}

func TestLogger_InfoVoice(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewLogger(&LogCfg{
		LogLevel: "debug",
		LogDir:   tmpDir,
		LogFile:  "voice.log",
	})
	require.NoError(t, err)
	defer logger.Close()

	logger.InfoVoice("registered speaker alice")

	time.Sleep(10 * time.Millisecond)

	logFile := filepath.Join(tmpDir, "voice.log")
	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "[VOICE]")
	assert.Contains(t, string(content), "registered speaker alice")
}

func TestLogger_InfoAudio(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewLogger(&LogCfg{
		LogLevel: "debug",
		LogDir:   tmpDir,
		LogFile:  "audio.log",
	})
	require.NoError(t, err)
	defer logger.Close()

	logger.InfoAudio("trimmed 1.2s of silence")

	time.Sleep(10 * time.Millisecond)

	logFile := filepath.Join(tmpDir, "audio.log")
	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "[AUDIO]")
	assert.Contains(t, string(content), "trimmed 1.2s of silence")
}

func TestLogger_InfoTTS(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewLogger(&LogCfg{
		LogLevel: "debug",
		LogDir:   tmpDir,
		LogFile:  "tts.log",
	})
	require.NoError(t, err)
	defer logger.Close()

	logger.InfoTTS("synthesizing speech")

	time.Sleep(10 * time.Millisecond)

	logFile := filepath.Join(tmpDir, "tts.log")
	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "[TTS]")
	assert.Contains(t, string(content), "synthesizing speech")
}

func TestLogger_InfoTiming(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewLogger(&LogCfg{
		LogLevel: "debug",
		LogDir:   tmpDir,
		LogFile:  "timing.log",
	})
	require.NoError(t, err)
	defer logger.Close()

	logger.InfoTiming("inference took 850ms")

	time.Sleep(10 * time.Millisecond)

	logFile := filepath.Join(tmpDir, "timing.log")
	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "[TIMING]")
	assert.Contains(t, string(content), "inference took 850ms")
}

func TestLogger_LogLevelFiltering(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewLogger(&LogCfg{
		LogLevel: "error",
		LogDir:   tmpDir,
		LogFile:  "filter.log",
	})
	require.NoError(t, err)
	defer logger.Close()

	logger.Debug("this should not appear")
	logger.Info("this should not appear either")
	logger.Warn("this should not appear")
	logger.Error("this should appear")

	time.Sleep(10 * time.Millisecond)

	logFile := filepath.Join(tmpDir, "filter.log")
	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "this should not appear")
	assert.Contains(t, string(content), "this should appear")
}

func TestContainsFormatPlaceholders(t *testing.T) {
	tests := []struct {
		input    string
		expected bool
	}{
		{"hello world", false},
		{"hello %s", true},
		{"value is %d", true},
		{"no placeholders here", false},
		{"%[1]s argument", true},
	}

	for _, tt := range tests {
		result := containsFormatPlaceholders(tt.input)
		assert.Equal(t, tt.expected, result, "input: %s", tt.input)
	}
}

func TestCustomTextHandler_Enabled(t *testing.T) {
	handler := &CustomTextHandler{
		writer: &strings.Builder{},
		level:  slog.LevelInfo,
	}

	assert.True(t, handler.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, handler.Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, handler.Enabled(context.Background(), slog.LevelError))
	assert.False(t, handler.Enabled(context.Background(), slog.LevelDebug))
}

func TestConfigLogLevelToSlogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}

	for _, tt := range tests {
		result := configLogLevelToSlogLevel(tt.input)
		assert.Equal(t, tt.expected, result, "input: %s", tt.input)
	}
}

func TestFormatLog(t *testing.T) {
	tests := []struct {
		tag      string
		message  string
		expected string
	}{
		{"引导", "服务已启动", "[引导] 服务已启动"},
		{"", "plain message", "plain message"},
		{"HTTP", "[注册表] already tagged", "[注册表] already tagged"},
	}

	for _, tt := range tests {
		result := FormatLog(tt.tag, tt.message)
		assert.Equal(t, tt.expected, result)
	}
}

func TestLogger_ConcurrentLogging(t *testing.T) {
	tmpDir := t.TempDir()

	logger, err := NewLogger(&LogCfg{
		LogLevel: "debug",
		LogDir:   tmpDir,
		LogFile:  "concurrent.log",
	})
	require.NoError(t, err)
	defer logger.Close()

	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			logger.Info("concurrent message number %d", idx)
		}(i)
	}

	wg.Wait()

	time.Sleep(50 * time.Millisecond)

	logFile := filepath.Join(tmpDir, "concurrent.log")
	content, err := os.ReadFile(logFile)
	require.NoError(t, err)

	count := strings.Count(string(content), "concurrent message number")
	assert.Equal(t, 10, count)
}
