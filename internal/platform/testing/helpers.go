package testing

import (
	"path/filepath"
	"testing"

	"voiceclone-server-go/internal/platform/config"
	"voiceclone-server-go/internal/platform/logging"
)

// SetupTestConfig 返回一份指向临时目录的完整配置
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Server.IP = "127.0.0.1"
	cfg.Server.Port = 0
	cfg.Log.Level = "DEBUG"
	cfg.Log.Dir = filepath.Join(base, "logs")
	cfg.Log.File = "test.log"
	cfg.Web.Enabled = false
	cfg.Voice.VoicesDir = filepath.Join(base, "voices")
	cfg.Voice.UploadsDir = filepath.Join(base, "uploads")
	cfg.Voice.OutputsDir = filepath.Join(base, "outputs")
	cfg.Cleanup.Enabled = false

	return cfg
}

// SetupTestLogger 返回写入临时目录的日志器
func SetupTestLogger(t *testing.T) *logging.Logger {
	t.Helper()

	cfg := SetupTestConfig(t)
	logger, err := logging.New(logging.Config{
		Level:    cfg.Log.Level,
		Dir:      cfg.Log.Dir,
		Filename: cfg.Log.File,
	})

	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}

	return logger
}

func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error but got nil")
	}
}

func AssertEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()
	if expected != actual {
		t.Fatalf("expected %v, got %v", expected, actual)
	}
}
