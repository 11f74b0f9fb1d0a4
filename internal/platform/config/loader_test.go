package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoader_Load(t *testing.T) {
	// 创建临时配置文件
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, ".config.yaml")

	configContent := `
server:
  ip: "127.0.0.1"
  port: 8080
log:
  log_level: "DEBUG"
  log_dir: "/tmp/logs"
  log_file: "test.log"
engine:
  url: "http://127.0.0.1:9020"
  workers: 4
`

	err := os.WriteFile(configFile, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	// 切换到临时目录
	oldWd, _ := os.Getwd()
	os.Chdir(tempDir)
	defer os.Chdir(oldWd)

	loader := NewLoader().WithDotEnv(false)
	res, err := loader.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	cfg := res.Config
	if res.Path != ".config.yaml" {
		t.Errorf("expected path .config.yaml, got %s", res.Path)
	}
	if cfg.Server.IP != "127.0.0.1" {
		t.Errorf("expected server IP 127.0.0.1, got %s", cfg.Server.IP)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected server port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Log.Level != "DEBUG" {
		t.Errorf("expected log level DEBUG, got %s", cfg.Log.Level)
	}
	if cfg.Engine.URL != "http://127.0.0.1:9020" {
		t.Errorf("expected engine url override, got %s", cfg.Engine.URL)
	}
	if cfg.Engine.Workers != 4 {
		t.Errorf("expected 4 engine workers, got %d", cfg.Engine.Workers)
	}
	// 未覆盖的字段保留默认值
	if cfg.Voice.SampleRate != 22050 {
		t.Errorf("expected default sample rate 22050, got %d", cfg.Voice.SampleRate)
	}
}

func TestLoader_Load_NoFile(t *testing.T) {
	tempDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tempDir)
	defer os.Chdir(oldWd)

	loader := NewLoader().WithDotEnv(false)
	res, err := loader.Load()
	if err != nil {
		t.Fatalf("failed to load defaults: %v", err)
	}

	if res.Path != "defaults" {
		t.Errorf("expected path defaults, got %s", res.Path)
	}
	if res.Config.Server.Port != 8000 {
		t.Errorf("expected default port 8000, got %d", res.Config.Server.Port)
	}
	if res.Config.Voice.VoicesDir != "voices" {
		t.Errorf("expected default voices dir, got %s", res.Config.Voice.VoicesDir)
	}
	if len(res.Config.Engine.Languages) == 0 {
		t.Error("expected default language list to be populated")
	}
}

func TestLoader_EnvOverrides(t *testing.T) {
	tempDir := t.TempDir()
	oldWd, _ := os.Getwd()
	os.Chdir(tempDir)
	defer os.Chdir(oldWd)

	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("XTTS_URL", "http://engine.local:8020")
	t.Setenv("LOG_LEVEL", "debug")

	loader := NewLoader().WithDotEnv(false)
	res, err := loader.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if res.Config.Server.Port != 9000 {
		t.Errorf("expected env port 9000, got %d", res.Config.Server.Port)
	}
	if res.Config.Engine.URL != "http://engine.local:8020" {
		t.Errorf("expected env engine url, got %s", res.Config.Engine.URL)
	}
	if res.Config.Log.Level != "debug" {
		t.Errorf("expected env log level, got %s", res.Config.Log.Level)
	}
}

func TestLoader_Validate(t *testing.T) {
	loader := NewLoader()

	base := func(mutate func(*Config)) *Config {
		cfg := DefaultConfig()
		if mutate != nil {
			mutate(cfg)
		}
		return cfg
	}

	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:    "valid config",
			config:  base(nil),
			wantErr: false,
		},
		{
			name:    "invalid server port",
			config:  base(func(c *Config) { c.Server.Port = 70000 }),
			wantErr: true,
		},
		{
			name:    "zero sample rate",
			config:  base(func(c *Config) { c.Voice.SampleRate = 0 }),
			wantErr: true,
		},
		{
			name:    "clip bounds inverted",
			config:  base(func(c *Config) { c.Voice.MinClipSeconds = 30; c.Voice.MaxClipSeconds = 3 }),
			wantErr: true,
		},
		{
			name:    "no engine workers",
			config:  base(func(c *Config) { c.Engine.Workers = 0 }),
			wantErr: true,
		},
		{
			name:    "unknown cache type",
			config:  base(func(c *Config) { c.Cache.Type = "memcached" }),
			wantErr: true,
		},
		{
			name:    "redis cache without addr",
			config:  base(func(c *Config) { c.Cache.Type = "redis" }),
			wantErr: true,
		},
		{
			name:    "cleanup interval zero",
			config:  base(func(c *Config) { c.Cleanup.Interval = 0 }),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := loader.validate(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
