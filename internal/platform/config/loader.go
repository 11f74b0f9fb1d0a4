package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Loader reads configuration from the filesystem with environment overrides.
type Loader struct {
	useDotEnv bool
	path      string
}

// NewLoader creates a loader with the default file search order.
func NewLoader() *Loader {
	return &Loader{useDotEnv: true}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath overrides the configuration file path (useful for tests).
func (l *Loader) WithPath(path string) *Loader {
	if path != "" {
		l.path = path
	}
	return l
}

// Result captures the loaded configuration and its origin path.
type Result struct {
	Config *Config
	Path   string
}

// Load starts from defaults, merges the YAML file when one exists and applies
// environment overrides. A missing file is not an error; the defaults are
// complete enough to run against a local engine.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		if err := godotenv.Load(); err != nil {
			fmt.Println("未找到 .env 文件，使用系统环境变量")
		}
	}

	cfg := DefaultConfig()

	path := l.path
	if path == "" {
		path = firstExisting(".config.yaml", "config.yaml")
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	} else {
		path = "defaults"
	}

	applyEnvOverrides(cfg)

	if err := l.validate(cfg); err != nil {
		return nil, err
	}

	return &Result{Config: cfg, Path: path}, nil
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p
		}
	}
	return ""
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SERVER_IP"); v != "" {
		cfg.Server.IP = v
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("XTTS_URL"); v != "" {
		cfg.Engine.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.Redis.Addr = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.Validation.APIKey == "" {
		cfg.Validation.APIKey = v
	}
}

func (l *Loader) validate(cfg *Config) error {
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", cfg.Server.Port)
	}
	if cfg.Voice.SampleRate <= 0 {
		return fmt.Errorf("voice sample_rate must be positive: %d", cfg.Voice.SampleRate)
	}
	if cfg.Voice.MinClipSeconds <= 0 || cfg.Voice.MaxClipSeconds <= cfg.Voice.MinClipSeconds {
		return fmt.Errorf("invalid clip bounds: min %.1fs max %.1fs", cfg.Voice.MinClipSeconds, cfg.Voice.MaxClipSeconds)
	}
	if cfg.Voice.MaxUploadMB <= 0 {
		return fmt.Errorf("voice max_upload_mb must be positive: %d", cfg.Voice.MaxUploadMB)
	}
	if cfg.Voice.MaxTextChars <= 0 {
		return fmt.Errorf("voice max_text_chars must be positive: %d", cfg.Voice.MaxTextChars)
	}
	if strings.TrimSpace(cfg.Engine.URL) == "" {
		return fmt.Errorf("engine url must not be empty")
	}
	if cfg.Engine.Workers < 1 {
		return fmt.Errorf("engine workers must be at least 1: %d", cfg.Engine.Workers)
	}
	if cfg.Engine.QueueSize < 0 {
		return fmt.Errorf("engine queue_size must not be negative: %d", cfg.Engine.QueueSize)
	}
	if cfg.Engine.Timeout <= 0 {
		return fmt.Errorf("engine timeout must be positive: %d", cfg.Engine.Timeout)
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Cache.Type)) {
	case "", "memory":
	case "redis":
		if cfg.Cache.Redis.Addr == "" {
			return fmt.Errorf("redis cache requires an addr")
		}
	default:
		return fmt.Errorf("unknown cache type: %s", cfg.Cache.Type)
	}
	if cfg.Cleanup.Enabled {
		if cfg.Cleanup.MaxAge <= 0 {
			return fmt.Errorf("cleanup max_age must be positive: %d", cfg.Cleanup.MaxAge)
		}
		if cfg.Cleanup.Interval <= 0 {
			return fmt.Errorf("cleanup interval must be positive: %d", cfg.Cleanup.Interval)
		}
	}
	return nil
}
