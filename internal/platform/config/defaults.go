package config

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:   "0.0.0.0",
			Port: 8000,
		},
		Log: LogConfig{
			Level: "INFO",
			Dir:   "logs",
			File:  "server.log",
		},
		Web: WebConfig{
			Enabled:   true,
			StaticDir: "web",
		},
		Voice: VoiceConfig{
			VoicesDir:      "voices",
			UploadsDir:     "uploads",
			OutputsDir:     "outputs",
			SampleRate:     22050,
			MinClipSeconds: 3.0,
			MaxClipSeconds: 30.0,
			MaxUploadMB:    50,
			MaxTextChars:   1000,
		},
		Engine: EngineConfig{
			URL:           "http://127.0.0.1:8020",
			Timeout:       120,
			ProbeInterval: 5,
			Workers:       2,
			QueueSize:     8,
			Languages: []string{
				"en", "es", "fr", "de", "it", "pt", "pl",
				"tr", "ru", "nl", "cs", "ar", "zh-cn",
			},
		},
		Cache: CacheConfig{
			Type: "memory",
			TTL:  3600,
		},
		Cleanup: CleanupConfig{
			Enabled:  true,
			MaxAge:   3600,
			Interval: 600,
		},
		Validation: ValidationConfig{
			Sentence:   "This is a test of the voice cloning system.",
			Transcribe: false,
			Model:      "whisper-1",
		},
	}
}
