package config

type Config struct {
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Web        WebConfig        `yaml:"web" mapstructure:"web"`
	Voice      VoiceConfig      `yaml:"voice" mapstructure:"voice"`
	Engine     EngineConfig     `yaml:"engine" mapstructure:"engine"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Cleanup    CleanupConfig    `yaml:"cleanup" mapstructure:"cleanup"`
	Validation ValidationConfig `yaml:"validation" mapstructure:"validation"`
}

type ServerConfig struct {
	IP   string `yaml:"ip" mapstructure:"ip"`
	Port int    `yaml:"port" mapstructure:"port"`
}

type LogConfig struct {
	Level  string `yaml:"log_level" mapstructure:"log_level"`
	Dir    string `yaml:"log_dir" mapstructure:"log_dir"`
	File   string `yaml:"log_file" mapstructure:"log_file"`
	Format string `yaml:"log_format" mapstructure:"log_format"`
}

type WebConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	StaticDir string `yaml:"static_dir" mapstructure:"static_dir"`
}

// VoiceConfig 语音库配置
type VoiceConfig struct {
	VoicesDir      string  `yaml:"voices_dir" mapstructure:"voices_dir"`
	UploadsDir     string  `yaml:"uploads_dir" mapstructure:"uploads_dir"`
	OutputsDir     string  `yaml:"outputs_dir" mapstructure:"outputs_dir"`
	SampleRate     int     `yaml:"sample_rate" mapstructure:"sample_rate"`
	MinClipSeconds float64 `yaml:"min_clip_seconds" mapstructure:"min_clip_seconds"`
	MaxClipSeconds float64 `yaml:"max_clip_seconds" mapstructure:"max_clip_seconds"`
	MaxUploadMB    int64   `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	MaxTextChars   int     `yaml:"max_text_chars" mapstructure:"max_text_chars"`
}

// EngineConfig 推理引擎配置（外部 XTTS v2 服务）
type EngineConfig struct {
	URL           string   `yaml:"url" mapstructure:"url"`
	Timeout       int      `yaml:"timeout" mapstructure:"timeout"`               // 请求超时（秒）
	ProbeInterval int      `yaml:"probe_interval" mapstructure:"probe_interval"` // 就绪探测间隔（秒）
	Workers       int      `yaml:"workers" mapstructure:"workers"`
	QueueSize     int      `yaml:"queue_size" mapstructure:"queue_size"`
	Languages     []string `yaml:"languages" mapstructure:"languages"`
}

type CacheConfig struct {
	Type  string           `yaml:"type" mapstructure:"type"` // memory/redis
	TTL   int              `yaml:"ttl" mapstructure:"ttl"`   // 秒，0 表示不过期
	Redis RedisCacheConfig `yaml:"redis,omitempty" mapstructure:"redis"`
}

type RedisCacheConfig struct {
	Addr     string `yaml:"addr" mapstructure:"addr"`
	Username string `yaml:"username,omitempty" mapstructure:"username"`
	Password string `yaml:"password,omitempty" mapstructure:"password"`
	DB       int    `yaml:"db,omitempty" mapstructure:"db"`
	Prefix   string `yaml:"prefix,omitempty" mapstructure:"prefix"`
}

// CleanupConfig 临时文件清理配置
type CleanupConfig struct {
	Enabled  bool `yaml:"enabled" mapstructure:"enabled"`
	MaxAge   int  `yaml:"max_age" mapstructure:"max_age"`   // 文件保留时长（秒）
	Interval int  `yaml:"interval" mapstructure:"interval"` // 扫描周期（秒）
}

// ValidationConfig 克隆校验配置
type ValidationConfig struct {
	Sentence   string `yaml:"sentence" mapstructure:"sentence"`
	Transcribe bool   `yaml:"transcribe" mapstructure:"transcribe"`
	APIKey     string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	Model      string `yaml:"model" mapstructure:"model"`
}
