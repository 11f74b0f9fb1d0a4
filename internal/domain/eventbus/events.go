package eventbus

// 事件主题定义
const (
	// 声音注册表相关事件
	EventVoiceCreated = "voice:created"
	EventVoiceDeleted = "voice:deleted"

	// 合成相关事件
	EventSynthCompleted = "synth:completed"
	EventSynthFailed    = "synth:failed"

	// 引擎相关事件
	EventEngineReady = "engine:ready"

	// 系统事件
	EventCleanupDone = "cleanup:done"
	EventSystemError = "system:error"
	EventSystemInfo  = "system:info"
)

// 事件数据结构
type VoiceEventData struct {
	Speaker         string  `json:"speaker"`
	DurationSeconds float64 `json:"duration_seconds,omitempty"`
	SampleRate      int     `json:"sample_rate,omitempty"`
	Overwrite       bool    `json:"overwrite,omitempty"`
	Degraded        bool    `json:"degraded,omitempty"` // 预处理降级后入库
}

type SynthEventData struct {
	Speaker      string  `json:"speaker"`
	TextChars    int     `json:"text_chars"`
	Language     string  `json:"language"`
	Speed        float64 `json:"speed"`
	OutputPath   string  `json:"output_path,omitempty"`
	AudioSeconds float64 `json:"audio_seconds,omitempty"`
	ElapsedMS    int64   `json:"elapsed_ms"`
	Cached       bool    `json:"cached"`
	Error        string  `json:"error,omitempty"`
}

type EngineEventData struct {
	URL     string `json:"url"`
	Elapsed string `json:"elapsed,omitempty"`
}

type CleanupEventData struct {
	Removed int      `json:"removed"`
	Failed  int      `json:"failed"`
	Dirs    []string `json:"dirs,omitempty"`
}

type SystemEventData struct {
	Level   string      `json:"level"` // error, warn, info
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}
