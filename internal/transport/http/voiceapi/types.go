package voiceapi

import (
	"voiceclone-server-go/internal/domain/voice"
	"voiceclone-server-go/internal/platform/storage"
)

// CloneVoiceData 克隆成功后 data 字段的结构
type CloneVoiceData struct {
	SpeakerName   string  `json:"speaker_name"`
	AudioDuration float64 `json:"audio_duration"`
	SampleRate    int     `json:"sample_rate"`
	TestSample    string  `json:"test_sample"`
}

// SpeakersData 说话人列表，按注册顺序
type SpeakersData struct {
	Speakers []string `json:"speakers"`
	Count    int      `json:"count"`
}

// SpeakerInfoData 单个说话人的档案
type SpeakerInfoData struct {
	SpeakerName string           `json:"speaker_name"`
	Info        *voice.VoiceInfo `json:"info"`
}

// UnknownSpeakerData 未知说话人的错误负载，附当前已注册列表
type UnknownSpeakerData struct {
	Error             string   `json:"error"`
	AvailableSpeakers []string `json:"available_speakers"`
}

// EngineStatus 引擎侧状态
type EngineStatus struct {
	URL     string `json:"url"`
	Ready   bool   `json:"ready"`
	Queued  int    `json:"queued"`
	Workers int    `json:"workers"`
}

// SystemStatus 宿主机资源占用
type SystemStatus struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
}

// HealthData 健康检查响应
type HealthData struct {
	Status      string       `json:"status"`
	ModelLoaded bool         `json:"model_loaded"`
	Engine      EngineStatus `json:"engine"`
	System      SystemStatus `json:"system"`
}

// RootData 根路径的服务说明
type RootData struct {
	Message   string            `json:"message"`
	Version   string            `json:"version"`
	Model     string            `json:"model"`
	Endpoints map[string]string `json:"endpoints"`
}

// ModelInfoData 模型说明
type ModelInfoData struct {
	ModelName          string   `json:"model_name"`
	LanguagesSupported []string `json:"languages_supported"`
	Features           []string `json:"features"`
}

// HistoryData 最近的合成记录，新的在前
type HistoryData struct {
	Records []storage.SynthesisRecord `json:"records"`
	Count   int                       `json:"count"`
}
