package voice

// 磁盘布局约定：每个说话人一个子目录，文件名固定
const (
	ReferenceFileName  = "reference.wav"
	TestSampleFileName = "test_sample.wav"
	metadataFileName   = "metadata.json"
)

// StatusActive 注册完成后的唯一状态
const StatusActive = "active"

// VoiceProfile 单个说话人的持久化元数据，metadata.json 中按名字索引
type VoiceProfile struct {
	Name                 string  `json:"name"`
	ReferenceAudioPath   string  `json:"reference_audio_path"`
	ValidationSamplePath string  `json:"validation_sample_path"`
	SampleRate           int     `json:"sample_rate"`
	DurationSeconds      float64 `json:"duration_seconds"`
	Status               string  `json:"status"`
	ID                   string  `json:"id"`
	CreatedAt            string  `json:"created_at"` // RFC3339
}

// VoiceInfo 查询返回的档案拷贝，附带参考音频文件大小
type VoiceInfo struct {
	VoiceProfile
	FileSizeMB float64 `json:"file_size_mb"`
}

// DeleteResult 删除操作的显式结果。未知说话人返回 {false, nil}；
// 文件删除失败时条目仍会移出索引，错误通过 Err 带回。
type DeleteResult struct {
	Deleted bool
	Err     error
}
