package audio

import (
	"path/filepath"
	"strings"
	"time"

	"voiceclone-server-go/internal/platform/errors"
	"voiceclone-server-go/internal/utils"
)

// Result 预处理结果。失败时 Path 回退为原始路径，Err 说明原因，
// 由调用方决定降级处理是否可接受。Duration 为处理耗时。
type Result struct {
	Path     string
	Applied  bool
	Err      error
	Duration time.Duration
}

// Preprocessor 参考音频规范化处理器
type Preprocessor struct {
	MinSeconds float64
	MaxSeconds float64
	TrimDB     float64

	logger *utils.Logger
}

// NewPreprocessor 创建预处理器，默认 3~30 秒裁剪窗口、20dB 静音阈值
func NewPreprocessor(logger *utils.Logger) *Preprocessor {
	return &Preprocessor{
		MinSeconds: 3.0,
		MaxSeconds: 30.0,
		TrimDB:     20.0,
		logger:     logger,
	}
}

// Canonicalize 将参考音频规范化：解码为单声道、去首尾静音、峰值归一化、
// 重采样到 targetRate、循环补齐到最短时长并截断超长部分，最后以 16bit PCM
// WAV 写到输入文件旁的 <stem>_processed.wav。任何失败都不会抛出，Result
// 带回原路径和错误；输入文件永远不被修改。
func (p *Preprocessor) Canonicalize(path string, targetRate int) Result {
	start := time.Now()

	fail := func(err error) Result {
		if p.logger != nil {
			p.logger.WarnTag("音频", "预处理失败，回退原始文件 %s: %v", path, err)
		}
		return Result{
			Path:     path,
			Applied:  false,
			Err:      err,
			Duration: time.Since(start),
		}
	}

	if targetRate <= 0 {
		return fail(errors.New(errors.KindDomain, "audio.preprocess", "target sample rate must be positive"))
	}

	clip, err := Decode(path)
	if err != nil {
		return fail(errors.Wrap(errors.KindDomain, "audio.preprocess", "decode failed", err))
	}
	if len(clip.Samples) == 0 {
		return fail(errors.New(errors.KindDomain, "audio.preprocess", "clip has no samples"))
	}

	samples := TrimSilence(clip.Samples, p.TrimDB)
	samples = Normalize(samples)

	if clip.SampleRate != targetRate {
		samples = Resample(samples, clip.SampleRate, targetRate)
	}
	if len(samples) == 0 {
		return fail(errors.New(errors.KindDomain, "audio.preprocess", "clip empty after trim/resample"))
	}

	minLen := int(float64(targetRate) * p.MinSeconds)
	maxLen := int(float64(targetRate) * p.MaxSeconds)
	samples = TileToLength(samples, minLen)
	samples = Truncate(samples, maxLen)

	outPath := processedPath(path)
	if err := WriteWav(outPath, &Clip{Samples: samples, SampleRate: targetRate}); err != nil {
		return fail(errors.Wrap(errors.KindDomain, "audio.preprocess", "write processed wav failed", err))
	}

	elapsed := time.Since(start)
	if p.logger != nil {
		p.logger.InfoAudio("预处理完成 %s -> %s (%.2fs 音频, 耗时 %dms)",
			filepath.Base(path), filepath.Base(outPath),
			float64(len(samples))/float64(targetRate), elapsed.Milliseconds())
	}

	return Result{
		Path:     outPath,
		Applied:  true,
		Duration: elapsed,
	}
}

func processedPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_processed.wav"
}
