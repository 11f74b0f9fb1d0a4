package synth

import (
	"voiceclone-server-go/internal/domain/audio"
	"voiceclone-server-go/internal/platform/errors"
)

// 语速允许区间，与接口层校验保持一致
const (
	MinSpeed = 0.5
	MaxSpeed = 2.0
)

// SpeedInRange 校验语速参数
func SpeedInRange(speed float64) bool {
	return speed >= MinSpeed && speed <= MaxSpeed
}

// AdjustSpeed 对输出文件原地变速：解码、重叠相加法伸缩、重新写盘。
// rate>1 加速，rate<1 减速，音高保持不变。
func AdjustSpeed(path string, rate float64) error {
	if rate == 1.0 {
		return nil
	}
	if !SpeedInRange(rate) {
		return errors.New(errors.KindDomain, "synth.stretch", "speed out of range")
	}

	clip, err := audio.Decode(path)
	if err != nil {
		return errors.Wrap(errors.KindDomain, "synth.stretch", "decode output failed", err)
	}

	stretched := audio.TimeStretch(clip.Samples, rate)
	if len(stretched) == 0 {
		return errors.New(errors.KindDomain, "synth.stretch", "stretch produced no samples")
	}

	return audio.WriteWav(path, &audio.Clip{Samples: stretched, SampleRate: clip.SampleRate})
}
