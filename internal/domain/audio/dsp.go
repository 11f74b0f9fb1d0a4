package audio

import (
	"math"
)

// Peak 返回采样的最大绝对幅度
func Peak(samples []float64) float64 {
	var peak float64
	for _, s := range samples {
		if a := math.Abs(s); a > peak {
			peak = a
		}
	}
	return peak
}

// TrimSilence 去除首尾低于峰值 topDB 分贝的静音段。
// 整段都低于阈值时原样返回，避免裁成空片段。
func TrimSilence(samples []float64, topDB float64) []float64 {
	peak := Peak(samples)
	if peak == 0 {
		return samples
	}

	threshold := peak * math.Pow(10, -topDB/20)

	start := -1
	for i, s := range samples {
		if math.Abs(s) >= threshold {
			start = i
			break
		}
	}
	if start < 0 {
		return samples
	}

	end := len(samples)
	for i := len(samples) - 1; i >= start; i-- {
		if math.Abs(samples[i]) >= threshold {
			end = i + 1
			break
		}
	}

	return samples[start:end]
}

// Normalize 峰值归一化到 [-1, 1]，零振幅原样返回
func Normalize(samples []float64) []float64 {
	peak := Peak(samples)
	if peak == 0 {
		return samples
	}

	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s / peak
	}
	return out
}

// Resample 线性插值重采样
func Resample(samples []float64, fromRate, toRate int) []float64 {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 || len(samples) == 0 {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	outLen := int(math.Round(float64(len(samples)) / ratio))
	if outLen < 1 {
		outLen = 1
	}

	out := make([]float64, outLen)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := pos - float64(idx)
		out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
	}
	return out
}

// TileToLength 循环平铺采样直到达到 minLen，多余部分截断
func TileToLength(samples []float64, minLen int) []float64 {
	if len(samples) >= minLen || len(samples) == 0 {
		return samples
	}

	out := make([]float64, minLen)
	for i := range out {
		out[i] = samples[i%len(samples)]
	}
	return out
}

// Truncate 截断到 maxLen
func Truncate(samples []float64, maxLen int) []float64 {
	if len(samples) <= maxLen || maxLen < 0 {
		return samples
	}
	return samples[:maxLen]
}

const stretchFrame = 2048

// TimeStretch 重叠相加法时间伸缩，rate>1 加速 rate<1 减速，音高不变。
// 片段太短无法做帧叠加时退化为索引映射。
func TimeStretch(samples []float64, rate float64) []float64 {
	if rate <= 0 || rate == 1.0 || len(samples) == 0 {
		return samples
	}

	if len(samples) < stretchFrame*2 {
		outLen := int(float64(len(samples)) / rate)
		if outLen < 1 {
			outLen = 1
		}
		out := make([]float64, outLen)
		for i := range out {
			idx := int(float64(i) * rate)
			if idx >= len(samples) {
				idx = len(samples) - 1
			}
			out[i] = samples[idx]
		}
		return out
	}

	synHop := stretchFrame / 4
	anaHop := int(float64(synHop) * rate)
	if anaHop < 1 {
		anaHop = 1
	}

	numFrames := 1 + (len(samples)-stretchFrame)/anaHop
	outLen := (numFrames-1)*synHop + stretchFrame

	window := hannWindow(stretchFrame)
	out := make([]float64, outLen)
	weight := make([]float64, outLen)

	for f := 0; f < numFrames; f++ {
		inOff := f * anaHop
		outOff := f * synHop
		for j := 0; j < stretchFrame; j++ {
			out[outOff+j] += samples[inOff+j] * window[j]
			weight[outOff+j] += window[j]
		}
	}

	for i := range out {
		if weight[i] > 1e-8 {
			out[i] /= weight[i]
		}
	}
	return out
}

func hannWindow(size int) []float64 {
	win := make([]float64, size)
	for i := range win {
		win[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}
	return win
}
