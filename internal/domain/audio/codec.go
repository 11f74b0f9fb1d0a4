package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	gaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/spf13/afero"
)

// Clip 解码后的单声道音频
type Clip struct {
	Samples    []float64
	SampleRate int
}

// Seconds 返回音频时长（秒）
func (c *Clip) Seconds() float64 {
	if c == nil || c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}

// Decode 按扩展名解码音频文件为单声道采样，多声道取均值
func Decode(path string) (*Clip, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return decodeMP3(path)
	default:
		return decodeWav(path)
	}
}

func decodeWav(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open wav %s: %w", path, err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, fmt.Errorf("not a valid wav file: %s", path)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav %s: %w", path, err)
	}
	if buf == nil || len(buf.Data) == 0 {
		return nil, fmt.Errorf("wav file has no samples: %s", path)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth <= 0 {
		bitDepth = int(decoder.BitDepth)
	}
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float64(int(1) << (bitDepth - 1))

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}

	frames := len(buf.Data) / channels
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += float64(buf.Data[i*channels+ch]) / scale
		}
		samples[i] = sum / float64(channels)
	}

	return &Clip{Samples: samples, SampleRate: buf.Format.SampleRate}, nil
}

func decodeMP3(path string) (*Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mp3 %s: %w", path, err)
	}
	defer f.Close()

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("decode mp3 %s: %w", path, err)
	}

	raw, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("read mp3 samples %s: %w", path, err)
	}
	if len(raw) < 4 {
		return nil, fmt.Errorf("mp3 file has no samples: %s", path)
	}

	// go-mp3 固定输出 16bit 双声道小端 PCM
	frames := len(raw) / 4
	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		left := int16(binary.LittleEndian.Uint16(raw[i*4:]))
		right := int16(binary.LittleEndian.Uint16(raw[i*4+2:]))
		samples[i] = (float64(left) + float64(right)) / 2 / 32768.0
	}

	return &Clip{Samples: samples, SampleRate: decoder.SampleRate()}, nil
}

// EncodeWav 将单声道采样编码为 16bit PCM WAV 字节
func EncodeWav(clip *Clip) ([]byte, error) {
	if clip == nil || len(clip.Samples) == 0 {
		return nil, fmt.Errorf("nothing to encode")
	}
	if clip.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", clip.SampleRate)
	}

	intData := make([]int, len(clip.Samples))
	for i, s := range clip.Samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		intData[i] = int(s * 32767.0)
	}

	buffer := &gaudio.IntBuffer{
		Data: intData,
		Format: &gaudio.Format{
			SampleRate:  clip.SampleRate,
			NumChannels: 1,
		},
		SourceBitDepth: 16,
	}

	// wav.NewEncoder 需要 io.WriteSeeker 回写头部，用内存文件系统承接
	fs := afero.NewMemMapFs()
	memFile, err := fs.Create("encode.wav")
	if err != nil {
		return nil, fmt.Errorf("create in-memory file: %w", err)
	}

	encoder := wav.NewEncoder(memFile, clip.SampleRate, 16, 1, 1)
	if err := encoder.Write(buffer); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := encoder.Close(); err != nil {
		return nil, fmt.Errorf("finish wav encoding: %w", err)
	}

	if err := memFile.Close(); err != nil {
		return nil, fmt.Errorf("close in-memory file: %w", err)
	}
	reopened, err := fs.Open("encode.wav")
	if err != nil {
		return nil, fmt.Errorf("reopen in-memory file: %w", err)
	}
	defer reopened.Close()

	data, err := io.ReadAll(reopened)
	if err != nil {
		return nil, fmt.Errorf("read encoded wav: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("wav output is empty when input was not")
	}
	return data, nil
}

// WriteWav 编码并写入 WAV 文件
func WriteWav(path string, clip *Clip) error {
	data, err := EncodeWav(clip)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create output dir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write wav %s: %w", path, err)
	}
	return nil
}
