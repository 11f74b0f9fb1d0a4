package voice

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voiceclone-server-go/internal/domain/audio"
	"voiceclone-server-go/internal/utils"
)

// fakeValidator 把一小段静音写到 outputWav，可切换为失败模式
type fakeValidator struct {
	fail  atomic.Bool
	calls atomic.Int32
}

func (v *fakeValidator) ValidateReference(_ context.Context, _, _ string, outputWav string) error {
	v.calls.Add(1)
	if v.fail.Load() {
		return assert.AnError
	}
	clip := &audio.Clip{Samples: make([]float64, 2205), SampleRate: 22050}
	return audio.WriteWav(outputWav, clip)
}

func newTestLogger(t *testing.T) *utils.Logger {
	t.Helper()
	logger, err := utils.NewLogger(&utils.LogCfg{
		LogLevel: "debug",
		LogDir:   t.TempDir(),
		LogFile:  "registry.log",
	})
	require.NoError(t, err)
	t.Cleanup(func() { logger.Close() })
	return logger
}

// writeToneWav 生成 seconds 秒的 440Hz 正弦波文件
func writeToneWav(t *testing.T, path string, seconds float64, rate int) {
	t.Helper()
	n := int(seconds * float64(rate))
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(rate))
	}
	require.NoError(t, audio.WriteWav(path, &audio.Clip{Samples: samples, SampleRate: rate}))
}

func newTestRegistry(t *testing.T, validator Validator) (*Registry, string) {
	t.Helper()
	logger := newTestLogger(t)
	dir := t.TempDir()
	reg, err := NewRegistry(Options{
		Dir:            dir,
		SampleRate:     22050,
		ValidationText: "This is a test of the voice cloning system.",
		Preprocessor:   audio.NewPreprocessor(logger),
		Validator:      validator,
		Logger:         logger,
	})
	require.NoError(t, err)
	return reg, dir
}

func TestRegistryCreateAndQuery(t *testing.T) {
	// Arrange
	validator := &fakeValidator{}
	reg, dir := newTestRegistry(t, validator)

	raw := filepath.Join(t.TempDir(), "alice.wav")
	writeToneWav(t, raw, 1.0, 8000)

	// Act
	profile, err := reg.Create(context.Background(), "alice", raw, false)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.Name)
	assert.Equal(t, 22050, profile.SampleRate)
	assert.Equal(t, StatusActive, profile.Status)
	assert.InDelta(t, 3.0, profile.DurationSeconds, 0.01, "短片段应补齐到最小时长")
	assert.Equal(t, int32(1), validator.calls.Load())

	assert.FileExists(t, filepath.Join(dir, "alice", ReferenceFileName))
	assert.FileExists(t, filepath.Join(dir, "alice", TestSampleFileName))
	assert.FileExists(t, filepath.Join(dir, metadataFileName))

	assert.True(t, reg.Has("alice"))
	assert.Equal(t, []string{"alice"}, reg.List())
	assert.Equal(t, 1, reg.Count())

	info, ok := reg.Info("alice")
	require.True(t, ok)
	assert.Equal(t, "alice", info.Name)
	assert.Greater(t, info.FileSizeMB, 0.0)
}

func TestRegistryCreatedAtIsRealTimestamp(t *testing.T) {
	reg, _ := newTestRegistry(t, &fakeValidator{})

	raw := filepath.Join(t.TempDir(), "carol.wav")
	writeToneWav(t, raw, 1.0, 22050)

	profile, err := reg.Create(context.Background(), "carol", raw, false)
	require.NoError(t, err)

	createdAt, err := time.Parse(time.RFC3339, profile.CreatedAt)
	require.NoError(t, err, "created_at 必须是 RFC3339 时间戳")
	assert.WithinDuration(t, time.Now(), createdAt, time.Minute)

	_, err = uuid.Parse(profile.ID)
	assert.NoError(t, err, "id 必须是合法 UUID")
}

func TestRegistryDuplicateWithoutOverwrite(t *testing.T) {
	reg, _ := newTestRegistry(t, &fakeValidator{})

	raw := filepath.Join(t.TempDir(), "alice.wav")
	writeToneWav(t, raw, 1.0, 22050)

	_, err := reg.Create(context.Background(), "alice", raw, false)
	require.NoError(t, err)

	_, err = reg.Create(context.Background(), "alice", raw, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSpeakerExists)

	// 允许覆盖时重新注册成功，且注册顺序保持不变
	raw2 := filepath.Join(t.TempDir(), "bob.wav")
	writeToneWav(t, raw2, 1.0, 22050)
	_, err = reg.Create(context.Background(), "bob", raw2, false)
	require.NoError(t, err)

	_, err = reg.Create(context.Background(), "alice", raw, true)
	require.NoError(t, err)

	assert.Equal(t, []string{"alice", "bob"}, reg.List())
	assert.Equal(t, 2, reg.Count())
}

func TestRegistryValidationFailureCleansUp(t *testing.T) {
	validator := &fakeValidator{}
	validator.fail.Store(true)
	reg, dir := newTestRegistry(t, validator)

	raw := filepath.Join(t.TempDir(), "mallory.wav")
	writeToneWav(t, raw, 1.0, 22050)

	_, err := reg.Create(context.Background(), "mallory", raw, false)
	require.Error(t, err)

	assert.False(t, reg.Has("mallory"))
	assert.NoDirExists(t, filepath.Join(dir, "mallory"), "校验失败必须清理半成品目录")
}

func TestRegistryOverwriteValidationFailureDropsOldEntry(t *testing.T) {
	validator := &fakeValidator{}
	reg, dir := newTestRegistry(t, validator)

	raw := filepath.Join(t.TempDir(), "alice.wav")
	writeToneWav(t, raw, 1.0, 22050)

	_, err := reg.Create(context.Background(), "alice", raw, false)
	require.NoError(t, err)

	// 覆盖注册途中校验失败：参考文件已被覆写，旧档案不能留在索引里
	validator.fail.Store(true)
	_, err = reg.Create(context.Background(), "alice", raw, true)
	require.Error(t, err)

	assert.False(t, reg.Has("alice"))
	assert.NoDirExists(t, filepath.Join(dir, "alice"))
}

func TestRegistryDeleteSemantics(t *testing.T) {
	reg, dir := newTestRegistry(t, &fakeValidator{})

	raw := filepath.Join(t.TempDir(), "dave.wav")
	writeToneWav(t, raw, 1.0, 22050)
	_, err := reg.Create(context.Background(), "dave", raw, false)
	require.NoError(t, err)

	res := reg.Delete("dave")
	assert.True(t, res.Deleted)
	assert.NoError(t, res.Err)
	assert.False(t, reg.Has("dave"))
	assert.NoDirExists(t, filepath.Join(dir, "dave"))

	// 未知说话人：不算错误，也不算删除
	res = reg.Delete("nobody")
	assert.False(t, res.Deleted)
	assert.NoError(t, res.Err)
}

func TestRegistryIndexRoundTrip(t *testing.T) {
	logger := newTestLogger(t)
	dir := t.TempDir()
	validator := &fakeValidator{}

	reg, err := NewRegistry(Options{
		Dir:            dir,
		SampleRate:     22050,
		ValidationText: "check",
		Preprocessor:   audio.NewPreprocessor(logger),
		Validator:      validator,
		Logger:         logger,
	})
	require.NoError(t, err)

	// 名字按注册顺序取字典序，时间戳同秒时重建顺序依赖名字兜底
	for _, name := range []string{"first", "second"} {
		raw := filepath.Join(t.TempDir(), name+".wav")
		writeToneWav(t, raw, 1.0, 22050)
		_, err := reg.Create(context.Background(), name, raw, false)
		require.NoError(t, err)
	}
	require.NoError(t, reg.Close())

	// 重新加载：档案与注册顺序都要恢复
	reopened, err := NewRegistry(Options{
		Dir:        dir,
		SampleRate: 22050,
		Validator:  validator,
		Logger:     logger,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"first", "second"}, reopened.List())
	info, ok := reopened.Info("first")
	require.True(t, ok)
	assert.Equal(t, StatusActive, info.Status)
	assert.InDelta(t, 3.0, info.DurationSeconds, 0.01)
}

func TestRegistryCorruptIndexStartsEmpty(t *testing.T) {
	logger := newTestLogger(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, metadataFileName), []byte("{not json"), 0o644))

	reg, err := NewRegistry(Options{
		Dir:    dir,
		Logger: logger,
	})
	require.NoError(t, err, "索引损坏不能阻止启动")
	assert.Equal(t, 0, reg.Count())
}

func TestRegistryRejectsBadNames(t *testing.T) {
	reg, _ := newTestRegistry(t, &fakeValidator{})

	for _, name := range []string{"", "a/b", `a\b`, "..", ".hidden"} {
		_, err := reg.Create(context.Background(), name, "ignored.wav", false)
		assert.Error(t, err, "name=%q", name)
	}
}

func TestRegistryCreateWithoutPreprocessor(t *testing.T) {
	logger := newTestLogger(t)
	reg, err := NewRegistry(Options{
		Dir:        t.TempDir(),
		SampleRate: 22050,
		Validator:  &fakeValidator{},
		Logger:     logger,
	})
	require.NoError(t, err)

	raw := filepath.Join(t.TempDir(), "erin.wav")
	writeToneWav(t, raw, 2.0, 44100)

	// 没有预处理器时直接解码原始文件并重采样
	profile, err := reg.Create(context.Background(), "erin", raw, false)
	require.NoError(t, err)
	assert.Equal(t, 22050, profile.SampleRate)
	assert.InDelta(t, 2.0, profile.DurationSeconds, 0.05)
	assert.FileExists(t, raw, "原始上传文件不归注册表管")
}

func TestRegistryCreateRejectsGarbageAudio(t *testing.T) {
	reg, _ := newTestRegistry(t, &fakeValidator{})

	raw := filepath.Join(t.TempDir(), "noise.wav")
	require.NoError(t, os.WriteFile(raw, []byte("definitely not audio"), 0o644))

	_, err := reg.Create(context.Background(), "noise", raw, false)
	require.Error(t, err)
	assert.False(t, reg.Has("noise"))
}
