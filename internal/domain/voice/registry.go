package voice

import (
	"context"
	stderrors "errors"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"voiceclone-server-go/internal/domain/audio"
	"voiceclone-server-go/internal/domain/eventbus"
	"voiceclone-server-go/internal/platform/errors"
	"voiceclone-server-go/internal/utils"
)

// ErrSpeakerExists 重名且未允许覆盖
var ErrSpeakerExists = stderrors.New("speaker already exists")

// Validator 注册时用固定校验句做一次试合成，确认参考音频真的可用。
// 实现方需把合成结果写到 outputWav。
type Validator interface {
	ValidateReference(ctx context.Context, text, referenceWav, outputWav string) error
}

// Options 注册表构造参数
type Options struct {
	Dir            string
	SampleRate     int
	ValidationText string
	Preprocessor   *audio.Preprocessor
	Validator      Validator
	Logger         *utils.Logger
}

// Registry 声音档案注册表。内存索引 + metadata.json 落盘，
// 每个说话人的参考音频与试听样本放在 <dir>/<name>/ 下。
type Registry struct {
	dir            string
	sampleRate     int
	validationText string
	pre            *audio.Preprocessor
	validator      Validator
	logger         *utils.Logger

	mu       sync.RWMutex
	profiles map[string]*VoiceProfile
	order    []string
	creating map[string]struct{}
}

// NewRegistry 创建注册表并加载已有索引。索引文件损坏时告警并从空索引开始，
// 不影响启动。
func NewRegistry(opts Options) (*Registry, error) {
	if opts.Dir == "" {
		return nil, errors.New(errors.KindDomain, "registry.new", "voices directory is required")
	}
	if opts.Logger == nil {
		return nil, errors.New(errors.KindDomain, "registry.new", "logger is required")
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 22050
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, errors.Wrap(errors.KindDomain, "registry.new", "create voices directory failed", err)
	}

	r := &Registry{
		dir:            opts.Dir,
		sampleRate:     opts.SampleRate,
		validationText: opts.ValidationText,
		pre:            opts.Preprocessor,
		validator:      opts.Validator,
		logger:         opts.Logger,
		profiles:       make(map[string]*VoiceProfile),
		creating:       make(map[string]struct{}),
	}
	r.loadIndex()
	return r, nil
}

// loadIndex 读取 metadata.json，按 created_at 重建注册顺序
func (r *Registry) loadIndex() {
	path := filepath.Join(r.dir, metadataFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			r.logger.WarnTag("注册表", "读取索引失败，从空索引启动: %v", err)
		}
		return
	}

	var profiles map[string]*VoiceProfile
	if err := sonic.Unmarshal(data, &profiles); err != nil {
		r.logger.WarnTag("注册表", "索引文件损坏，从空索引启动: %v", err)
		return
	}

	order := make([]string, 0, len(profiles))
	for name := range profiles {
		order = append(order, name)
	}
	sort.Slice(order, func(i, j int) bool {
		a, _ := time.Parse(time.RFC3339, profiles[order[i]].CreatedAt)
		b, _ := time.Parse(time.RFC3339, profiles[order[j]].CreatedAt)
		if !a.Equal(b) {
			return a.Before(b)
		}
		return order[i] < order[j]
	})

	r.profiles = profiles
	r.order = order
	r.logger.InfoTag("注册表", "索引加载完成: %d 个说话人", len(profiles))
}

// saveIndexLocked 全量重写索引文件，调用方必须持有写锁
func (r *Registry) saveIndexLocked() error {
	data, err := sonic.MarshalIndent(r.profiles, "", "  ")
	if err != nil {
		return errors.Wrap(errors.KindDomain, "registry.save", "marshal index failed", err)
	}
	path := filepath.Join(r.dir, metadataFileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(errors.KindDomain, "registry.save", "write index failed", err)
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return errors.New(errors.KindDomain, "registry.name", "speaker name must not be empty")
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return errors.New(errors.KindDomain, "registry.name", "speaker name must not contain path separators")
	}
	if strings.HasPrefix(name, ".") {
		return errors.New(errors.KindDomain, "registry.name", "speaker name must not start with a dot")
	}
	return nil
}

// Has 查询说话人是否已注册
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.profiles[name]
	return ok
}

// List 按注册顺序返回说话人名字
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Count 返回已注册说话人数量
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}

// Info 返回档案拷贝，附带参考音频大小（MB，两位小数）
func (r *Registry) Info(name string) (*VoiceInfo, bool) {
	r.mu.RLock()
	profile, ok := r.profiles[name]
	if !ok {
		r.mu.RUnlock()
		return nil, false
	}
	copied := *profile
	r.mu.RUnlock()

	info := &VoiceInfo{VoiceProfile: copied}
	if stat, err := os.Stat(copied.ReferenceAudioPath); err == nil {
		info.FileSizeMB = math.Round(float64(stat.Size())/(1024*1024)*100) / 100
	}
	return info, true
}

// Create 注册新声音：预处理参考音频（失败时降级用原始文件）、规范化为目标
// 采样率的单声道 WAV、试合成校验，全部成功后才写入索引。校验失败会清理
// 半成品目录，不留下孤儿档案。
func (r *Registry) Create(ctx context.Context, name, rawAudioPath string, overwrite bool) (*VoiceProfile, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	existed, err := r.reserve(name, overwrite)
	if err != nil {
		return nil, err
	}
	defer r.release(name)

	start := time.Now()
	r.logger.InfoVoice("开始注册声音: %s (覆盖=%v)", name, overwrite)

	// 预处理：失败不致命，回退原始文件
	res := audio.Result{Path: rawAudioPath}
	if r.pre != nil {
		res = r.pre.Canonicalize(rawAudioPath, r.sampleRate)
	}
	if res.Applied && res.Path != rawAudioPath {
		defer os.Remove(res.Path)
	}

	clip, err := audio.Decode(res.Path)
	if err != nil {
		return nil, errors.Wrap(errors.KindDomain, "registry.create", "decode reference audio failed", err)
	}
	if clip.SampleRate != r.sampleRate {
		clip = &audio.Clip{
			Samples:    audio.Resample(clip.Samples, clip.SampleRate, r.sampleRate),
			SampleRate: r.sampleRate,
		}
	}

	speakerDir := filepath.Join(r.dir, name)
	if err := os.MkdirAll(speakerDir, 0o755); err != nil {
		return nil, errors.Wrap(errors.KindDomain, "registry.create", "create speaker directory failed", err)
	}

	refPath := filepath.Join(speakerDir, ReferenceFileName)
	if err := audio.WriteWav(refPath, clip); err != nil {
		r.abortCreate(name, speakerDir, existed)
		return nil, errors.Wrap(errors.KindDomain, "registry.create", "write reference wav failed", err)
	}

	samplePath := filepath.Join(speakerDir, TestSampleFileName)
	if r.validator != nil {
		if err := r.validator.ValidateReference(ctx, r.validationText, refPath, samplePath); err != nil {
			r.abortCreate(name, speakerDir, existed)
			return nil, errors.Wrap(errors.KindEngine, "registry.create", "validation synthesis failed", err)
		}
	}

	profile := &VoiceProfile{
		Name:                 name,
		ReferenceAudioPath:   refPath,
		ValidationSamplePath: samplePath,
		SampleRate:           r.sampleRate,
		DurationSeconds:      clip.Seconds(),
		Status:               StatusActive,
		ID:                   uuid.NewString(),
		CreatedAt:            time.Now().Format(time.RFC3339),
	}

	r.mu.Lock()
	if _, ok := r.profiles[name]; !ok {
		r.order = append(r.order, name)
	}
	r.profiles[name] = profile
	saveErr := r.saveIndexLocked()
	r.mu.Unlock()
	if saveErr != nil {
		r.logger.WarnTag("注册表", "索引写盘失败: %v", saveErr)
	}

	r.logger.InfoVoice("声音注册完成: %s (%.2fs 音频, 耗时 %dms)",
		name, profile.DurationSeconds, time.Since(start).Milliseconds())
	eventbus.PublishAsync(eventbus.EventVoiceCreated, eventbus.VoiceEventData{
		Speaker:         name,
		DurationSeconds: profile.DurationSeconds,
		SampleRate:      profile.SampleRate,
		Overwrite:       existed,
		Degraded:        res.Err != nil,
	})

	copied := *profile
	return &copied, nil
}

// reserve 占位并检查冲突，防止同名并发注册互相踩踏
func (r *Registry) reserve(name string, overwrite bool) (existed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, pending := r.creating[name]; pending {
		return false, errors.Wrap(errors.KindDomain, "registry.create", "speaker is being registered", ErrSpeakerExists)
	}
	_, existed = r.profiles[name]
	if existed && !overwrite {
		return false, errors.Wrap(errors.KindDomain, "registry.create", "speaker already registered", ErrSpeakerExists)
	}
	r.creating[name] = struct{}{}
	return existed, nil
}

func (r *Registry) release(name string) {
	r.mu.Lock()
	delete(r.creating, name)
	r.mu.Unlock()
}

// abortCreate 失败回滚：删除半成品目录；覆盖注册失败时旧档案已被覆写，
// 一并移出索引，保证索引条目和磁盘文件始终一一对应
func (r *Registry) abortCreate(name, speakerDir string, existed bool) {
	if err := os.RemoveAll(speakerDir); err != nil {
		r.logger.WarnTag("注册表", "清理失败目录 %s: %v", speakerDir, err)
	}
	if existed {
		r.mu.Lock()
		delete(r.profiles, name)
		r.dropOrderLocked(name)
		if err := r.saveIndexLocked(); err != nil {
			r.logger.WarnTag("注册表", "索引写盘失败: %v", err)
		}
		r.mu.Unlock()
	}
}

func (r *Registry) dropOrderLocked(name string) {
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Delete 删除说话人。未知名字返回 {false, nil}。文件删除失败时条目仍
// 移出索引，错误放进 Err 由调用方决定如何上报。
func (r *Registry) Delete(name string) DeleteResult {
	r.mu.Lock()
	profile, ok := r.profiles[name]
	if !ok {
		r.mu.Unlock()
		return DeleteResult{Deleted: false}
	}
	delete(r.profiles, name)
	r.dropOrderLocked(name)
	saveErr := r.saveIndexLocked()
	r.mu.Unlock()

	if saveErr != nil {
		r.logger.WarnTag("注册表", "索引写盘失败: %v", saveErr)
	}

	speakerDir := filepath.Dir(profile.ReferenceAudioPath)
	var rmErr error
	if err := os.RemoveAll(speakerDir); err != nil {
		rmErr = errors.Wrap(errors.KindDomain, "registry.delete", "remove speaker directory failed", err)
		r.logger.WarnTag("注册表", "删除目录 %s 失败: %v", speakerDir, err)
	}

	r.logger.InfoVoice("声音已删除: %s", name)
	eventbus.PublishAsync(eventbus.EventVoiceDeleted, eventbus.VoiceEventData{Speaker: name})

	return DeleteResult{Deleted: true, Err: rmErr}
}

// Close 停机前把索引刷盘
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveIndexLocked()
}
