package synth

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"voiceclone-server-go/internal/domain/audio"
	"voiceclone-server-go/internal/domain/cache"
	"voiceclone-server-go/internal/domain/eventbus"
	"voiceclone-server-go/internal/platform/errors"
	"voiceclone-server-go/internal/platform/storage"
	"voiceclone-server-go/internal/util/work"
	"voiceclone-server-go/internal/utils"
)

// Engine 外部推理引擎。xtts.Client 是生产实现
type Engine interface {
	Synthesize(ctx context.Context, text, speakerWav, language string) ([]byte, error)
	Ready(ctx context.Context) error
}

// Request 一次语音合成请求
type Request struct {
	Speaker            string
	Text               string
	ReferenceAudioPath string
	Language           string
	Speed              float64
}

// Options 服务构造参数。Cache 和 History 可选
type Options struct {
	Engine     Engine
	EngineURL  string
	OutputsDir string
	Workers    int
	QueueSize  int
	Cache      cache.Store
	History    storage.HistoryRepository
	Logger     *utils.Logger
}

// ttsJob 工作池里的一次引擎调用
type ttsJob struct {
	text       string
	speakerWav string
	language   string
	outPath    string
}

// Service 合成适配器：并发受限的工作池 + 结果缓存 + 历史记录。
// 同一请求并发到达时 singleflight 合并为一次引擎调用。
type Service struct {
	engine    Engine
	engineURL string
	outputs   string
	pool      *work.Pool[ttsJob, string]
	cache     cache.Store
	history   storage.HistoryRepository
	logger    *utils.Logger
	group     singleflight.Group
	ready     atomic.Bool
}

// NewService 创建合成服务并启动工作池
func NewService(opts Options) (*Service, error) {
	if opts.Engine == nil {
		return nil, errors.New(errors.KindDomain, "synth.new", "engine is required")
	}
	if opts.OutputsDir == "" {
		return nil, errors.New(errors.KindDomain, "synth.new", "outputs directory is required")
	}
	if opts.Logger == nil {
		return nil, errors.New(errors.KindDomain, "synth.new", "logger is required")
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 8
	}

	if err := os.MkdirAll(opts.OutputsDir, 0o755); err != nil {
		return nil, errors.Wrap(errors.KindDomain, "synth.new", "create outputs directory failed", err)
	}

	s := &Service{
		engine:    opts.Engine,
		engineURL: opts.EngineURL,
		outputs:   opts.OutputsDir,
		cache:     opts.Cache,
		history:   opts.History,
		logger:    opts.Logger,
	}
	s.pool = work.NewPool(opts.Workers, opts.QueueSize, s.runJob)
	return s, nil
}

// runJob 在工作池里执行一次引擎合成并把 WAV 写盘
func (s *Service) runJob(ctx context.Context, j ttsJob) (string, error) {
	wav, err := s.engine.Synthesize(ctx, j.text, j.speakerWav, j.language)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(j.outPath, wav, 0o644); err != nil {
		return "", errors.Wrap(errors.KindDomain, "synth.write", "write output wav failed", err)
	}
	return j.outPath, nil
}

// Synthesize 合成语音并返回输出文件路径。文本先清洗控制字符；语言默认 en，
// 语速默认 1.0。命中缓存直接复用已有文件，文件已被清理时缓存条目失效。
func (s *Service) Synthesize(ctx context.Context, req Request) (string, error) {
	text := strings.TrimSpace(utils.RemoveControlCharacters(req.Text))
	if text == "" {
		return "", errors.New(errors.KindDomain, "synth.request", "text must not be empty")
	}
	if req.Speaker == "" {
		return "", errors.New(errors.KindDomain, "synth.request", "speaker must not be empty")
	}
	language := req.Language
	if language == "" {
		language = "en"
	}
	speed := req.Speed
	if speed == 0 {
		speed = 1.0
	}

	req.Text = text
	req.Language = language
	req.Speed = speed

	if s.cache == nil {
		return s.generate(ctx, req, "")
	}

	key := cache.Key(req.Speaker, text, language, speed)
	if path, ok := s.cacheLookup(ctx, key); ok {
		s.logger.InfoTTS("缓存命中: speaker=%s, 字符=%d", req.Speaker, len([]rune(text)))
		s.finish(ctx, req, path, 0, true)
		return path, nil
	}

	// 相同请求并发到达时只触发一次引擎调用
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		return s.generate(ctx, req, key)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// cacheLookup 命中后还要确认文件仍然在盘上
func (s *Service) cacheLookup(ctx context.Context, key string) (string, bool) {
	path, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.WarnTag("缓存", "缓存读取失败: %v", err)
		return "", false
	}
	if !ok {
		return "", false
	}
	if _, err := os.Stat(path); err != nil {
		// 输出文件已被清理，条目作废
		if delErr := s.cache.Delete(ctx, key); delErr != nil {
			s.logger.WarnTag("缓存", "缓存失效清除失败: %v", delErr)
		}
		return "", false
	}
	return path, true
}

// generate 通过工作池走一次真实合成
func (s *Service) generate(ctx context.Context, req Request, cacheKey string) (string, error) {
	start := time.Now()
	outPath := filepath.Join(s.outputs, fmt.Sprintf("output_%s_%s.wav", req.Speaker, utils.ShortID()))

	if _, err := s.pool.Submit(ctx, ttsJob{
		text:       req.Text,
		speakerWav: req.ReferenceAudioPath,
		language:   req.Language,
		outPath:    outPath,
	}); err != nil {
		eventbus.PublishAsync(eventbus.EventSynthFailed, eventbus.SynthEventData{
			Speaker:   req.Speaker,
			TextChars: len([]rune(req.Text)),
			Language:  req.Language,
			Speed:     req.Speed,
			ElapsedMS: time.Since(start).Milliseconds(),
			Error:     err.Error(),
		})
		return "", errors.Wrap(errors.KindEngine, "synth.generate", "synthesis failed", err)
	}

	// 变速失败只降级为原速输出，不让整个请求失败
	if req.Speed != 1.0 {
		if err := AdjustSpeed(outPath, req.Speed); err != nil {
			s.logger.WarnTag("引擎", "变速处理失败，返回原速音频: %v", err)
		}
	}

	if cacheKey != "" {
		if err := s.cache.Set(ctx, cacheKey, outPath); err != nil {
			s.logger.WarnTag("缓存", "缓存写入失败: %v", err)
		}
	}

	elapsed := time.Since(start)
	s.logger.InfoTTS("合成完成: speaker=%s, 字符=%d, 语言=%s, 语速=%.2f, 耗时=%dms",
		req.Speaker, len([]rune(req.Text)), req.Language, req.Speed, elapsed.Milliseconds())
	s.finish(ctx, req, outPath, elapsed, false)

	return outPath, nil
}

// finish 记录历史并发布完成事件
func (s *Service) finish(ctx context.Context, req Request, outPath string, elapsed time.Duration, cached bool) {
	seconds := probeSeconds(outPath)

	if s.history != nil {
		record := &storage.SynthesisRecord{
			Speaker:      req.Speaker,
			TextChars:    len([]rune(req.Text)),
			Language:     req.Language,
			Speed:        req.Speed,
			OutputPath:   outPath,
			AudioSeconds: seconds,
			ElapsedMS:    elapsed.Milliseconds(),
			Cached:       cached,
			CreatedAt:    time.Now(),
		}
		if err := s.history.Append(ctx, record); err != nil {
			s.logger.WarnTag("存储", "历史记录写入失败: %v", err)
		}
	}

	eventbus.PublishAsync(eventbus.EventSynthCompleted, eventbus.SynthEventData{
		Speaker:      req.Speaker,
		TextChars:    len([]rune(req.Text)),
		Language:     req.Language,
		Speed:        req.Speed,
		OutputPath:   outPath,
		AudioSeconds: seconds,
		ElapsedMS:    elapsed.Milliseconds(),
		Cached:       cached,
	})
}

// probeSeconds 读取输出时长，失败返回 0
func probeSeconds(path string) float64 {
	clip, err := audio.Decode(path)
	if err != nil {
		return 0
	}
	return clip.Seconds()
}

// ValidateReference 用固定文本对参考音频做一次试合成，结果写到 outputWav。
// 注册表在录入新声音前调用。走同一个工作池，受同样的并发上限约束。
func (s *Service) ValidateReference(ctx context.Context, text, referenceWav, outputWav string) error {
	if strings.TrimSpace(text) == "" {
		text = "This is a test of the voice cloning system."
	}
	_, err := s.pool.Submit(ctx, ttsJob{
		text:       text,
		speakerWav: referenceWav,
		language:   "en",
		outPath:    outputWav,
	})
	return err
}

// Ready 同步探测引擎
func (s *Service) Ready(ctx context.Context) error {
	err := s.engine.Ready(ctx)
	s.ready.Store(err == nil)
	return err
}

// IsReady 返回最近一次探测的结果
func (s *Service) IsReady() bool {
	return s.ready.Load()
}

// EngineURL 返回引擎地址，用于状态上报
func (s *Service) EngineURL() string {
	return s.engineURL
}

// WatchReady 后台轮询引擎直到就绪，然后退出。ctx 取消时停止
func (s *Service) WatchReady(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	go func() {
		start := time.Now()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			probeCtx, cancel := context.WithTimeout(ctx, interval)
			err := s.Ready(probeCtx)
			cancel()
			if err == nil {
				s.logger.InfoTag("引擎", "推理引擎就绪: %s (等待 %dms)", s.engineURL, time.Since(start).Milliseconds())
				eventbus.PublishAsync(eventbus.EventEngineReady, eventbus.EngineEventData{
					URL:     s.engineURL,
					Elapsed: time.Since(start).Round(time.Millisecond).String(),
				})
				return
			}
			s.logger.DebugTag("引擎", "引擎未就绪: %v", err)

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stats 返回工作池状态
func (s *Service) Stats() (queued, workers int) {
	return s.pool.Stats()
}

// Stop 停掉工作池，已入队任务会被执行完
func (s *Service) Stop() {
	s.pool.Stop()
}
