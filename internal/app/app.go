package app

import (
	"context"
	stderrors "errors"
	"os"
	"strings"
	"time"

	"voiceclone-server-go/internal/domain/audio"
	"voiceclone-server-go/internal/domain/cache"
	"voiceclone-server-go/internal/domain/eventbus"
	"voiceclone-server-go/internal/domain/synth"
	"voiceclone-server-go/internal/domain/synth/xtts"
	"voiceclone-server-go/internal/domain/task"
	"voiceclone-server-go/internal/domain/verify"
	"voiceclone-server-go/internal/domain/voice"
	"voiceclone-server-go/internal/platform/config"
	"voiceclone-server-go/internal/platform/errors"
	"voiceclone-server-go/internal/platform/storage"
	"voiceclone-server-go/internal/utils"
)

// App 聚合全部领域服务，传输层只跟它打交道
type App struct {
	Config   *config.Config
	Logger   *utils.Logger
	Registry *voice.Registry
	Synth    *synth.Service
	Cache    cache.Store
	Cleanup  *task.Manager
	History  storage.HistoryRepository
	Events   storage.EventRepository
	Verifier *verify.Checker
}

// Init 按依赖顺序装配领域服务。要求数据库已经初始化完成。
// ctx 控制引擎就绪探测等后台协程的生命周期。
func Init(ctx context.Context, cfg *config.Config, logger *utils.Logger) (*App, error) {
	if cfg == nil || logger == nil {
		return nil, errors.New(errors.KindBootstrap, "app.init", "config/logger not initialised")
	}

	for _, dir := range []string{cfg.Voice.VoicesDir, cfg.Voice.UploadsDir, cfg.Voice.OutputsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(errors.KindBootstrap, "app.init", "create data directory failed", err)
		}
	}

	db := storage.GetDB()
	history := storage.NewHistoryRepository(db)
	events := storage.NewEventRepository(db)

	if err := eventbus.SetupEventHandlers(logger, events); err != nil {
		return nil, errors.Wrap(errors.KindBootstrap, "app.init", "setup event handlers failed", err)
	}

	cacheStore, err := buildCache(cfg)
	if err != nil {
		return nil, err
	}

	engine, err := xtts.New(cfg.Engine.URL,
		xtts.WithTimeout(time.Duration(cfg.Engine.Timeout)*time.Second))
	if err != nil {
		return nil, err
	}

	tts, err := synth.NewService(synth.Options{
		Engine:     engine,
		EngineURL:  engine.BaseURL(),
		OutputsDir: cfg.Voice.OutputsDir,
		Workers:    cfg.Engine.Workers,
		QueueSize:  cfg.Engine.QueueSize,
		Cache:      cacheStore,
		History:    history,
		Logger:     logger,
	})
	if err != nil {
		return nil, err
	}
	tts.WatchReady(ctx, time.Duration(cfg.Engine.ProbeInterval)*time.Second)

	pre := audio.NewPreprocessor(logger)
	pre.MinSeconds = cfg.Voice.MinClipSeconds
	pre.MaxSeconds = cfg.Voice.MaxClipSeconds

	registry, err := voice.NewRegistry(voice.Options{
		Dir:            cfg.Voice.VoicesDir,
		SampleRate:     cfg.Voice.SampleRate,
		ValidationText: cfg.Validation.Sentence,
		Preprocessor:   pre,
		Validator:      tts,
		Logger:         logger,
	})
	if err != nil {
		tts.Stop()
		return nil, err
	}

	var cleanup *task.Manager
	if cfg.Cleanup.Enabled {
		cleanup = task.NewManager(
			[]string{cfg.Voice.UploadsDir, cfg.Voice.OutputsDir},
			time.Duration(cfg.Cleanup.MaxAge)*time.Second,
			time.Duration(cfg.Cleanup.Interval)*time.Second,
			logger,
		)
		cleanup.Start()
	}

	verifier, err := buildVerifier(cfg, logger)
	if err != nil {
		return nil, err
	}

	logger.InfoTag("应用", "领域服务装配完成: 说话人 %d 个, 引擎 %s, 缓存 %s",
		registry.Count(), cfg.Engine.URL, cfg.Cache.Type)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Registry: registry,
		Synth:    tts,
		Cache:    cacheStore,
		Cleanup:  cleanup,
		History:  history,
		Events:   events,
		Verifier: verifier,
	}, nil
}

// buildCache 按配置选择缓存驱动，TTL 配置单位是秒
func buildCache(cfg *config.Config) (cache.Store, error) {
	storeCfg := cache.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Cache.Type)),
		TTL:    time.Duration(cfg.Cache.TTL) * time.Second,
	}
	if storeCfg.Driver == cache.DriverRedis {
		storeCfg.Redis = &cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Username: cfg.Cache.Redis.Username,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Prefix:   cfg.Cache.Redis.Prefix,
		}
	}

	store, err := cache.New(storeCfg)
	if err != nil {
		return nil, errors.Wrap(errors.KindBootstrap, "app.init", "create synthesis cache failed", err)
	}
	return store, nil
}

// buildVerifier 可选的转写回验。开了开关却没给 key 只告警，不拦启动
func buildVerifier(cfg *config.Config, logger *utils.Logger) (*verify.Checker, error) {
	if !cfg.Validation.Transcribe {
		return nil, nil
	}
	if cfg.Validation.APIKey == "" {
		logger.WarnTag("应用", "开启了转写回验但未配置 API key，跳过")
		return nil, nil
	}

	checker, err := verify.New(verify.Options{
		APIKey:  cfg.Validation.APIKey,
		BaseURL: cfg.Validation.BaseURL,
		Model:   cfg.Validation.Model,
		Logger:  logger,
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindBootstrap, "app.init", "create transcription verifier failed", err)
	}
	return checker, nil
}

// Teardown 逆序释放资源。单项失败不阻断其余清理，最后合并返回。
func (a *App) Teardown(ctx context.Context) error {
	if a == nil {
		return nil
	}

	var errs []error

	if a.Cleanup != nil {
		a.Cleanup.Stop()
	}
	if a.Synth != nil {
		a.Synth.Stop()
	}
	if a.Registry != nil {
		if err := a.Registry.Close(); err != nil {
			a.Logger.WarnTag("应用", "注册表关闭失败: %v", err)
			errs = append(errs, err)
		}
	}
	if a.Cache != nil {
		if err := a.Cache.Close(ctx); err != nil {
			a.Logger.WarnTag("应用", "缓存关闭失败: %v", err)
			errs = append(errs, err)
		}
	}

	eventbus.Shutdown()

	if err := storage.CloseDatabase(); err != nil {
		a.Logger.WarnTag("应用", "数据库关闭失败: %v", err)
		errs = append(errs, err)
	}

	return stderrors.Join(errs...)
}
