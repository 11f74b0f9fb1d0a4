package voiceapi

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"voiceclone-server-go/internal/domain/synth"
	"voiceclone-server-go/internal/domain/task"
	"voiceclone-server-go/internal/domain/verify"
	"voiceclone-server-go/internal/domain/voice"
	"voiceclone-server-go/internal/platform/config"
	"voiceclone-server-go/internal/platform/errors"
	"voiceclone-server-go/internal/platform/storage"
	"voiceclone-server-go/internal/utils"
)

const (
	// APIVersion 对外版本号
	APIVersion = "1.0.0"
	// ModelName 底层推理模型
	ModelName = "Coqui XTTS v2"

	verifyTimeout   = 60 * time.Second
	historyLimitCap = 200
)

// Service 声音克隆 API 的 HTTP 传输层实现
type Service struct {
	config   *config.Config
	logger   *utils.Logger
	registry *voice.Registry
	synth    *synth.Service
	history  storage.HistoryRepository
	cleanup  *task.Manager
	verifier *verify.Checker
}

// Options 服务依赖。History、Cleanup、Verifier 可选
type Options struct {
	Config   *config.Config
	Logger   *utils.Logger
	Registry *voice.Registry
	Synth    *synth.Service
	History  storage.HistoryRepository
	Cleanup  *task.Manager
	Verifier *verify.Checker
}

// NewService 创建语音服务实例
func NewService(opts Options) (*Service, error) {
	if opts.Config == nil {
		return nil, errors.Wrap(errors.KindConfig, "voiceapi.new", "config is required", nil)
	}
	if opts.Logger == nil {
		return nil, errors.Wrap(errors.KindConfig, "voiceapi.new", "logger is required", nil)
	}
	if opts.Registry == nil {
		return nil, errors.Wrap(errors.KindConfig, "voiceapi.new", "voice registry is required", nil)
	}
	if opts.Synth == nil {
		return nil, errors.Wrap(errors.KindConfig, "voiceapi.new", "synthesis service is required", nil)
	}

	return &Service{
		config:   opts.Config,
		logger:   opts.Logger,
		registry: opts.Registry,
		synth:    opts.Synth,
		history:  opts.History,
		cleanup:  opts.Cleanup,
		verifier: opts.Verifier,
	}, nil
}

// Register 注册语音 API 路由
func (s *Service) Register(ctx context.Context, router *gin.RouterGroup) error {
	router.GET("/", s.handleRoot)
	router.GET("/health", s.handleHealth)
	router.GET("/model-info", s.handleModelInfo)
	router.POST("/clone-voice", s.handleCloneVoice)
	router.POST("/synthesize", s.handleSynthesize)
	router.GET("/speakers", s.handleListSpeakers)
	router.GET("/speaker/:name/info", s.handleSpeakerInfo)
	router.DELETE("/speaker/:name", s.handleDeleteSpeaker)
	router.GET("/history", s.handleHistory)

	s.logger.InfoTag("HTTP", "语音服务路由注册完成")
	return nil
}

// maxUploadBytes 上传大小上限
func (s *Service) maxUploadBytes() int64 {
	mb := s.config.Voice.MaxUploadMB
	if mb <= 0 {
		mb = 50
	}
	return mb * 1024 * 1024
}

// handleCloneVoice 处理声音克隆请求
// @Summary 克隆声音
// @Description 上传参考音频并注册为新的说话人，注册前会做一次试合成校验
// @Tags Voice
// @Accept multipart/form-data
// @Produce json
// @Param audio_file formData file true "参考音频（WAV/MP3）"
// @Param speaker_name formData string true "说话人名字"
// @Param overwrite formData boolean false "允许覆盖同名说话人"
// @Success 200 {object} CloneVoiceData
// @Failure 400 {object} object
// @Failure 409 {object} object
// @Failure 413 {object} object
// @Failure 500 {object} object
// @Failure 503 {object} object
// @Router /clone-voice [post]
func (s *Service) handleCloneVoice(c *gin.Context) {
	if !s.synth.IsReady() {
		s.respondError(c, http.StatusServiceUnavailable, "Voice cloner not initialized")
		return
	}

	if err := c.Request.ParseMultipartForm(s.maxUploadBytes()); err != nil {
		s.respondError(c, http.StatusBadRequest, "Failed to parse multipart form")
		return
	}

	name := strings.TrimSpace(c.Request.FormValue("speaker_name"))
	if name == "" {
		s.respondError(c, http.StatusBadRequest, "speaker_name is required")
		return
	}

	overwrite, _ := strconv.ParseBool(c.Request.FormValue("overwrite"))

	file, header, err := c.Request.FormFile("audio_file")
	if err != nil {
		s.respondError(c, http.StatusBadRequest, "audio_file is required")
		return
	}
	defer file.Close()

	if contentType := header.Header.Get("Content-Type"); !strings.HasPrefix(contentType, "audio/") {
		s.respondError(c, http.StatusBadRequest, "File must be an audio file")
		return
	}
	if header.Size > s.maxUploadBytes() {
		s.respondError(c, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("File too large (max %dMB)", s.config.Voice.MaxUploadMB))
		return
	}

	// 重名先挡在落盘之前，注册表内部还会在锁下复查
	if s.registry.Has(name) && !overwrite {
		s.respondError(c, http.StatusConflict,
			fmt.Sprintf("Speaker '%s' already exists. Use overwrite=true to replace.", name))
		return
	}

	uploadPath, err := s.saveUpload(file, header.Filename, name)
	if err != nil {
		s.logger.ErrorTag("HTTP", "保存上传文件失败: %v", err)
		s.respondError(c, http.StatusInternalServerError, "Failed to save uploaded file")
		return
	}
	// 上传文件只在本次请求内存活
	defer os.Remove(uploadPath)

	profile, err := s.registry.Create(c.Request.Context(), name, uploadPath, overwrite)
	if err != nil {
		if stderrors.Is(err, voice.ErrSpeakerExists) {
			s.respondError(c, http.StatusConflict,
				fmt.Sprintf("Speaker '%s' already exists. Use overwrite=true to replace.", name))
			return
		}
		s.logger.WarnTag("HTTP", "克隆失败: speaker=%s, err=%v", name, err)
		s.respondError(c, http.StatusInternalServerError, fmt.Sprintf("Voice cloning failed: %v", err))
		return
	}

	s.scheduleCleanup()
	s.scheduleVerification(profile)

	s.respondSuccess(c, http.StatusOK, CloneVoiceData{
		SpeakerName:   profile.Name,
		AudioDuration: profile.DurationSeconds,
		SampleRate:    profile.SampleRate,
		TestSample:    profile.ValidationSamplePath,
	}, "Voice cloned successfully")
}

// saveUpload 把上传内容写到 uploads/<uuid>_<speaker><ext>
func (s *Service) saveUpload(file io.Reader, originalName, speaker string) (string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if ext == "" {
		ext = ".wav"
	}

	dir := s.config.Voice.UploadsDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(dir, fmt.Sprintf("%s_%s%s", uuid.NewString(), speaker, ext))
	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// scheduleVerification 可选的异步回验，不影响响应
func (s *Service) scheduleVerification(profile *voice.VoiceProfile) {
	if s.verifier == nil {
		return
	}
	sample := profile.ValidationSamplePath
	expected := s.config.Validation.Sentence
	speaker := profile.Name

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), verifyTimeout)
		defer cancel()

		res, err := s.verifier.Check(ctx, sample, expected)
		if err != nil {
			s.logger.WarnTag("校验", "试听样本回验失败: speaker=%s, err=%v", speaker, err)
			return
		}
		if res.Score < 0.5 {
			s.logger.WarnTag("校验", "克隆质量可疑: speaker=%s, 得分=%.2f, 转写=%q",
				speaker, res.Score, res.Text)
		}
	}()
}

func (s *Service) scheduleCleanup() {
	if s.cleanup != nil {
		s.cleanup.TriggerAsync()
	}
}

// handleSynthesize 处理语音合成请求
// @Summary 合成语音
// @Description 用已注册的声音合成文本，返回 WAV 附件
// @Tags TTS
// @Accept x-www-form-urlencoded
// @Produce audio/wav
// @Param text formData string true "要合成的文本"
// @Param speaker_name formData string true "说话人名字"
// @Param language formData string false "语言代码，默认 en"
// @Param speed formData number false "语速 [0.5, 2.0]，默认 1.0"
// @Success 200 {file} file "WAV 音频附件"
// @Failure 400 {object} object
// @Failure 404 {object} object
// @Failure 500 {object} object
// @Failure 503 {object} object
// @Router /synthesize [post]
func (s *Service) handleSynthesize(c *gin.Context) {
	if !s.synth.IsReady() {
		s.respondError(c, http.StatusServiceUnavailable, "TTS engine not initialized")
		return
	}

	text := strings.TrimSpace(c.PostForm("text"))
	if text == "" {
		s.respondError(c, http.StatusBadRequest, "Text cannot be empty")
		return
	}
	if maxChars := s.config.Voice.MaxTextChars; maxChars > 0 && len([]rune(text)) > maxChars {
		s.respondError(c, http.StatusBadRequest,
			fmt.Sprintf("Text too long (max %d characters)", maxChars))
		return
	}

	name := strings.TrimSpace(c.PostForm("speaker_name"))
	if name == "" {
		s.respondError(c, http.StatusBadRequest, "speaker_name is required")
		return
	}

	info, ok := s.registry.Info(name)
	if !ok {
		s.respondUnknownSpeaker(c, name)
		return
	}

	language := c.DefaultPostForm("language", "en")

	speedRaw := c.DefaultPostForm("speed", "1.0")
	speed, err := strconv.ParseFloat(speedRaw, 64)
	if err != nil {
		s.respondError(c, http.StatusBadRequest, "Invalid speed value")
		return
	}
	if !synth.SpeedInRange(speed) {
		s.respondError(c, http.StatusBadRequest,
			fmt.Sprintf("Speed must be between %.1f and %.1f", synth.MinSpeed, synth.MaxSpeed))
		return
	}

	outPath, err := s.synth.Synthesize(c.Request.Context(), synth.Request{
		Speaker:            name,
		Text:               text,
		ReferenceAudioPath: info.ReferenceAudioPath,
		Language:           language,
		Speed:              speed,
	})
	if err != nil {
		s.logger.WarnTag("HTTP", "合成失败: speaker=%s, err=%v", name, err)
		s.respondError(c, http.StatusInternalServerError, fmt.Sprintf("Synthesis failed: %v", err))
		return
	}

	s.scheduleCleanup()

	filename := fmt.Sprintf("speech_%s_%s.wav", name, utils.ShortID())
	c.Header("Content-Type", "audio/wav")
	c.FileAttachment(outPath, filename)
}

// handleListSpeakers 列出已注册说话人
// @Summary 说话人列表
// @Tags Voice
// @Produce json
// @Success 200 {object} SpeakersData
// @Router /speakers [get]
func (s *Service) handleListSpeakers(c *gin.Context) {
	speakers := s.registry.List()
	s.respondSuccess(c, http.StatusOK, SpeakersData{
		Speakers: speakers,
		Count:    len(speakers),
	}, "ok")
}

// handleSpeakerInfo 查询说话人档案
// @Summary 说话人详情
// @Tags Voice
// @Produce json
// @Param name path string true "说话人名字"
// @Success 200 {object} SpeakerInfoData
// @Failure 404 {object} object
// @Router /speaker/{name}/info [get]
func (s *Service) handleSpeakerInfo(c *gin.Context) {
	name := c.Param("name")
	info, ok := s.registry.Info(name)
	if !ok {
		s.respondUnknownSpeaker(c, name)
		return
	}

	s.respondSuccess(c, http.StatusOK, SpeakerInfoData{
		SpeakerName: name,
		Info:        info,
	}, "ok")
}

// handleDeleteSpeaker 删除说话人
// @Summary 删除说话人
// @Tags Voice
// @Produce json
// @Param name path string true "说话人名字"
// @Success 200 {object} object
// @Failure 404 {object} object
// @Router /speaker/{name} [delete]
func (s *Service) handleDeleteSpeaker(c *gin.Context) {
	name := c.Param("name")

	res := s.registry.Delete(name)
	if !res.Deleted {
		s.respondUnknownSpeaker(c, name)
		return
	}
	if res.Err != nil {
		// 条目已移出索引，文件残留交给运维处理
		s.logger.WarnTag("HTTP", "删除 %s 时文件清理不完整: %v", name, res.Err)
	}

	s.respondSuccess(c, http.StatusOK, nil,
		fmt.Sprintf("Speaker '%s' deleted successfully", name))
}

// handleHealth 健康检查
// @Summary 健康检查
// @Description 服务自身状态、引擎就绪情况与宿主机资源占用
// @Tags System
// @Produce json
// @Success 200 {object} HealthData
// @Router /health [get]
func (s *Service) handleHealth(c *gin.Context) {
	cpuPercent, err := utils.GetSystemCPUUsage()
	if err != nil {
		cpuPercent = 0
	}
	memPercent, err := utils.GetSystemMemoryUsage()
	if err != nil {
		memPercent = 0
	}

	queued, workers := s.synth.Stats()
	s.respondSuccess(c, http.StatusOK, HealthData{
		Status:      "healthy",
		ModelLoaded: s.synth.IsReady(),
		Engine: EngineStatus{
			URL:     s.synth.EngineURL(),
			Ready:   s.synth.IsReady(),
			Queued:  queued,
			Workers: workers,
		},
		System: SystemStatus{
			CPUPercent:    cpuPercent,
			MemoryPercent: memPercent,
		},
	}, "ok")
}

// handleRoot 服务说明
// @Summary 服务说明
// @Tags System
// @Produce json
// @Success 200 {object} RootData
// @Router / [get]
func (s *Service) handleRoot(c *gin.Context) {
	s.respondSuccess(c, http.StatusOK, RootData{
		Message: "Voice Clone TTS API",
		Version: APIVersion,
		Model:   ModelName,
		Endpoints: map[string]string{
			"clone_voice": "/clone-voice",
			"synthesize":  "/synthesize",
			"speakers":    "/speakers",
			"health":      "/health",
			"model_info":  "/model-info",
			"history":     "/history",
			"docs":        "/docs",
		},
	}, "ok")
}

// handleModelInfo 模型信息
// @Summary 模型信息
// @Tags System
// @Produce json
// @Success 200 {object} ModelInfoData
// @Router /model-info [get]
func (s *Service) handleModelInfo(c *gin.Context) {
	s.respondSuccess(c, http.StatusOK, ModelInfoData{
		ModelName:          ModelName,
		LanguagesSupported: s.config.Engine.Languages,
		Features: []string{
			"Voice cloning",
			"Multi-language synthesis",
			"Speed control",
		},
	}, "ok")
}

// handleHistory 最近的合成记录
// @Summary 合成历史
// @Tags System
// @Produce json
// @Param limit query int false "返回条数，默认 20，最大 200"
// @Success 200 {object} HistoryData
// @Failure 400 {object} object
// @Failure 503 {object} object
// @Router /history [get]
func (s *Service) handleHistory(c *gin.Context) {
	if s.history == nil {
		s.respondError(c, http.StatusServiceUnavailable, "History storage unavailable")
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit <= 0 {
		s.respondError(c, http.StatusBadRequest, "Invalid limit value")
		return
	}
	if limit > historyLimitCap {
		limit = historyLimitCap
	}

	records, err := s.history.Recent(c.Request.Context(), limit)
	if err != nil {
		s.logger.WarnTag("HTTP", "查询历史失败: %v", err)
		s.respondError(c, http.StatusInternalServerError, "Failed to query history")
		return
	}

	s.respondSuccess(c, http.StatusOK, HistoryData{
		Records: records,
		Count:   len(records),
	}, "ok")
}

// respondUnknownSpeaker 404，附当前已注册列表方便调用方纠错
func (s *Service) respondUnknownSpeaker(c *gin.Context, name string) {
	message := fmt.Sprintf("Speaker '%s' not found", name)
	c.JSON(http.StatusNotFound, gin.H{
		"success": false,
		"data": UnknownSpeakerData{
			Error:             message,
			AvailableSpeakers: s.registry.List(),
		},
		"message": message,
		"code":    http.StatusNotFound,
	})
}

// respondSuccess 返回成功响应
func (s *Service) respondSuccess(c *gin.Context, statusCode int, data interface{}, message string) {
	c.JSON(statusCode, gin.H{
		"success": true,
		"data":    data,
		"message": message,
		"code":    statusCode,
	})
}

// respondError 返回错误响应
func (s *Service) respondError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"success": false,
		"data":    gin.H{"error": message},
		"message": message,
		"code":    statusCode,
	})
}
