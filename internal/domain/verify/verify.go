package verify

import (
	"context"
	"strings"
	"unicode"

	openai "github.com/sashabaranov/go-openai"

	"voiceclone-server-go/internal/platform/errors"
	"voiceclone-server-go/internal/utils"
)

// Checker 把试听样本送外部转写服务，与校验句比对，给克隆质量一个粗略分数。
// 可选能力：没配 API Key 时整个模块不启用。
type Checker struct {
	client *openai.Client
	model  string
	logger *utils.Logger
}

// Options 构造参数。BaseURL 为空时走官方地址
type Options struct {
	APIKey  string
	BaseURL string
	Model   string
	Logger  *utils.Logger
}

// CheckResult 一次回验的结果
type CheckResult struct {
	Text  string  // 转写文本
	Score float64 // [0,1]，期望句词元命中率
}

// New 创建回验器
func New(opts Options) (*Checker, error) {
	if opts.APIKey == "" {
		return nil, errors.New(errors.KindConfig, "verify.new", "api key is required")
	}
	if opts.Logger == nil {
		return nil, errors.New(errors.KindConfig, "verify.new", "logger is required")
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = opts.BaseURL
	}

	model := opts.Model
	if model == "" {
		model = openai.Whisper1
	}

	return &Checker{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		logger: opts.Logger,
	}, nil
}

// Check 转写 samplePath 并与 expected 比对
func (c *Checker) Check(ctx context.Context, samplePath, expected string) (*CheckResult, error) {
	resp, err := c.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    c.model,
		FilePath: samplePath,
	})
	if err != nil {
		return nil, errors.Wrap(errors.KindPlatform, "verify.check", "transcription request failed", err)
	}

	score := Similarity(expected, resp.Text)
	c.logger.InfoTag("校验", "试听样本回验: 得分=%.2f, 转写=%q", score, resp.Text)

	return &CheckResult{Text: resp.Text, Score: score}, nil
}

// Similarity 计算期望句词元在转写结果中的命中率，大小写和标点不敏感
func Similarity(expected, actual string) float64 {
	want := tokenize(expected)
	if len(want) == 0 {
		return 0
	}
	got := make(map[string]int)
	for _, tok := range tokenize(actual) {
		got[tok]++
	}

	matched := 0
	for _, tok := range want {
		if got[tok] > 0 {
			got[tok]--
			matched++
		}
	}
	return float64(matched) / float64(len(want))
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
