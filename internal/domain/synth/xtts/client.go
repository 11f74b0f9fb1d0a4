package xtts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"voiceclone-server-go/internal/platform/errors"
)

const (
	ttsEndpoint      = "/tts_to_audio/"
	speakersEndpoint = "/studio_speakers"

	defaultTimeout = 120 * time.Second

	// maxErrorBody 限制读取引擎错误响应的字节数
	maxErrorBody = 2048
)

// Option 客户端可选配置
type Option func(*Client)

// WithTimeout 设置单次请求超时
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithHTTPClient 替换底层 HTTP 客户端（测试用）
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// Client XTTS v2 推理服务 HTTP 客户端。参考音频通过服务端可见的路径传递
// （共享卷语义），合成结果以完整 WAV 字节返回。并发安全。
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New 创建客户端，baseURL 形如 http://127.0.0.1:8020
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New(errors.KindEngine, "xtts.new", "base url must not be empty")
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL 返回引擎地址
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ttsRequest POST /tts_to_audio/ 的请求体
type ttsRequest struct {
	Text       string `json:"text"`
	SpeakerWav string `json:"speaker_wav"`
	Language   string `json:"language"`
}

// Synthesize 向引擎发起一次合成，返回完整 WAV 字节
func (c *Client) Synthesize(ctx context.Context, text, speakerWav, language string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New(errors.KindEngine, "xtts.synthesize", "text must not be empty")
	}
	if strings.TrimSpace(speakerWav) == "" {
		return nil, errors.New(errors.KindEngine, "xtts.synthesize", "speaker wav path must not be empty")
	}

	body := ttsRequest{
		Text:       text,
		SpeakerWav: speakerWav,
		Language:   language,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(errors.KindEngine, "xtts.synthesize", "marshal request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ttsEndpoint, bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(errors.KindEngine, "xtts.synthesize", "create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.KindEngine, "xtts.synthesize", "engine unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, errors.New(errors.KindEngine, "xtts.synthesize",
			fmt.Sprintf("engine returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))))
	}

	wav, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(errors.KindEngine, "xtts.synthesize", "read wav response", err)
	}
	if !looksLikeWav(wav) {
		return nil, errors.New(errors.KindEngine, "xtts.synthesize", "engine response is not a wav container")
	}
	return wav, nil
}

// Ready 探测引擎是否就绪
func (c *Client) Ready(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+speakersEndpoint, nil)
	if err != nil {
		return errors.Wrap(errors.KindEngine, "xtts.ready", "create request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(errors.KindEngine, "xtts.ready", "engine unreachable", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))

	if resp.StatusCode != http.StatusOK {
		return errors.New(errors.KindEngine, "xtts.ready",
			fmt.Sprintf("engine returned status %d", resp.StatusCode))
	}
	return nil
}

func looksLikeWav(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}
