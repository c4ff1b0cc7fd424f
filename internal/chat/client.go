package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"thientam/internal/logger"
)

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1"
	apiKeyHeader   = "x-goog-api-key"
)

const (
	DefaultTemperature     = 0.7
	DefaultMaxOutputTokens = 512

	defaultInstruction = "Bạn là Thiền Sư hiền hòa, giải thích giáo lý Phật pháp bằng tiếng Việt, ngắn gọn, từ bi và thực tế. Tránh các chủ đề nhạy cảm chính trị/tôn giáo cực đoan. Luôn khuyên người dùng thực hành chánh niệm, từ bi và trí tuệ."
	instructionAck     = "Tôi hiểu. Tôi sẽ trả lời như một Thiền Sư hiền hòa, giải thích giáo lý Phật pháp bằng tiếng Việt, ngắn gọn, từ bi và thực tế."
)

// DefaultModels are tried in order until one returns text.
var DefaultModels = []string{
	"gemini-2.5-flash",
	"gemini-2.5-pro",
	"gemini-2.0-flash",
	"gemini-2.0-flash-001",
	"gemini-2.5-flash-lite",
}

var (
	ErrNotConfigured = errors.New("gemini api key not configured")
	errEmpty         = errors.New("empty response")
)

type Message struct {
	Role    string `json:"role" binding:"omitempty,oneof=user assistant system"`
	Content string `json:"content" binding:"required,min=1"`
}

type Request struct {
	Prompt            string
	History           []Message
	SystemInstruction string
	Temperature       *float64
	MaxOutputTokens   *int
}

// GeminiClient calls the Gemini generateContent endpoint.
type GeminiClient struct {
	apiKey     string
	baseURL    string
	models     []string
	httpClient *http.Client
	log        *logger.Logger
}

// NewGeminiClient accepts an empty key; Ask then fails with ErrNotConfigured.
func NewGeminiClient(apiKey string, log *logger.Logger) *GeminiClient {
	if log == nil {
		log = logger.Nop()
	}
	return &GeminiClient{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    defaultBaseURL,
		models:     DefaultModels,
		httpClient: &http.Client{Timeout: 20 * time.Second},
		log:        log,
	}
}

func (c *GeminiClient) WithBaseURL(u string) *GeminiClient {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

func (c *GeminiClient) WithModels(models ...string) *GeminiClient {
	c.models = models
	return c
}

func (c *GeminiClient) Configured() bool { return c.apiKey != "" }

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// buildRequest đặt chỉ dẫn hệ thống thành cặp hỏi/đáp đầu tiên vì v1 không có systemInstruction
func buildRequest(req Request) generateRequest {
	instruction := strings.TrimSpace(req.SystemInstruction)
	if instruction == "" {
		instruction = defaultInstruction
	}
	contents := make([]content, 0, len(req.History)+3)
	contents = append(contents,
		content{Role: "user", Parts: []part{{Text: instruction}}},
		content{Role: "model", Parts: []part{{Text: instructionAck}}},
	)
	for _, m := range req.History {
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		contents = append(contents, content{Role: role, Parts: []part{{Text: m.Content}}})
	}
	contents = append(contents, content{Role: "user", Parts: []part{{Text: req.Prompt}}})

	cfg := generationConfig{Temperature: DefaultTemperature, MaxOutputTokens: DefaultMaxOutputTokens}
	if req.Temperature != nil {
		cfg.Temperature = *req.Temperature
	}
	if req.MaxOutputTokens != nil {
		cfg.MaxOutputTokens = *req.MaxOutputTokens
	}
	return generateRequest{Contents: contents, GenerationConfig: cfg}
}

// Ask tries each candidate model in order and returns the first non-empty
// answer. The last upstream error is returned when every model fails.
func (c *GeminiClient) Ask(ctx context.Context, req Request) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	body := buildRequest(req)
	var lastErr error
	for _, model := range c.models {
		text, err := c.generate(ctx, model, body)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		c.log.Warn("gemini model failed", "model", model, "err", err)
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("gemini request failed")
	}
	return "", lastErr
}

func (c *GeminiClient) generate(ctx context.Context, model string, body generateRequest) (string, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	// khóa đi trong header để lỗi *url.Error không chứa nó
	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, strings.TrimPrefix(model, "models/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(apiKeyHeader, c.apiKey)
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var e errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error.Message != "" {
			return "", errors.New(e.Error.Message)
		}
		return "", fmt.Errorf("gemini api error: %s", resp.Status)
	}
	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 || out.Candidates[0].Content.Parts[0].Text == "" {
		return "", errEmpty
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}
