package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/review-factory/internal/llm"
)

const providerName = "openrouter"

type Config struct {
	APIKey      string
	Model       string
	BaseURL     string
	Timeout     time.Duration
	Temperature *float64 // nil - дефолт провайдера
	MaxTokens   int
}

type Client struct {
	apiKey      string
	model       string
	baseURL     string
	temperature *float64
	maxTokens   int
	client      *http.Client
	logger      *zap.Logger
	recorder    llm.Recorder
}

func New(cfg Config, logger *zap.Logger, recorder llm.Recorder) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://openrouter.ai/api/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "deepseek/deepseek-chat"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = llm.NopRecorder()
	}

	return &Client{
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		baseURL:     cfg.BaseURL,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      &http.Client{Timeout: cfg.Timeout},
		logger:      logger,
		recorder:    recorder,
	}
}

func (c *Client) CompleteWithSystem(ctx context.Context, system, prompt string) (content string, err error) {
	start := time.Now()
	defer func() {
		c.recorder.RecordLLMRequest(providerName, llm.Status(err), time.Since(start))
	}()

	body, err := json.Marshal(c.newChatRequest(system, prompt))
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("HTTP-Referer", "https://github.com/kitbuilder587/review-factory")
	httpReq.Header.Set("X-Title", "Review Factory")

	respBody, statusCode, err := c.do(httpReq)
	if err != nil {
		return "", err
	}

	if statusCode != http.StatusOK {
		err = statusError(statusCode)
		c.logger.Error("openrouter request failed",
			zap.Int("status", statusCode),
			zap.String("body", string(respBody)),
			zap.Error(err),
		)
		return "", err
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	return chatResp.content()
}
