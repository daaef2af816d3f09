package openrouter

import (
	"fmt"
	"io"
	"net/http"

	"github.com/kitbuilder587/review-factory/internal/llm"
)

// формат OpenAI-совместимого chat/completions

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse. OpenRouter может вернуть 200 с error в теле
type chatResponse struct {
	Choices []choice  `json:"choices"`
	Error   *apiError `json:"error,omitempty"`
}

type choice struct {
	Message message `json:"message"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}

func (c *Client) newChatRequest(system, prompt string) chatRequest {
	return chatRequest{
		Model: c.model,
		Messages: []message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}
}

func (r *chatResponse) content() (string, error) {
	if r.Error != nil {
		return "", fmt.Errorf("%w: %s", llm.ErrRequestFailed, r.Error.Message)
	}
	if len(r.Choices) == 0 || r.Choices[0].Message.Content == "" {
		return "", llm.ErrEmptyResponse
	}
	return r.Choices[0].Message.Content, nil
}

// statusError сводит не-200 к sentinel-ошибкам llm
func statusError(statusCode int) error {
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return llm.ErrAuthFailed
	case http.StatusTooManyRequests:
		return llm.ErrRateLimit
	default:
		return fmt.Errorf("%w: status %d", llm.ErrRequestFailed, statusCode)
	}
}

func (c *Client) do(req *http.Request) ([]byte, int, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		// отмену отдаем как есть
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, 0, ctxErr
		}
		return nil, 0, fmt.Errorf("%w: %v", llm.ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}
