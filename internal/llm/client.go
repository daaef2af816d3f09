package llm

import (
	"context"
	"errors"
	"time"
)

var (
	ErrAuthFailed    = errors.New("authentication failed")
	ErrRequestFailed = errors.New("request failed")
	ErrEmptyResponse = errors.New("empty response")
	ErrRateLimit     = errors.New("rate limit exceeded")
)

type Client interface {
	CompleteWithSystem(ctx context.Context, system, prompt string) (string, error)
}

// Recorder - куда клиенты пишут длительность и статус запросов (метрики)
type Recorder interface {
	RecordLLMRequest(provider, status string, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordLLMRequest(string, string, time.Duration) {}

func NopRecorder() Recorder { return nopRecorder{} }

// Status сводит ошибку к метке для метрик
func Status(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrRateLimit):
		return "rate_limited"
	case errors.Is(err, ErrAuthFailed):
		return "auth_failed"
	case errors.Is(err, ErrEmptyResponse):
		return "empty"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
