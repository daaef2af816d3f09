package ratelimit

import (
	"context"

	"github.com/kitbuilder587/review-factory/internal/llm"
)

// Client ограничивает частоту запросов к LLM, все вызовы идут под одним ключом
type Client struct {
	next    llm.Client
	limiter *Limiter
	key     string
}

func WrapClient(next llm.Client, limiter *Limiter, key string) *Client {
	return &Client{next: next, limiter: limiter, key: key}
}

func (c *Client) CompleteWithSystem(ctx context.Context, system, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx, c.key); err != nil {
		return "", err
	}
	return c.next.CompleteWithSystem(ctx, system, prompt)
}

var _ llm.Client = (*Client)(nil)
