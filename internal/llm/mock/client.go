package mock

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kitbuilder587/review-factory/internal/llm"
)

// Client - скриптуемый LLM для тестов. Responses отдаются по очереди,
// когда кончаются - Response.
type Client struct {
	mu sync.Mutex

	Response  string
	Responses []string
	Error     error
	Delay     time.Duration

	CallCount  int
	LastSystem string
	LastPrompt string
	AllCalls   []LLMCall
}

type LLMCall struct {
	System string
	Prompt string
}

func New() *Client {
	return &Client{
		Response: "This is a mock response.",
	}
}

func (c *Client) WithResponse(response string) *Client {
	c.Response = response
	return c
}

func (c *Client) WithResponses(responses ...string) *Client {
	c.Responses = append(c.Responses, responses...)
	return c
}

func (c *Client) WithError(err error) *Client {
	c.Error = err
	return c
}

func (c *Client) WithDelay(delay time.Duration) *Client {
	c.Delay = delay
	return c
}

func (c *Client) CompleteWithSystem(ctx context.Context, system, prompt string) (string, error) {
	c.mu.Lock()
	c.CallCount++
	c.LastSystem = system
	c.LastPrompt = prompt
	c.AllCalls = append(c.AllCalls, LLMCall{System: system, Prompt: prompt})

	response := c.Response
	if len(c.Responses) > 0 {
		response = c.Responses[0]
		c.Responses = c.Responses[1:]
	}
	err := c.Error
	delay := c.Delay
	c.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}

	if err != nil {
		return "", err
	}

	return response, nil
}

func (c *Client) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCount = 0
	c.LastSystem = ""
	c.LastPrompt = ""
	c.AllCalls = nil
}

func (c *Client) Calls() []LLMCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]LLMCall, len(c.AllCalls))
	copy(out, c.AllCalls)
	return out
}

// CountCalls считает вызовы, у которых system содержит marker
func (c *Client) CountCalls(marker string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, call := range c.AllCalls {
		if strings.Contains(call.System, marker) {
			n++
		}
	}
	return n
}

var _ llm.Client = (*Client)(nil)
