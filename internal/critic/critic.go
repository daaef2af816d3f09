package critic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kitbuilder587/review-factory/internal/domain"
	"github.com/kitbuilder587/review-factory/internal/llm"
	"github.com/kitbuilder587/review-factory/internal/verification"
)

const SystemPrompt = `You are a strict reviewer of data-processing outputs.

Your task: decide whether the OUTPUT correctly performs the TASK on the SOURCE.

Strictness is a number from 0.0 (lenient) to 1.0 (reject anything imperfect).

Response format (JSON only):
{
  "approved": true/false,
  "reasoning": "why",
  "suggestion": "how to fix, empty if approved",
  "confidence": 0.0-1.0
}`

// maxSourceLen в рунах
const maxSourceLen = 3000

// Brief - что стадия должна была сделать и с чем
type Brief struct {
	Task   string
	Source string
}

// LLM - критик поверх llm.Client
type LLM struct {
	llm        llm.Client
	logger     *zap.Logger
	strictness func() float64
}

// New. strictness читается на каждом вызове, чтобы SetStrictnessLevel цикла доходил до промпта.
func New(llmClient llm.Client, logger *zap.Logger, strictness func() float64) *LLM {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strictness == nil {
		strictness = func() float64 { return 0.5 }
	}
	return &LLM{
		llm:        llmClient,
		logger:     logger,
		strictness: strictness,
	}
}

var _ verification.Critic[string, Brief] = (*LLM)(nil)

func (c *LLM) Critique(ctx context.Context, candidate string, brief Brief) (domain.CriticFeedback, error) {
	prompt := c.buildPrompt(candidate, brief)

	response, err := c.llm.CompleteWithSystem(ctx, SystemPrompt, prompt)
	if err != nil {
		c.logger.Error("LLM review failed", zap.Error(err))
		return domain.CriticFeedback{}, err
	}

	fb, err := c.parseResponse(response)
	if err != nil {
		c.logger.Warn("failed to parse critic response",
			zap.Error(err),
			zap.String("response", response),
		)
		return domain.CriticFeedback{}, err
	}

	c.logger.Debug("review completed",
		zap.Bool("approved", fb.Approved),
		zap.Float64("confidence", fb.Confidence),
	)
	return fb, nil
}

func (c *LLM) buildPrompt(candidate string, brief Brief) string {
	var sb strings.Builder

	sb.WriteString("=== TASK ===\n")
	sb.WriteString(brief.Task)
	sb.WriteString("\n\n")

	sb.WriteString("=== SOURCE ===\n")
	source := brief.Source
	if runes := []rune(source); len(runes) > maxSourceLen {
		source = string(runes[:maxSourceLen]) + "..."
	}
	sb.WriteString(source)
	sb.WriteString("\n\n")

	sb.WriteString("=== OUTPUT TO REVIEW ===\n")
	sb.WriteString(candidate)
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "=== STRICTNESS ===\n%.2f\n\n", c.strictness())
	sb.WriteString("Respond with JSON only.")

	return sb.String()
}

type verdict struct {
	Approved   *bool    `json:"approved"`
	Reasoning  string   `json:"reasoning"`
	Suggestion string   `json:"suggestion"`
	Confidence *float64 `json:"confidence"`
}

// parseResponse: любой ответ не по форме - нарушение контракта, без дефолтов
func (c *LLM) parseResponse(response string) (domain.CriticFeedback, error) {
	var v verdict
	if err := json.Unmarshal([]byte(extractJSON(response)), &v); err != nil {
		return domain.CriticFeedback{}, fmt.Errorf("%w: unparseable verdict: %v", domain.ErrContractViolation, err)
	}
	if v.Approved == nil || v.Confidence == nil {
		return domain.CriticFeedback{}, fmt.Errorf("%w: verdict missing approved or confidence", domain.ErrContractViolation)
	}

	fb, err := domain.NewCriticFeedback(*v.Approved, strings.TrimSpace(v.Reasoning), strings.TrimSpace(v.Suggestion), *v.Confidence)
	if err != nil {
		return domain.CriticFeedback{}, fmt.Errorf("%w: %w", domain.ErrContractViolation, err)
	}
	return fb, nil
}

// extractJSON достает JSON из ответа LLM который может содержать текст вокруг
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return s
	}

	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}

	return s[start:]
}
