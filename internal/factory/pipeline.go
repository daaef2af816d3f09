package factory

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kitbuilder587/review-factory/internal/critic"
	"github.com/kitbuilder587/review-factory/internal/domain"
	"github.com/kitbuilder587/review-factory/internal/llm"
	"github.com/kitbuilder587/review-factory/internal/verification"
)

type stageLoop struct {
	loop   *verification.AdaptiveLoop[string, critic.Brief]
	critic *critic.LLM
}

// pipeline - по циклу на стадию. Циклы не потокобезопасны,
// поэтому pipeline в каждый момент у одной горутины.
type pipeline struct {
	worker int
	llm    llm.Client
	logger *zap.Logger
	stages map[Stage]*stageLoop
}

func newPipeline(worker int, llmClient llm.Client, logger *zap.Logger, base domain.AdaptiveConfig, opts ...verification.Option) (*pipeline, error) {
	p := &pipeline{
		worker: worker,
		llm:    llmClient,
		logger: logger,
		stages: make(map[Stage]*stageLoop, len(Stages)),
	}

	for _, s := range Stages {
		cfg := base
		cfg.Loop.Name = string(s)

		loop, err := verification.NewAdaptive[string, critic.Brief](cfg, opts...)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", s, err)
		}
		p.stages[s] = &stageLoop{
			loop:   loop,
			critic: critic.New(llmClient, logger.With(zap.String("stage", string(s))), loop.StrictnessLevel),
		}
	}

	return p, nil
}

func (p *pipeline) run(ctx context.Context, review domain.Review) (*domain.KnowledgeNode, error) {
	node := &domain.KnowledgeNode{
		ReviewID: review.ID,
		Stages:   make([]domain.StageReport, 0, len(Stages)),
		Verified: true,
	}

	for _, s := range Stages {
		input := stageInput(s, node, review.Text)

		report, out, err := p.runStage(ctx, s, input)
		if err != nil {
			return nil, fmt.Errorf("stage %s: %w", s, err)
		}

		setStageOutput(s, node, out)
		node.Stages = append(node.Stages, report)
		if !report.Approved {
			node.Verified = false
		}
	}

	return node, nil
}

func (p *pipeline) runStage(ctx context.Context, s Stage, input string) (domain.StageReport, string, error) {
	sl := p.stages[s]
	spec := stageSpecs[s]

	// генератор видит предыдущий ответ и замечания критика
	var (
		previous string
		feedback *domain.CriticFeedback
	)

	gen := verification.GeneratorFunc[string](func(ctx context.Context) (string, error) {
		prompt := input
		if feedback != nil {
			prompt = revisionPrompt(input, previous, *feedback)
		}
		out, err := p.llm.CompleteWithSystem(ctx, spec.system, prompt)
		if err != nil {
			return "", err
		}
		previous = strings.TrimSpace(out)
		return previous, nil
	})

	crit := verification.CriticFunc[string, critic.Brief](func(ctx context.Context, candidate string, brief critic.Brief) (domain.CriticFeedback, error) {
		fb, err := sl.critic.Critique(ctx, candidate, brief)
		if err != nil {
			return fb, err
		}
		feedback = &fb
		return fb, nil
	})

	res, err := sl.loop.Execute(ctx, gen, crit, critic.Brief{Task: spec.task, Source: input})
	if err != nil {
		return domain.StageReport{}, "", err
	}

	last := res.Last()
	p.logger.Debug("stage completed",
		zap.String("stage", string(s)),
		zap.Bool("approved", last.Approved),
		zap.Int("attempts", res.Attempts()),
		zap.Int("max_retries", sl.loop.MaxRetries()),
	)

	return domain.StageReport{
		Stage:      string(s),
		Approved:   res.Approved(),
		Attempts:   res.Attempts(),
		Confidence: last.Confidence,
		Reasoning:  last.Reasoning,
		Suggestion: last.Suggestion,
	}, res.Output, nil
}
