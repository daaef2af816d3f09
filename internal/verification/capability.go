package verification

import (
	"context"

	"github.com/kitbuilder587/review-factory/internal/domain"
)

// Generator производит одного кандидата за вызов
type Generator[O any] interface {
	Generate(ctx context.Context) (O, error)
}

type GeneratorFunc[O any] func(ctx context.Context) (O, error)

func (f GeneratorFunc[O]) Generate(ctx context.Context) (O, error) { return f(ctx) }

// Critic оценивает кандидата относительно input. Цикл input не читает, только передает.
type Critic[O, C any] interface {
	Critique(ctx context.Context, candidate O, input C) (domain.CriticFeedback, error)
}

type CriticFunc[O, C any] func(ctx context.Context, candidate O, input C) (domain.CriticFeedback, error)

func (f CriticFunc[O, C]) Critique(ctx context.Context, candidate O, input C) (domain.CriticFeedback, error) {
	return f(ctx, candidate, input)
}

// Result - итог одного Execute. При исчерпании ретраев Output - последний кандидат,
// а не лучший из виденных.
type Result[O any] struct {
	Output  O
	History []domain.CriticFeedback // в порядке попыток, len от 1 до MaxRetries+1
}

func (r *Result[O]) Approved() bool {
	return len(r.History) > 0 && r.History[len(r.History)-1].Approved
}

func (r *Result[O]) Attempts() int { return len(r.History) }

func (r *Result[O]) Last() domain.CriticFeedback {
	if len(r.History) == 0 {
		return domain.CriticFeedback{}
	}
	return r.History[len(r.History)-1]
}
