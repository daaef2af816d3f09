package verification

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kitbuilder587/review-factory/internal/domain"
)

const defaultLoopName = "default"

type Option func(*options)

type options struct {
	logger   *zap.Logger
	observer Observer
}

func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func WithObserver(observer Observer) Option {
	return func(o *options) {
		if observer != nil {
			o.observer = observer
		}
	}
}

// Loop - цикл generate -> critique -> retry с ограниченным числом ретраев.
// Не реентерабелен: один экземпляр - один вызывающий.
type Loop[O, C any] struct {
	name       string
	maxRetries int
	strictness float64
	logger     *zap.Logger
	observer   Observer

	successful int
	failed     int
}

func New[O, C any](cfg domain.LoopConfig, opts ...Option) (*Loop[O, C], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{
		logger:   zap.NewNop(),
		observer: nopObserver{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	// флаг логирования влияет только на наблюдаемость
	logger := o.logger
	if !cfg.Logging {
		logger = zap.NewNop()
	}

	name := cfg.Name
	if name == "" {
		name = defaultLoopName
	}

	return &Loop[O, C]{
		name:       name,
		maxRetries: cfg.MaxRetries,
		strictness: cfg.StrictnessLevel,
		logger:     logger.With(zap.String("loop", name)),
		observer:   o.observer,
	}, nil
}

func (l *Loop[O, C]) Name() string { return l.name }

func (l *Loop[O, C]) MaxRetries() int { return l.maxRetries }

func (l *Loop[O, C]) StrictnessLevel() float64 { return l.strictness }

func (l *Loop[O, C]) SetStrictnessLevel(level float64) error {
	if err := domain.ValidateStrictness(level); err != nil {
		return err
	}
	l.strictness = level
	return nil
}

// Execute гоняет генератор и критика пока критик не одобрит или не кончатся ретраи.
// Ошибки генератора и критика возвращаются как есть, без ретраев и без учета в статистике.
func (l *Loop[O, C]) Execute(ctx context.Context, gen Generator[O], critic Critic[O, C], input C) (*Result[O], error) {
	return l.execute(ctx, l.maxRetries, gen, critic, input)
}

// execute с явным бюджетом, бюджет фиксируется на весь вызов
func (l *Loop[O, C]) execute(ctx context.Context, maxRetries int, gen Generator[O], critic Critic[O, C], input C) (*Result[O], error) {
	start := time.Now()

	history := make([]domain.CriticFeedback, 0, min(maxRetries+1, 8))
	var candidate O

	for attempt := 0; ; attempt++ {
		out, err := gen.Generate(ctx)
		if err != nil {
			l.logger.Debug("generator failed",
				zap.Error(err),
				zap.Int("attempt", attempt+1),
			)
			return nil, err
		}

		feedback, err := critic.Critique(ctx, out, input)
		if err != nil {
			l.logger.Debug("critic failed",
				zap.Error(err),
				zap.Int("attempt", attempt+1),
			)
			return nil, err
		}
		if err := feedback.Validate(); err != nil {
			l.logger.Warn("critic returned invalid feedback",
				zap.Error(err),
				zap.Int("attempt", attempt+1),
			)
			return nil, fmt.Errorf("%w: %w", domain.ErrContractViolation, err)
		}

		candidate = out
		history = append(history, feedback)
		l.observer.ObserveAttempt(l.name, attempt+1, feedback)

		l.logger.Debug("attempt critiqued",
			zap.Int("attempt", attempt+1),
			zap.Bool("approved", feedback.Approved),
			zap.Float64("confidence", feedback.Confidence),
		)

		if feedback.Approved {
			break
		}
		if attempt >= maxRetries {
			l.logger.Info("max retries reached, returning last candidate",
				zap.Int("max_retries", maxRetries),
			)
			break
		}
	}

	res := &Result[O]{Output: candidate, History: history}
	approved := res.Approved()
	if approved {
		l.successful++
	} else {
		l.failed++
	}

	l.observer.ObserveExecution(l.name, approved, res.Attempts(), time.Since(start))
	l.logger.Info("verification completed",
		zap.Bool("approved", approved),
		zap.Int("attempts", res.Attempts()),
		zap.Float64("confidence", res.Last().Confidence),
	)

	return res, nil
}

func (l *Loop[O, C]) Statistics() domain.Statistics {
	return domain.NewStatistics(l.successful, l.failed)
}

// ResetStatistics обнуляет счетчики, MaxRetries и strictness не трогает
func (l *Loop[O, C]) ResetStatistics() {
	l.successful = 0
	l.failed = 0
}
