package verification

import (
	"context"

	"go.uber.org/zap"

	"github.com/kitbuilder587/review-factory/internal/domain"
)

// AdaptiveStatistics - статистика базового цикла плюс состояние подстройки
type AdaptiveStatistics struct {
	domain.Statistics
	MaxRetries        int
	WindowSize        int
	WindowSuccessRate float64
	Adaptations       int
}

// AdaptiveLoop подстраивает бюджет ретраев по success rate последних Window вызовов.
// Пересчет раз на полное окно, перед делегированием очередного вызова.
type AdaptiveLoop[O, C any] struct {
	base *Loop[O, C]
	cfg  domain.AdaptiveConfig

	maxRetries  int
	window      *ringBuffer[bool]
	sinceAdapt  int
	adaptations int
}

func NewAdaptive[O, C any](cfg domain.AdaptiveConfig, opts ...Option) (*AdaptiveLoop[O, C], error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	base, err := New[O, C](cfg.Loop, opts...)
	if err != nil {
		return nil, err
	}

	a := &AdaptiveLoop[O, C]{
		base:       base,
		cfg:        cfg,
		maxRetries: cfg.Loop.MaxRetries,
		window:     newRingBuffer[bool](cfg.Window),
	}
	base.observer.ObserveRetryBudget(base.name, a.maxRetries)
	return a, nil
}

func (a *AdaptiveLoop[O, C]) Name() string { return a.base.Name() }

// MaxRetries - текущий бюджет
func (a *AdaptiveLoop[O, C]) MaxRetries() int { return a.maxRetries }

func (a *AdaptiveLoop[O, C]) StrictnessLevel() float64 { return a.base.StrictnessLevel() }

func (a *AdaptiveLoop[O, C]) SetStrictnessLevel(level float64) error {
	return a.base.SetStrictnessLevel(level)
}

func (a *AdaptiveLoop[O, C]) Execute(ctx context.Context, gen Generator[O], critic Critic[O, C], input C) (*Result[O], error) {
	if a.sinceAdapt >= a.cfg.Window {
		a.adapt()
	}

	res, err := a.base.execute(ctx, a.maxRetries, gen, critic, input)
	if err != nil {
		return nil, err
	}

	a.window.push(res.Approved())
	a.sinceAdapt++
	return res, nil
}

func (a *AdaptiveLoop[O, C]) adapt() {
	rate := a.windowSuccessRate()
	prev := a.maxRetries

	switch {
	case rate >= a.cfg.LowerAbove:
		a.maxRetries = max(prev-a.cfg.Step, a.cfg.MinRetries)
	case rate < a.cfg.RaiseBelow:
		a.maxRetries = min(prev+a.cfg.Step, a.cfg.MaxMaxRetries)
	}

	a.sinceAdapt = 0
	a.adaptations++

	if a.maxRetries != prev {
		a.base.logger.Info("retry budget adapted",
			zap.Float64("window_success_rate", rate),
			zap.Int("old_max_retries", prev),
			zap.Int("new_max_retries", a.maxRetries),
		)
		a.base.observer.ObserveRetryBudget(a.base.name, a.maxRetries)
	}
}

func (a *AdaptiveLoop[O, C]) windowSuccessRate() float64 {
	outcomes := a.window.values()
	if len(outcomes) == 0 {
		return 0
	}
	ok := 0
	for _, approved := range outcomes {
		if approved {
			ok++
		}
	}
	return float64(ok) / float64(len(outcomes))
}

func (a *AdaptiveLoop[O, C]) Statistics() domain.Statistics {
	return a.base.Statistics()
}

func (a *AdaptiveLoop[O, C]) AdaptiveStatistics() AdaptiveStatistics {
	return AdaptiveStatistics{
		Statistics:        a.base.Statistics(),
		MaxRetries:        a.maxRetries,
		WindowSize:        a.window.len(),
		WindowSuccessRate: a.windowSuccessRate(),
		Adaptations:       a.adaptations,
	}
}

// ResetStatistics чистит и окно наблюдений, текущий бюджет остается
func (a *AdaptiveLoop[O, C]) ResetStatistics() {
	a.base.ResetStatistics()
	a.window.clear()
	a.sinceAdapt = 0
}
