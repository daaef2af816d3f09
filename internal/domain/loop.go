package domain

import "math"

const (
	DefaultAdaptStep       = 1
	DefaultAdaptRaiseBelow = 0.5
	DefaultAdaptLowerAbove = 0.9
)

// LoopConfig - конфиг цикла generate -> critique -> retry
type LoopConfig struct {
	Name            string  // для логов и метрик
	MaxRetries      int     // ретраи сверх первой попытки
	StrictnessLevel float64 // 0.0-1.0, передается критикам, сам цикл не интерпретирует
	Logging         bool
}

func (c LoopConfig) Validate() error {
	if c.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	return ValidateStrictness(c.StrictnessLevel)
}

func ValidateStrictness(level float64) error {
	if math.IsNaN(level) || level < 0 || level > 1 {
		return ErrInvalidStrictness
	}
	return nil
}

// AdaptiveConfig - конфиг цикла с автоподстройкой бюджета ретраев.
// Loop.MaxRetries - стартовый бюджет.
type AdaptiveConfig struct {
	Loop          LoopConfig
	Window        int
	MinRetries    int
	MaxMaxRetries int
	Step          int

	// success rate окна ниже RaiseBelow -> +Step, не ниже LowerAbove -> -Step
	RaiseBelow float64
	LowerAbove float64
}

// WithDefaults заполняет нулевые Step и пороги
func (c AdaptiveConfig) WithDefaults() AdaptiveConfig {
	if c.Step == 0 {
		c.Step = DefaultAdaptStep
	}
	if c.RaiseBelow == 0 && c.LowerAbove == 0 {
		c.RaiseBelow = DefaultAdaptRaiseBelow
		c.LowerAbove = DefaultAdaptLowerAbove
	}
	return c
}

func (c AdaptiveConfig) Validate() error {
	if err := c.Loop.Validate(); err != nil {
		return err
	}
	if c.Window <= 0 {
		return ErrInvalidWindow
	}
	if c.MinRetries < 0 || c.MinRetries > c.MaxMaxRetries {
		return ErrInvalidRetryBounds
	}
	if c.Loop.MaxRetries < c.MinRetries || c.Loop.MaxRetries > c.MaxMaxRetries {
		return ErrInvalidRetryBounds
	}
	if c.Step <= 0 {
		return ErrInvalidStep
	}
	if !inUnitRange(c.RaiseBelow) || !inUnitRange(c.LowerAbove) || c.RaiseBelow > c.LowerAbove {
		return ErrInvalidThresholds
	}
	return nil
}

func inUnitRange(v float64) bool {
	return !math.IsNaN(v) && v >= 0 && v <= 1
}
