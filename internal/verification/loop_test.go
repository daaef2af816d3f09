package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kitbuilder587/review-factory/internal/domain"
)

type candidate struct {
	QualityScore float64
	Seq          int
}

type MockGenerator struct {
	Score     float64
	Scores    []float64 // если задано - по одному на вызов
	Err       error
	CallCount int
}

func (m *MockGenerator) Generate(ctx context.Context) (candidate, error) {
	m.CallCount++
	if m.Err != nil {
		return candidate{}, m.Err
	}
	score := m.Score
	if idx := m.CallCount - 1; idx < len(m.Scores) {
		score = m.Scores[idx]
	}
	return candidate{QualityScore: score, Seq: m.CallCount}, nil
}

// MockCritic отдает вердикты по очереди, дальше - одобряет
type MockCritic struct {
	Results   []domain.CriticFeedback
	Errors    []error
	CallCount int
	Inputs    []string
}

func NewMockCritic() *MockCritic {
	return &MockCritic{}
}

func (m *MockCritic) WithApproved() *MockCritic {
	m.Results = append(m.Results, domain.CriticFeedback{
		Approved:   true,
		Reasoning:  "looks good",
		Confidence: 0.95,
	})
	return m
}

func (m *MockCritic) WithRejected(times int) *MockCritic {
	for i := 0; i < times; i++ {
		m.Results = append(m.Results, domain.CriticFeedback{
			Approved:   false,
			Reasoning:  "not good enough",
			Suggestion: "try again",
			Confidence: 0.7,
		})
	}
	return m
}

func (m *MockCritic) WithError(err error) *MockCritic {
	m.Errors = append(m.Errors, err)
	return m
}

func (m *MockCritic) Critique(ctx context.Context, c candidate, input string) (domain.CriticFeedback, error) {
	idx := m.CallCount
	m.CallCount++
	m.Inputs = append(m.Inputs, input)

	if idx < len(m.Errors) && m.Errors[idx] != nil {
		return domain.CriticFeedback{}, m.Errors[idx]
	}
	if idx < len(m.Results) {
		return m.Results[idx], nil
	}
	return domain.CriticFeedback{Approved: true, Reasoning: "default", Confidence: 0.9}, nil
}

func rejectAll() *MockCritic {
	return NewMockCritic().WithRejected(100)
}

// критик по порогу качества
func thresholdCritic(threshold float64) CriticFunc[candidate, string] {
	return func(ctx context.Context, c candidate, input string) (domain.CriticFeedback, error) {
		if c.QualityScore >= threshold {
			return domain.NewCriticFeedback(true, "quality is sufficient", "", 0.9)
		}
		return domain.NewCriticFeedback(false, "quality below threshold", "raise quality", 0.8)
	}
}

func newLoop(t *testing.T, maxRetries int) *Loop[candidate, string] {
	t.Helper()
	loop, err := New[candidate, string](domain.LoopConfig{
		Name:            "test",
		MaxRetries:      maxRetries,
		StrictnessLevel: 0.5,
	})
	require.NoError(t, err)
	return loop
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     domain.LoopConfig
		wantErr error
	}{
		{"ok", domain.LoopConfig{MaxRetries: 3, StrictnessLevel: 0.7}, nil},
		{"zero retries", domain.LoopConfig{MaxRetries: 0, StrictnessLevel: 0}, nil},
		{"strictness 1", domain.LoopConfig{MaxRetries: 1, StrictnessLevel: 1}, nil},
		{"negative retries", domain.LoopConfig{MaxRetries: -1, StrictnessLevel: 0.5}, domain.ErrInvalidMaxRetries},
		{"strictness too high", domain.LoopConfig{MaxRetries: 2, StrictnessLevel: 1.5}, domain.ErrInvalidStrictness},
		{"strictness negative", domain.LoopConfig{MaxRetries: 2, StrictnessLevel: -0.1}, domain.ErrInvalidStrictness},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loop, err := New[candidate, string](tt.cfg)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				}
				if !errors.Is(err, domain.ErrInvalidConfiguration) {
					t.Errorf("New() error = %v, want ErrInvalidConfiguration", err)
				}
				if loop != nil {
					t.Error("New() returned loop on invalid config")
				}
				return
			}
			if err != nil {
				t.Fatalf("New() unexpected error = %v", err)
			}
			if loop.MaxRetries() != tt.cfg.MaxRetries {
				t.Errorf("MaxRetries() = %d, want %d", loop.MaxRetries(), tt.cfg.MaxRetries)
			}
		})
	}
}

func TestLoop_AllRejected(t *testing.T) {
	for _, n := range []int{0, 1, 2, 5} {
		loop := newLoop(t, n)
		gen := &MockGenerator{Score: 0.1}
		critic := rejectAll()

		res, err := loop.Execute(context.Background(), gen, critic, "ctx")
		require.NoError(t, err)

		assert.Equal(t, n+1, gen.CallCount)
		assert.Equal(t, n+1, critic.CallCount)
		assert.Len(t, res.History, n+1)
		for _, fb := range res.History {
			assert.False(t, fb.Approved)
		}
		assert.False(t, res.Approved())

		stats := loop.Statistics()
		assert.Equal(t, 1, stats.TotalExecutions)
		assert.Equal(t, 0, stats.SuccessfulExecutions)
		assert.Equal(t, 1, stats.FailedExecutions)
	}
}

func TestLoop_FirstApproved(t *testing.T) {
	loop := newLoop(t, 5)
	gen := &MockGenerator{Score: 0.9}
	critic := NewMockCritic().WithApproved()

	res, err := loop.Execute(context.Background(), gen, critic, "ctx")
	require.NoError(t, err)

	assert.Equal(t, 1, gen.CallCount)
	assert.Equal(t, 1, res.Attempts())
	assert.True(t, res.Approved())
	assert.Equal(t, 1, loop.Statistics().SuccessfulExecutions)
	assert.Equal(t, 0, loop.Statistics().FailedExecutions)
}

func TestLoop_ApprovedOnAttemptK(t *testing.T) {
	const maxRetries = 4

	for k := 1; k <= maxRetries; k++ {
		loop := newLoop(t, maxRetries)
		gen := &MockGenerator{}
		critic := NewMockCritic().WithRejected(k - 1).WithApproved()

		res, err := loop.Execute(context.Background(), gen, critic, "ctx")
		require.NoError(t, err)

		require.Len(t, res.History, k)
		for i, fb := range res.History {
			if i == k-1 {
				assert.True(t, fb.Approved, "k=%d last entry", k)
			} else {
				assert.False(t, fb.Approved, "k=%d entry %d", k, i)
			}
		}
		assert.Equal(t, k, res.Output.Seq)
		assert.Equal(t, 1, loop.Statistics().SuccessfulExecutions)
	}
}

// при исчерпании возвращается последний кандидат, а не лучший
func TestLoop_LastAttemptWins(t *testing.T) {
	loop := newLoop(t, 2)
	gen := &MockGenerator{Scores: []float64{0.7, 0.3, 0.5}}

	res, err := loop.Execute(context.Background(), gen, thresholdCritic(0.8), "ctx")
	require.NoError(t, err)

	assert.False(t, res.Approved())
	assert.Equal(t, 3, res.Output.Seq)
	assert.Equal(t, 0.5, res.Output.QualityScore)
}

func TestLoop_QualityThresholdScenario(t *testing.T) {
	loop := newLoop(t, 2)
	gen := &MockGenerator{Score: 0.5}

	res, err := loop.Execute(context.Background(), gen, thresholdCritic(0.8), "ctx")
	require.NoError(t, err)

	assert.Len(t, res.History, 3)
	for _, fb := range res.History {
		assert.False(t, fb.Approved)
	}
	assert.Equal(t, 1, loop.Statistics().FailedExecutions)
}

func TestLoop_InputPassedThrough(t *testing.T) {
	loop := newLoop(t, 2)
	critic := NewMockCritic().WithRejected(2).WithApproved()

	_, err := loop.Execute(context.Background(), &MockGenerator{}, critic, "review #42")
	require.NoError(t, err)

	assert.Equal(t, []string{"review #42", "review #42", "review #42"}, critic.Inputs)
}

func TestLoop_GeneratorError(t *testing.T) {
	loop := newLoop(t, 3)
	genErr := errors.New("llm down")
	gen := &MockGenerator{Err: genErr}
	critic := NewMockCritic()

	res, err := loop.Execute(context.Background(), gen, critic, "ctx")

	assert.Nil(t, res)
	assert.Equal(t, genErr, err)
	assert.Equal(t, 1, gen.CallCount)
	assert.Equal(t, 0, critic.CallCount)
	assert.Equal(t, domain.Statistics{}, loop.Statistics())
}

func TestLoop_CriticError(t *testing.T) {
	loop := newLoop(t, 3)
	criticErr := errors.New("critic timeout")
	gen := &MockGenerator{}
	critic := NewMockCritic().WithRejected(1).WithError(nil).WithError(criticErr)

	_, err := loop.Execute(context.Background(), gen, critic, "ctx")

	if !errors.Is(err, criticErr) {
		t.Fatalf("Execute() error = %v, want %v", err, criticErr)
	}
	assert.Equal(t, 2, gen.CallCount)
	assert.Equal(t, 0, loop.Statistics().TotalExecutions)
}

func TestLoop_ContractViolation(t *testing.T) {
	tests := []struct {
		name     string
		feedback domain.CriticFeedback
		cause    error
	}{
		{"confidence too high", domain.CriticFeedback{Approved: true, Reasoning: "ok", Confidence: 1.5}, domain.ErrInvalidConfidence},
		{"confidence negative", domain.CriticFeedback{Approved: false, Reasoning: "no", Confidence: -0.2}, domain.ErrInvalidConfidence},
		{"empty reasoning", domain.CriticFeedback{Approved: true, Confidence: 0.9}, domain.ErrEmptyReasoning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loop := newLoop(t, 2)
			critic := &MockCritic{Results: []domain.CriticFeedback{tt.feedback}}

			res, err := loop.Execute(context.Background(), &MockGenerator{}, critic, "ctx")

			assert.Nil(t, res)
			assert.ErrorIs(t, err, domain.ErrContractViolation)
			assert.ErrorIs(t, err, tt.cause)
			assert.Equal(t, 1, critic.CallCount)
			assert.Equal(t, 0, loop.Statistics().TotalExecutions)
		})
	}
}

func TestLoop_Statistics(t *testing.T) {
	loop := newLoop(t, 1)

	empty := loop.Statistics()
	assert.Equal(t, 0, empty.TotalExecutions)
	assert.Equal(t, 0.0, empty.SuccessRate)

	outcomes := []bool{true, false, true, true}
	for _, ok := range outcomes {
		critic := rejectAll()
		if ok {
			critic = NewMockCritic().WithApproved()
		}
		_, err := loop.Execute(context.Background(), &MockGenerator{}, critic, "ctx")
		require.NoError(t, err)

		stats := loop.Statistics()
		assert.Equal(t, stats.SuccessfulExecutions+stats.FailedExecutions, stats.TotalExecutions)
	}

	stats := loop.Statistics()
	assert.Equal(t, 4, stats.TotalExecutions)
	assert.Equal(t, 3, stats.SuccessfulExecutions)
	assert.Equal(t, 1, stats.FailedExecutions)
	assert.InDelta(t, 0.75, stats.SuccessRate, 1e-9)
}

func TestLoop_ResetStatistics(t *testing.T) {
	loop := newLoop(t, 3)
	require.NoError(t, loop.SetStrictnessLevel(0.9))

	for i := 0; i < 3; i++ {
		_, err := loop.Execute(context.Background(), &MockGenerator{}, rejectAll(), "ctx")
		require.NoError(t, err)
	}

	loop.ResetStatistics()

	assert.Equal(t, domain.Statistics{}, loop.Statistics())
	assert.Equal(t, 3, loop.MaxRetries())
	assert.Equal(t, 0.9, loop.StrictnessLevel())
}

func TestLoop_SetStrictnessLevel(t *testing.T) {
	loop := newLoop(t, 1)

	assert.NoError(t, loop.SetStrictnessLevel(0))
	assert.NoError(t, loop.SetStrictnessLevel(1))
	assert.Equal(t, 1.0, loop.StrictnessLevel())

	err := loop.SetStrictnessLevel(1.5)
	assert.ErrorIs(t, err, domain.ErrInvalidStrictness)
	assert.Equal(t, 1.0, loop.StrictnessLevel())
}

func TestLoop_FuncAdapters(t *testing.T) {
	loop := newLoop(t, 0)
	calls := 0
	gen := GeneratorFunc[candidate](func(ctx context.Context) (candidate, error) {
		calls++
		return candidate{QualityScore: 0.95}, nil
	})

	res, err := loop.Execute(context.Background(), gen, thresholdCritic(0.8), "ctx")
	require.NoError(t, err)
	assert.True(t, res.Approved())
	assert.Equal(t, 1, calls)
}

// логирование не влияет на поток управления
func TestLoop_LoggingToggle(t *testing.T) {
	for _, logging := range []bool{true, false} {
		loop, err := New[candidate, string](domain.LoopConfig{
			MaxRetries:      2,
			StrictnessLevel: 0.5,
			Logging:         logging,
		}, WithLogger(zap.NewExample()))
		require.NoError(t, err)

		critic := NewMockCritic().WithRejected(1).WithApproved()
		res, err := loop.Execute(context.Background(), &MockGenerator{}, critic, "ctx")
		require.NoError(t, err)
		assert.Equal(t, 2, res.Attempts())
		assert.Equal(t, defaultLoopName, loop.Name())
	}
}

type recordingObserver struct {
	attempts   []int
	executions []bool
	budgets    []int
}

func (r *recordingObserver) ObserveAttempt(loop string, attempt int, fb domain.CriticFeedback) {
	r.attempts = append(r.attempts, attempt)
}

func (r *recordingObserver) ObserveExecution(loop string, approved bool, attempts int, d time.Duration) {
	r.executions = append(r.executions, approved)
}

func (r *recordingObserver) ObserveRetryBudget(loop string, maxRetries int) {
	r.budgets = append(r.budgets, maxRetries)
}

func TestLoop_Observer(t *testing.T) {
	obs := &recordingObserver{}
	loop, err := New[candidate, string](domain.LoopConfig{Name: "obs", MaxRetries: 2}, WithObserver(obs))
	require.NoError(t, err)

	_, err = loop.Execute(context.Background(), &MockGenerator{}, NewMockCritic().WithRejected(1).WithApproved(), "ctx")
	require.NoError(t, err)
	_, err = loop.Execute(context.Background(), &MockGenerator{}, rejectAll(), "ctx")
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 1, 2, 3}, obs.attempts)
	assert.Equal(t, []bool{true, false}, obs.executions)
}

func TestResult_Helpers(t *testing.T) {
	var empty Result[string]
	assert.False(t, empty.Approved())
	assert.Equal(t, 0, empty.Attempts())
	assert.Equal(t, domain.CriticFeedback{}, empty.Last())

	res := Result[string]{
		Output: "x",
		History: []domain.CriticFeedback{
			{Approved: false, Reasoning: "a", Confidence: 0.4},
			{Approved: true, Reasoning: "b", Confidence: 0.9},
		},
	}
	assert.True(t, res.Approved())
	assert.Equal(t, "b", res.Last().Reasoning)
}
