package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kitbuilder587/review-factory/internal/domain"
	"github.com/kitbuilder587/review-factory/internal/verification"
)

func TestMetrics_ObserveLoop(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	loop, err := verification.NewAdaptive[string, string](domain.AdaptiveConfig{
		Loop:          domain.LoopConfig{Name: "clean", MaxRetries: 2},
		Window:        5,
		MinRetries:    0,
		MaxMaxRetries: 4,
	}, verification.WithObserver(m))
	require.NoError(t, err)

	calls := 0
	critic := verification.CriticFunc[string, string](func(ctx context.Context, out, in string) (domain.CriticFeedback, error) {
		calls++
		return domain.NewCriticFeedback(calls == 2, "verdict", "", 0.8)
	})
	gen := verification.GeneratorFunc[string](func(ctx context.Context) (string, error) {
		return "out", nil
	})

	_, err = loop.Execute(context.Background(), gen, critic, "in")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AttemptsTotal.WithLabelValues("clean", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AttemptsTotal.WithLabelValues("clean", "approved")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExecutionsTotal.WithLabelValues("clean", "success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ExecutionsTotal.WithLabelValues("clean", "failed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RetryBudget.WithLabelValues("clean", "")))
}

func TestMetrics_RecordLLMRequest(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.RecordLLMRequest("openrouter", "success", time.Second)
	m.RecordLLMRequest("openrouter", "success", time.Second)
	m.RecordLLMRequest("openrouter", "rate_limited", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("openrouter", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMRequestsTotal.WithLabelValues("openrouter", "rate_limited")))
}

func TestMetrics_Reviews(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.IncReviewsInFlight()
	m.IncReviewsInFlight()
	m.DecReviewsInFlight()
	m.RecordReview("verified")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReviewsInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReviewsTotal.WithLabelValues("verified")))
}

// два экземпляра на разных регистрах не конфликтуют
func TestNewWithRegistry_Independent(t *testing.T) {
	assert.NotPanics(t, func() {
		NewWithRegistry(prometheus.NewRegistry())
		NewWithRegistry(prometheus.NewRegistry())
	})
}

func TestMetrics_ForWorker(t *testing.T) {
	m := NewWithRegistry(prometheus.NewRegistry())

	m.ForWorker(0).ObserveRetryBudget("clean", 1)
	m.ForWorker(1).ObserveRetryBudget("clean", 3)
	m.ForWorker(1).ObserveExecution("clean", true, 1, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RetryBudget.WithLabelValues("clean", "0")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RetryBudget.WithLabelValues("clean", "1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExecutionsTotal.WithLabelValues("clean", "success")))
}
