package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kitbuilder587/review-factory/internal/domain"
	"github.com/kitbuilder587/review-factory/internal/llm"
	"github.com/kitbuilder587/review-factory/internal/verification"
)

type Metrics struct {
	AttemptsTotal      *prometheus.CounterVec
	CriticConfidence   *prometheus.HistogramVec
	ExecutionsTotal    *prometheus.CounterVec
	ExecutionAttempts  *prometheus.HistogramVec
	ExecutionDuration  *prometheus.HistogramVec
	RetryBudget        *prometheus.GaugeVec
	LLMRequestsTotal   *prometheus.CounterVec
	LLMRequestDuration *prometheus.HistogramVec
	ReviewsTotal       *prometheus.CounterVec
	ReviewsInFlight    prometheus.Gauge
}

// New регистрирует метрики в дефолтном регистре
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		AttemptsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "review_factory_verification_attempts_total",
				Help: "Total number of generate/critique attempts",
			},
			[]string{"loop", "verdict"},
		),
		CriticConfidence: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "review_factory_critic_confidence",
				Help:    "Critic self-reported confidence per attempt",
				Buckets: []float64{0.1, 0.3, 0.5, 0.7, 0.8, 0.9, 1},
			},
			[]string{"loop"},
		),
		ExecutionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "review_factory_verification_executions_total",
				Help: "Total number of completed verification runs",
			},
			[]string{"loop", "status"},
		),
		ExecutionAttempts: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "review_factory_verification_execution_attempts",
				Help:    "Attempts used per verification run",
				Buckets: []float64{1, 2, 3, 4, 5, 7, 10},
			},
			[]string{"loop"},
		),
		ExecutionDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "review_factory_verification_duration_seconds",
				Help:    "Verification run duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"loop"},
		),
		RetryBudget: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "review_factory_retry_budget",
				Help: "Current max retries of a verification loop",
			},
			[]string{"loop", "worker"},
		),
		LLMRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "review_factory_llm_requests_total",
				Help: "Total number of LLM API requests",
			},
			[]string{"provider", "status"},
		),
		LLMRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "review_factory_llm_request_duration_seconds",
				Help:    "LLM request duration in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider"},
		),
		ReviewsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "review_factory_reviews_total",
				Help: "Total number of reviews processed",
			},
			[]string{"status"},
		),
		ReviewsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "review_factory_reviews_in_flight",
				Help: "Number of reviews currently being processed",
			},
		),
	}
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) ObserveAttempt(loop string, attempt int, fb domain.CriticFeedback) {
	verdict := "rejected"
	if fb.Approved {
		verdict = "approved"
	}
	m.AttemptsTotal.WithLabelValues(loop, verdict).Inc()
	m.CriticConfidence.WithLabelValues(loop).Observe(fb.Confidence)
}

func (m *Metrics) ObserveExecution(loop string, approved bool, attempts int, duration time.Duration) {
	status := "failed"
	if approved {
		status = "success"
	}
	m.ExecutionsTotal.WithLabelValues(loop, status).Inc()
	m.ExecutionAttempts.WithLabelValues(loop).Observe(float64(attempts))
	m.ExecutionDuration.WithLabelValues(loop).Observe(duration.Seconds())
}

// ObserveRetryBudget для одиночного цикла, worker пустой
func (m *Metrics) ObserveRetryBudget(loop string, maxRetries int) {
	m.RetryBudget.WithLabelValues(loop, "").Set(float64(maxRetries))
}

// ForWorker - наблюдатель для циклов одного воркера пула.
// Циклы стадий у воркеров называются одинаково, бюджеты разводим по метке worker.
func (m *Metrics) ForWorker(worker int) verification.Observer {
	return workerObserver{Metrics: m, worker: strconv.Itoa(worker)}
}

type workerObserver struct {
	*Metrics
	worker string
}

func (w workerObserver) ObserveRetryBudget(loop string, maxRetries int) {
	w.RetryBudget.WithLabelValues(loop, w.worker).Set(float64(maxRetries))
}

func (m *Metrics) RecordLLMRequest(provider, status string, duration time.Duration) {
	m.LLMRequestsTotal.WithLabelValues(provider, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func (m *Metrics) RecordReview(status string) {
	m.ReviewsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) IncReviewsInFlight() {
	m.ReviewsInFlight.Inc()
}

func (m *Metrics) DecReviewsInFlight() {
	m.ReviewsInFlight.Dec()
}

var (
	_ verification.Observer = (*Metrics)(nil)
	_ llm.Recorder          = (*Metrics)(nil)
)
