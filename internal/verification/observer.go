package verification

import (
	"time"

	"github.com/kitbuilder587/review-factory/internal/domain"
)

// Observer получает события цикла (метрики). Вызывается синхронно из Execute.
type Observer interface {
	ObserveAttempt(loop string, attempt int, feedback domain.CriticFeedback)
	ObserveExecution(loop string, approved bool, attempts int, duration time.Duration)
	ObserveRetryBudget(loop string, maxRetries int)
}

type nopObserver struct{}

func (nopObserver) ObserveAttempt(string, int, domain.CriticFeedback) {}
func (nopObserver) ObserveExecution(string, bool, int, time.Duration) {}
func (nopObserver) ObserveRetryBudget(string, int) {}

var _ Observer = nopObserver{}
