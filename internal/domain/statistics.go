package domain

// Statistics - накопленные счетчики одного цикла проверки.
// TotalExecutions == SuccessfulExecutions + FailedExecutions всегда.
type Statistics struct {
	TotalExecutions      int
	SuccessfulExecutions int
	FailedExecutions     int
	SuccessRate          float64
}

func NewStatistics(successful, failed int) Statistics {
	s := Statistics{
		TotalExecutions:      successful + failed,
		SuccessfulExecutions: successful,
		FailedExecutions:     failed,
	}
	if s.TotalExecutions > 0 {
		s.SuccessRate = float64(successful) / float64(s.TotalExecutions)
	}
	return s
}

// Merge складывает счетчики, rate пересчитывается
func (s Statistics) Merge(other Statistics) Statistics {
	return NewStatistics(s.SuccessfulExecutions+other.SuccessfulExecutions, s.FailedExecutions+other.FailedExecutions)
}
