package domain

import (
	"math"
	"strings"
)

// CriticFeedback - вердикт критика по одной попытке
type CriticFeedback struct {
	Approved   bool
	Reasoning  string
	Suggestion string  // обычно пустая если approved
	Confidence float64 // 0.0-1.0
}

func NewCriticFeedback(approved bool, reasoning, suggestion string, confidence float64) (CriticFeedback, error) {
	fb := CriticFeedback{
		Approved:   approved,
		Reasoning:  reasoning,
		Suggestion: suggestion,
		Confidence: confidence,
	}
	if err := fb.Validate(); err != nil {
		return CriticFeedback{}, err
	}
	return fb, nil
}

// Validate не клампит confidence, значение вне диапазона - ошибка
func (f CriticFeedback) Validate() error {
	if math.IsNaN(f.Confidence) || f.Confidence < 0 || f.Confidence > 1 {
		return ErrInvalidConfidence
	}
	if strings.TrimSpace(f.Reasoning) == "" {
		return ErrEmptyReasoning
	}
	return nil
}

func (f CriticFeedback) HasSuggestion() bool {
	return strings.TrimSpace(f.Suggestion) != ""
}
