package domain

import (
	"strings"
)

const MaxReviewLength = 4000

// Review - сырой пользовательский отзыв на входе фабрики
type Review struct {
	ID   string
	Text string
}

func (r *Review) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return ErrEmptyReview
	}
	return nil
}

// Sanitize режет по рунам, отзывы бывают не только латиницей
func (r *Review) Sanitize() {
	r.Text = strings.TrimSpace(r.Text)
	if runes := []rune(r.Text); len(runes) > MaxReviewLength {
		r.Text = string(runes[:MaxReviewLength])
	}
}

// KnowledgeNode - результат прогона отзыва через все стадии
type KnowledgeNode struct {
	ReviewID string        `json:"review_id"`
	Cleaned  string        `json:"cleaned"`
	Decoded  string        `json:"decoded"`
	Weight   string        `json:"weight"`
	Summary  string        `json:"summary"`
	Stages   []StageReport `json:"stages"`
	Verified bool          `json:"verified"` // все стадии одобрены критиком
}

type StageReport struct {
	Stage      string  `json:"stage"`
	Approved   bool    `json:"approved"`
	Attempts   int     `json:"attempts"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
	Suggestion string  `json:"suggestion,omitempty"`
}
