package domain

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestReview_Validate(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		wantErr error
	}{
		{"normal", "good phone", nil},
		{"empty", "", ErrEmptyReview},
		{"whitespace", " \n\t ", ErrEmptyReview},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Review{ID: "1", Text: tt.text}
			if err := r.Validate(); !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestReview_Sanitize(t *testing.T) {
	r := Review{Text: "  отличный телефон  "}
	r.Sanitize()
	if r.Text != "отличный телефон" {
		t.Errorf("Sanitize() = %q", r.Text)
	}

	long := Review{Text: strings.Repeat("ж", MaxReviewLength+10)}
	long.Sanitize()
	if n := utf8.RuneCountInString(long.Text); n != MaxReviewLength {
		t.Errorf("Sanitize() rune count = %d, want %d", n, MaxReviewLength)
	}
	if !utf8.ValidString(long.Text) {
		t.Error("Sanitize() produced invalid UTF-8")
	}
}
