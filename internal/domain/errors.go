package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfiguration = errors.New("invalid configuration")
	ErrContractViolation    = errors.New("critic contract violation")
)

var (
	ErrInvalidMaxRetries = fmt.Errorf("%w: max retries must be non-negative", ErrInvalidConfiguration)
	ErrInvalidStrictness = fmt.Errorf("%w: strictness level must be between 0.0 and 1.0", ErrInvalidConfiguration)
)

var (
	ErrInvalidWindow      = fmt.Errorf("%w: adaptation window must be positive", ErrInvalidConfiguration)
	ErrInvalidRetryBounds = fmt.Errorf("%w: retry bounds must satisfy 0 <= min <= max_retries <= max", ErrInvalidConfiguration)
	ErrInvalidThresholds  = fmt.Errorf("%w: adaptation thresholds must satisfy 0 <= raise_below <= lower_above <= 1", ErrInvalidConfiguration)
	ErrInvalidStep        = fmt.Errorf("%w: adaptation step must be positive", ErrInvalidConfiguration)
)

var (
	ErrInvalidConfidence = errors.New("confidence score must be between 0.0 and 1.0")
	ErrEmptyReasoning    = errors.New("empty reasoning")
)

var (
	ErrEmptyReview = errors.New("empty review")
)
