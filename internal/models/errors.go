package models

import (
	"errors"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")

	// ErrConfiguration covers an extractor used before Fit and any parameter
	// outside its valid range (K <= 0, epsilon <= 0, unknown strategy...).
	ErrConfiguration     = errors.New("configuration error")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrEmptyInput        = errors.New("empty input")
	ErrDegenerateVector  = errors.New("degenerate vector")
)
