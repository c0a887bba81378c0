package store

import (
	"fmt"

	"cinematch/internal/models"
)

var (
	// ErrNotFound is models.ErrNotFound so callers outside the store can
	// match it without importing this package.
	ErrNotFound = models.ErrNotFound
	// ErrNoFit is returned when the catalog has never been built.
	ErrNoFit = fmt.Errorf("%w: no extractor fit recorded, run `catalog build`", models.ErrNotFound)
)
