package spaced_repetition

import "errors"

var (
	ErrInvalidQuality = errors.New("spaced_repetition: quality must be between 0 and 5")
	ErrInvalidConfig  = errors.New("spaced_repetition: invalid configuration")
)
