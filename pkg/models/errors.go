package models

import "errors"

// Recoverable fetch-layer errors. Callers requeue the item and try again later.
var (
	ErrNoProxyAvailable = errors.New("no proxy available")
	ErrProxyBanned      = errors.New("proxy banned")
	ErrRateLimited      = errors.New("rate limited")
)

// Non-fatal pipeline outcomes. They signal "no actionable result" for a single
// item and never abort batch processing.
var (
	ErrNoMatch          = errors.New("no match found")
	ErrLowConfidence    = errors.New("confidence below minimum")
	ErrInsufficientData = errors.New("insufficient price history")
	ErrInvalidInput     = errors.New("invalid input data")
)
