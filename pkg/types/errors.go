// Package types defines shared types and error values
package types

import "errors"

// Predefined errors
var (
	// ErrNoConsumers indicates a producer was registered against a queue
	// that has no consumer lanes yet
	ErrNoConsumers = errors.New("task queue has no consumer lanes")
)
