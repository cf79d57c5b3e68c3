package answer

import "errors"

var (
	// ErrDependency is returned when the generation provider fails. The
	// answer cannot be produced without it, unlike translation or speech
	// which degrade gracefully.
	ErrDependency = errors.New("upstream dependency failed")

	// ErrNoGrounding is returned when a request carries no usable
	// grounding context.
	ErrNoGrounding = errors.New("no grounding context available")
)
