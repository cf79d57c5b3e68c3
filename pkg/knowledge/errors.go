package knowledge

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyContent is returned when an artifact yields no usable context
	ErrEmptyContent = errors.New("artifact yields no usable content")

	// ErrNoHeader is returned when a tabular artifact has no header row.
	// A table without a header carries no usable structure either.
	ErrNoHeader = fmt.Errorf("%w: tabular artifact has no header row", ErrEmptyContent)

	// ErrIndexClosed is returned when searching a destroyed chunk index
	ErrIndexClosed = errors.New("chunk index is closed")
)
