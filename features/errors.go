package features

import "errors"

var (
	// ErrShape reports array dimensions that disagree with a declared layout.
	ErrShape = errors.New("shape mismatch")

	// ErrLayoutMismatch reports stream widths that do not sum to the vector width.
	ErrLayoutMismatch = errors.New("stream layout does not match vector width")
)
