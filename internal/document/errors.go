package document

import "errors"

var (
	// ErrOutOfBounds is returned when a position or range falls outside
	// the document.
	ErrOutOfBounds = errors.New("document: position out of bounds")

	// ErrUnknownMarkType is returned when a mark's type was never
	// registered.
	ErrUnknownMarkType = errors.New("document: unknown mark type")

	// ErrInvalidMove is returned when a move destination lies inside the
	// moved span.
	ErrInvalidMove = errors.New("document: move destination inside source")
)
