package journal

import "errors"

var (
	// ErrInvalidEntry is returned when an entry lacks required fields.
	ErrInvalidEntry = errors.New("journal: invalid entry")

	// ErrClosed is returned when recording after Close.
	ErrClosed = errors.New("journal: recorder closed")
)
