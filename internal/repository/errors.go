package repository

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("repository: not found")
	// ErrConflict indicates a conditional write lost against a concurrent change.
	ErrConflict = errors.New("repository: conflict")
	// ErrLimitReached indicates a write was refused because a capacity limit is exhausted.
	ErrLimitReached = errors.New("repository: limit reached")
	// ErrCorrupt indicates a stored record could not be decoded.
	ErrCorrupt = errors.New("repository: corrupt record")
)
