package store

import (
	"errors"
	"strconv"
)

// ErrLocked indicates the store could not accept a write within its busy
// bound. The ingest path reacts by spooling instead of blocking the caller.
var ErrLocked = errors.New("store is locked")

// ErrNotFound is returned when a memory ID doesn't exist in the store.
type ErrNotFound struct {
	ID int64
}

func (e ErrNotFound) Error() string {
	return "memory not found: " + strconv.FormatInt(e.ID, 10)
}

// ErrConflict is returned when an insert collides with an existing ID.
type ErrConflict struct {
	ID int64
}

func (e ErrConflict) Error() string {
	return "memory already exists: " + strconv.FormatInt(e.ID, 10)
}

// IsNotFound reports whether err is an ErrNotFound.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}

// IsLocked reports whether err is (or wraps) ErrLocked.
func IsLocked(err error) bool {
	return errors.Is(err, ErrLocked)
}
