package repository

import "errors"

// ErrNotFound indicates an entity was not located.
var ErrNotFound = errors.New("repository: not found")

// ErrConflict indicates a uniqueness violation, e.g. a duplicate name or a
// concurrent label collision.
var ErrConflict = errors.New("repository: conflict")
