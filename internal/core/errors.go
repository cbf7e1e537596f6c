package core

import "errors"

var (
	// ErrNotFound is returned when the referenced node does not exist.
	ErrNotFound = errors.New("node not found")
	// ErrConflict is returned when an operation would collide with an
	// existing node ID.
	ErrConflict = errors.New("node id already exists")
)
