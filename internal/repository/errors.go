package repository

import "errors"

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a conditional write lost a race with a
	// concurrent writer.
	ErrConflict = errors.New("concurrent update conflict")
)
