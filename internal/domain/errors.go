package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness conflict.
	ErrAlreadyExists = errors.New("already exists")
	// ErrUnavailable indicates a transient store/network failure; the
	// same operation is safe to retry.
	ErrUnavailable = errors.New("temporarily unavailable")
)
