// Package apperr holds the error kinds shared by services and the HTTP layer.
package apperr

import "errors"

var (
	// ErrUnauthorized covers bad credentials, missing users and failed role lookups.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrConflict is returned when a unique resource already exists.
	ErrConflict = errors.New("conflict")
	// ErrInvalidArgument marks missing or malformed input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrStorage wraps upstream read/write failures.
	ErrStorage = errors.New("storage error")
	// ErrForbidden is returned when the caller lacks a required role.
	ErrForbidden = errors.New("forbidden")
)
