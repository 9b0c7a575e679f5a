package core

import "errors"

// Failure taxonomy. Every operation-level error wraps exactly one of
// these so the boundary can map it to a status without inspecting
// messages.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
)
