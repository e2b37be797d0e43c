// Package apperr defines sentinel errors shared across the engine.
package apperr

import "errors"

var (
	// ErrNotFound indicates a named item, catalog, or manifest could not
	// be resolved.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a request contradicts something already
	// accepted into the plan (install vs. removal of the same name).
	ErrConflict = errors.New("conflict")
	// ErrNotModified indicates a conditional fetch found the cached copy
	// still current. Callers keep using their cache.
	ErrNotModified = errors.New("not modified")
	// ErrStopRequested indicates the cooperative stop flag was raised and
	// the current pass unwound early.
	ErrStopRequested = errors.New("stop requested")
)
