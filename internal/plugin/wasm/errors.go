package wasm

import "errors"

var (
	// ErrNoGrants is returned when an engine is built without sandbox grants.
	ErrNoGrants = errors.New("sandbox grants are required")

	// ErrNoHost is returned when an engine is built without a host API.
	ErrNoHost = errors.New("host API is required")

	// ErrCompile is returned when a plugin file is not a valid module.
	ErrCompile = errors.New("compile failed")

	// ErrMissingExport is returned when a plugin lacks a required export.
	ErrMissingExport = errors.New("missing export")

	// ErrOutOfBounds is returned when a pointer falls outside guest memory.
	ErrOutOfBounds = errors.New("guest memory access out of bounds")

	// ErrClosed is returned when calling into a closed instance.
	ErrClosed = errors.New("instance is closed")
)
