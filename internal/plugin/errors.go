package plugin

import (
	"errors"
	"fmt"
)

// Plugin system errors.
var (
	// ErrCommandNotFound is returned when no loaded plugin has the requested id.
	ErrCommandNotFound = errors.New("command not found")

	// ErrEngineInit is returned when the plugin engine cannot be built.
	ErrEngineInit = errors.New("plugin engine initialization failed")
)

// LoadError records why a plugin file could not be loaded. It is shared by
// every waiter on the load and must not be modified.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading plugin %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// CallError wraps a failure raised while a loaded plugin handled a call.
type CallError struct {
	ID  string
	Err error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("plugin %q: %v", e.ID, e.Err)
}

func (e *CallError) Unwrap() error {
	return e.Err
}
