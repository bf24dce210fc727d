package api

import (
	"context"
	"errors"

	"github.com/dshills/orbit/internal/plugin/abi"
)

var (
	// ErrNoWindow is returned when the main thread has no window to drive.
	ErrNoWindow = errors.New("no window available")

	// ErrNoCommands is returned when the main thread has no command registry.
	ErrNoCommands = errors.New("no command registry available")

	// ErrNoApps is returned when the main thread has no application lookup.
	ErrNoApps = errors.New("no application lookup available")
)

// UI is the launcher window as seen by plugins. Implementations are only
// touched on the main thread.
type UI interface {
	IsOpen() bool
	// Open activates the window if it is hidden. Opening an open window
	// does nothing.
	Open()
	Close()
	Toggle()
}

// Commands is the command registry as seen by plugins.
type Commands interface {
	// ListMetadataAsync waits for every load and returns the metadata of
	// the ones that succeeded, in discovery order.
	ListMetadataAsync(ctx context.Context) []abi.Metadata
	// RunAsync runs the command with the given id.
	RunAsync(ctx context.Context, id string) error
}

// AppDataSource resolves application paths to app data.
type AppDataSource interface {
	AppData(path string) (abi.AppData, bool)
}

// Context is the main thread state reachable from plugins.
type Context struct {
	Window   UI
	Commands Commands
	Apps     AppDataSource
}

// Caller identifies the plugin on whose behalf a call runs.
type Caller struct {
	ID   string
	Path string
}

type callerKey struct{}

// WithCaller tags ctx with the plugin making the call.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom returns the plugin tagged on ctx.
func CallerFrom(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}
