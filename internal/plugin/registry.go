package plugin

import (
	"context"
	"fmt"

	"github.com/dshills/orbit/internal/plugin/abi"
	"github.com/dshills/orbit/internal/plugin/api"
)

// Registry is the ordered set of plugin loads discovered at startup. Its
// membership never changes after construction.
type Registry struct {
	tasks []*loadTask
}

func newRegistry(tasks []*loadTask) *Registry {
	return &Registry{tasks: tasks}
}

// EntryStatus describes one discovered plugin file.
type EntryStatus struct {
	Path  string
	State LoadState
	// Metadata is set once the plugin is ready.
	Metadata abi.Metadata
	// Err is set once the plugin failed to load.
	Err error
}

// Len returns the number of discovered plugin files.
func (r *Registry) Len() int {
	return len(r.tasks)
}

// List returns the plugins that are already loaded, without waiting.
func (r *Registry) List() []*Extension {
	out := make([]*Extension, 0, len(r.tasks))
	for _, t := range r.tasks {
		if ext, err, ok := t.peek(); ok && err == nil {
			out = append(out, ext)
		}
	}
	return out
}

// skip reports whether t is the still-loading plugin on whose behalf ctx
// runs. Waiting on it from its own init would never return.
func skip(ctx context.Context, t *loadTask) bool {
	c, ok := api.CallerFrom(ctx)
	if !ok || c.Path != t.path {
		return false
	}
	_, _, resolved := t.peek()
	return !resolved
}

// ListAsync waits for every load in discovery order and returns the plugins
// that loaded successfully. If ctx is done first, the plugins collected so
// far are returned.
func (r *Registry) ListAsync(ctx context.Context) []*Extension {
	out := make([]*Extension, 0, len(r.tasks))
	for _, t := range r.tasks {
		if skip(ctx, t) {
			continue
		}
		ext, err := t.wait(ctx)
		if ctx.Err() != nil {
			return out
		}
		if err == nil {
			out = append(out, ext)
		}
	}
	return out
}

// ListMetadataAsync is ListAsync projected to metadata.
func (r *Registry) ListMetadataAsync(ctx context.Context) []abi.Metadata {
	exts := r.ListAsync(ctx)
	out := make([]abi.Metadata, len(exts))
	for i, ext := range exts {
		out[i] = ext.Metadata()
	}
	return out
}

// FindAsync waits for loads in discovery order until one with the given id
// is found. When several plugins share an id the first in discovery order
// wins.
func (r *Registry) FindAsync(ctx context.Context, id string) (*Extension, bool) {
	for _, t := range r.tasks {
		if skip(ctx, t) {
			continue
		}
		ext, err := t.wait(ctx)
		if ctx.Err() != nil {
			return nil, false
		}
		if err == nil && ext.ID() == id {
			return ext, true
		}
	}
	return nil, false
}

// RunAsync runs the command with the given id. It returns an error wrapping
// ErrCommandNotFound when no loaded plugin has that id, and a *CallError
// when the plugin fails.
func (r *Registry) RunAsync(ctx context.Context, id string) error {
	ext, ok := r.FindAsync(ctx, id)
	if !ok {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", ErrCommandNotFound, id)
	}
	return ext.Run(ctx)
}

// Wait blocks until every load has an outcome or ctx is done.
func (r *Registry) Wait(ctx context.Context) error {
	for _, t := range r.tasks {
		if _, err := t.wait(ctx); err != nil && ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// States returns the status of every discovered plugin file in discovery
// order.
func (r *Registry) States() []EntryStatus {
	out := make([]EntryStatus, len(r.tasks))
	for i, t := range r.tasks {
		out[i] = EntryStatus{Path: t.path, State: t.State()}
		if ext, err, ok := t.peek(); ok {
			out[i].State = t.State()
			out[i].Err = err
			if ext != nil {
				out[i].Metadata = ext.Metadata()
			}
		}
	}
	return out
}
