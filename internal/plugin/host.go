package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"github.com/dshills/orbit/internal/bridge"
	"github.com/dshills/orbit/internal/logging"
	"github.com/dshills/orbit/internal/metrics"
	"github.com/dshills/orbit/internal/plugin/api"
	"github.com/dshills/orbit/internal/plugin/security"
	"github.com/dshills/orbit/internal/plugin/wasm"
)

// DefaultMaxParallelLoads bounds concurrent compilation when unset.
const DefaultMaxParallelLoads = 4

// Options configures a Host.
type Options struct {
	// Dir is the commands directory scanned at startup.
	Dir string

	// MaxParallelLoads bounds how many plugins compile at once.
	MaxParallelLoads int

	// Grants is the sandbox handed to every plugin.
	Grants *security.Grants

	// Apps resolves application paths for get_app_data. May be nil.
	Apps api.AppDataSource

	Logger  logrus.FieldLogger
	Metrics *metrics.Metrics

	// Runtime replaces the wasm engine. Used by tests.
	Runtime Runtime
}

// Host is the extension host. It owns the plugin engine, the registry of
// discovered plugins and the bridge to the main thread.
type Host struct {
	ctx    context.Context
	cancel context.CancelFunc

	runtime  Runtime
	registry *Registry
	bridge   *bridge.Bridge[api.Context]
	surface  *api.Surface
	apps     api.AppDataSource
	sem      *semaphore.Weighted

	log     *logrus.Entry
	metrics *metrics.Metrics
}

// NewHost builds the engine and starts loading every plugin in opts.Dir.
// It returns before any load completes. An error is only returned when the
// engine cannot be built; unreadable directories and broken plugins are
// logged and leave the host with fewer plugins.
func NewHost(ctx context.Context, opts Options) (*Host, error) {
	if opts.MaxParallelLoads <= 0 {
		opts.MaxParallelLoads = DefaultMaxParallelLoads
	}

	hctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h := &Host{
		ctx:     hctx,
		cancel:  cancel,
		bridge:  bridge.New[api.Context](),
		apps:    opts.Apps,
		sem:     semaphore.NewWeighted(int64(opts.MaxParallelLoads)),
		log:     logging.WithComponent(opts.Logger, "plugin"),
		metrics: opts.Metrics,
	}
	h.surface = api.NewSurface(h.bridge, opts.Logger, opts.Metrics)

	h.runtime = opts.Runtime
	if h.runtime == nil {
		if opts.Grants == nil {
			cancel()
			return nil, fmt.Errorf("%w: %w", ErrEngineInit, wasm.ErrNoGrants)
		}
		engine, err := wasm.NewEngine(ctx, wasm.Config{
			Grants: opts.Grants,
			Host:   h.surface,
			Logger: opts.Logger,
		})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("%w: %w", ErrEngineInit, err)
		}
		h.runtime = engineRuntime{engine: engine}
	}

	paths, err := Discover(opts.Dir)
	if err != nil {
		level := logrus.WarnLevel
		if errors.Is(err, os.ErrNotExist) {
			level = logrus.InfoLevel
		}
		h.log.WithError(err).WithField("dir", opts.Dir).Log(level, "cannot read commands directory")
	}

	tasks := make([]*loadTask, len(paths))
	for i, path := range paths {
		tasks[i] = newLoadTask(path)
	}
	h.registry = newRegistry(tasks)

	h.log.WithFields(logrus.Fields{
		"dir":     opts.Dir,
		"plugins": len(tasks),
	}).Debug("loading plugins")

	for _, t := range tasks {
		go h.load(t)
	}
	return h, nil
}

// Registry returns the plugin registry.
func (h *Host) Registry() *Registry {
	return h.registry
}

// Bridge returns the main thread bridge.
func (h *Host) Bridge() *bridge.Bridge[api.Context] {
	return h.bridge
}

// Context returns the main thread state for a driver owning ui.
func (h *Host) Context(ui api.UI) api.Context {
	return api.Context{
		Window:   ui,
		Commands: h.registry,
		Apps:     h.apps,
	}
}

// SetWakeHook is called whenever work is queued for the main thread.
func (h *Host) SetWakeHook(fn func()) {
	h.bridge.SetWakeHook(fn)
}

// PumpMainThread runs queued main thread work on the calling goroutine,
// which must be the goroutine owning ui.
func (h *Host) PumpMainThread(ui api.UI) int {
	return h.bridge.Pump(h.Context(ui))
}

// RunMainThread dedicates the calling goroutine to main thread work until
// ctx is done or the host is closed.
func (h *Host) RunMainThread(ctx context.Context, ui api.UI) error {
	return h.bridge.Run(ctx, h.Context(ui))
}

// OnMainThread runs fn on the main thread and returns its result. Work from
// all goroutines runs in the order it was submitted.
func OnMainThread[T any](ctx context.Context, h *Host, fn func(api.Context) T) (T, error) {
	res, err := bridge.Call(ctx, h.bridge, fn)
	h.metrics.ObserveMainThread(err)
	return res, err
}

// Close stops the host. Loads still in flight are abandoned once their
// current step ends, queued calls are drained and every instance is
// released. Close returns early with ctx's error if ctx is done first.
func (h *Host) Close(ctx context.Context) error {
	h.cancel()

	// Nothing drives the main thread any more; run what is left with no
	// window so waiting plugins are released.
	h.bridge.Close()
	h.bridge.Pump(h.Context(nil))

	if err := h.registry.Wait(ctx); err != nil {
		return err
	}
	for _, ext := range h.registry.List() {
		ext.close()
	}
	for _, ext := range h.registry.List() {
		select {
		case <-ext.done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	runs := make(chan struct{})
	go func() {
		h.surface.Wait()
		close(runs)
	}()
	select {
	case <-runs:
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := h.runtime.Close(ctx); err != nil {
		return fmt.Errorf("closing runtime: %w", err)
	}
	h.log.Debug("host closed")
	return nil
}
