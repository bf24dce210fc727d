package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/orbit/internal/config"
	"github.com/dshills/orbit/internal/plugin/abi"
	"github.com/dshills/orbit/internal/plugin/api"
	"github.com/dshills/orbit/internal/plugin/mailbox"
)

// Discover returns the plugin files in dir, sorted by file name. Only
// regular files (or links to them) with the plugin extension are returned.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) != config.PluginExt {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if !entry.Type().IsRegular() {
			info, err := os.Stat(path)
			if err != nil || !info.Mode().IsRegular() {
				continue
			}
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// loadTask is the memoized outcome of loading one plugin file. The outcome
// is written once before done is closed and read-only afterwards.
type loadTask struct {
	path  string
	state atomic.Int32
	done  chan struct{}

	ext *Extension
	err error
}

func newLoadTask(path string) *loadTask {
	return &loadTask{
		path: path,
		done: make(chan struct{}),
	}
}

// State returns the current load state.
func (t *loadTask) State() LoadState {
	return LoadState(t.state.Load())
}

func (t *loadTask) start() bool {
	return t.state.CompareAndSwap(int32(StateNotStarted), int32(StateLoading))
}

func (t *loadTask) resolve(ext *Extension, err error) {
	t.ext, t.err = ext, err
	if err != nil {
		t.state.Store(int32(StateFailed))
	} else {
		t.state.Store(int32(StateReady))
	}
	close(t.done)
}

// wait blocks until the load has an outcome or ctx is done.
func (t *loadTask) wait(ctx context.Context) (*Extension, error) {
	select {
	case <-t.done:
		return t.ext, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// peek returns the outcome without blocking.
func (t *loadTask) peek() (*Extension, error, bool) {
	select {
	case <-t.done:
		return t.ext, t.err, true
	default:
		return nil, nil, false
	}
}

// load runs on the task's own goroutine. On success the goroutine goes on to
// own the instance as the extension's mailbox loop.
func (h *Host) load(t *loadTask) {
	if !t.start() {
		return
	}

	log := h.log.WithField("path", t.path)
	start := time.Now()

	inst, meta, err := h.instantiate(t.path)
	h.metrics.ObserveLoad(time.Since(start), err)
	if err != nil {
		err = &LoadError{Path: t.path, Err: err}
		log.WithError(err).Error("plugin failed to load")
		t.resolve(nil, err)
		return
	}

	var closeOnce sync.Once
	mb := mailbox.New(inst, mailbox.WithOnClose(func(inst Instance) {
		closeOnce.Do(func() {
			if err := inst.Close(context.Background()); err != nil {
				log.WithError(err).Warn("closing plugin instance")
			}
			h.metrics.PluginClosed()
		})
	}))
	ext := newExtension(meta, t.path, mb, h.log, h.metrics)

	log.WithField("plugin", meta.ID).Info("plugin loaded")
	t.resolve(ext, nil)

	mb.Run()
}

func (h *Host) instantiate(path string) (Instance, abi.Metadata, error) {
	ctx := h.ctx
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return nil, abi.Metadata{}, err
	}
	inst, err := h.runtime.Load(ctx, path)
	// Init may wait on other plugins through get_commands, so the slot is
	// given back before it runs.
	h.sem.Release(1)
	if err != nil {
		return nil, abi.Metadata{}, err
	}

	meta, err := inst.Init(api.WithCaller(ctx, api.Caller{Path: path}))
	if err != nil {
		_ = inst.Close(ctx)
		return nil, abi.Metadata{}, fmt.Errorf("init: %w", err)
	}
	return inst, meta, nil
}
