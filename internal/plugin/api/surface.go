package api

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dshills/orbit/internal/bridge"
	"github.com/dshills/orbit/internal/logging"
	"github.com/dshills/orbit/internal/metrics"
	"github.com/dshills/orbit/internal/plugin/abi"
)

// Surface routes plugin host calls to the main thread.
type Surface struct {
	bridge  *bridge.Bridge[Context]
	log     *logrus.Entry
	metrics *metrics.Metrics

	// runs tracks commands started by run_command.
	runs sync.WaitGroup
}

// NewSurface creates a surface over b. logger and m may be nil.
func NewSurface(b *bridge.Bridge[Context], logger logrus.FieldLogger, m *metrics.Metrics) *Surface {
	return &Surface{
		bridge:  b,
		log:     logging.WithComponent(logger, "api"),
		metrics: m,
	}
}

type outcome[T any] struct {
	value T
	err   error
}

// onMainThread runs fn through the bridge and records the host call.
func onMainThread[T any](ctx context.Context, s *Surface, name string, fn func(Context) (T, error)) (T, error) {
	out, err := bridge.Call(ctx, s.bridge, func(c Context) outcome[T] {
		v, err := fn(c)
		return outcome[T]{value: v, err: err}
	})
	s.metrics.ObserveMainThread(err)
	if err == nil {
		err = out.err
	}
	s.metrics.ObserveHostCall(name, err)
	if err != nil {
		s.logEntry(ctx).WithError(err).WithField("function", name).Debug("host call failed")
		var zero T
		return zero, err
	}
	return out.value, nil
}

func (s *Surface) logEntry(ctx context.Context) *logrus.Entry {
	if c, ok := CallerFrom(ctx); ok {
		return s.log.WithFields(logrus.Fields{"plugin": c.ID, "path": c.Path})
	}
	return s.log
}

func window(c Context) (UI, error) {
	if c.Window == nil {
		return nil, ErrNoWindow
	}
	return c.Window, nil
}

// IsOpen reports whether the launcher window is visible.
func (s *Surface) IsOpen(ctx context.Context) (bool, error) {
	return onMainThread(ctx, s, abi.FuncIsOpen, func(c Context) (bool, error) {
		w, err := window(c)
		if err != nil {
			return false, err
		}
		return w.IsOpen(), nil
	})
}

// Open shows the launcher window.
func (s *Surface) Open(ctx context.Context) error {
	_, err := onMainThread(ctx, s, abi.FuncOpen, func(c Context) (struct{}, error) {
		w, err := window(c)
		if err == nil {
			w.Open()
		}
		return struct{}{}, err
	})
	return err
}

// Close hides the launcher window.
func (s *Surface) Close(ctx context.Context) error {
	_, err := onMainThread(ctx, s, abi.FuncClose, func(c Context) (struct{}, error) {
		w, err := window(c)
		if err == nil {
			w.Close()
		}
		return struct{}{}, err
	})
	return err
}

// Toggle flips the launcher window's visibility.
func (s *Surface) Toggle(ctx context.Context) error {
	_, err := onMainThread(ctx, s, abi.FuncToggle, func(c Context) (struct{}, error) {
		w, err := window(c)
		if err == nil {
			w.Toggle()
		}
		return struct{}{}, err
	})
	return err
}

func (s *Surface) commands(ctx context.Context, name string) (Commands, error) {
	return onMainThread(ctx, s, name, func(c Context) (Commands, error) {
		if c.Commands == nil {
			return nil, ErrNoCommands
		}
		return c.Commands, nil
	})
}

// GetCommands returns the metadata of every loaded command. The registry is
// fetched on the main thread and awaited on the calling goroutine.
func (s *Surface) GetCommands(ctx context.Context) ([]abi.Metadata, error) {
	cmds, err := s.commands(ctx, abi.FuncGetCommands)
	if err != nil {
		return nil, err
	}
	return cmds.ListMetadataAsync(ctx), nil
}

// RunCommand starts the command with the given id and returns without
// waiting for it. Failures of the started command are logged.
func (s *Surface) RunCommand(ctx context.Context, id string) error {
	cmds, err := s.commands(ctx, abi.FuncRunCommand)
	if err != nil {
		return err
	}

	log := s.logEntry(ctx).WithField("command", id)
	runCtx := context.WithoutCancel(ctx)
	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		if err := cmds.RunAsync(runCtx, id); err != nil {
			log.WithError(err).Warn("run_command failed")
		}
	}()
	return nil
}

// GetAppData resolves path to application data. It returns nil when path
// is not an application.
func (s *Surface) GetAppData(ctx context.Context, path string) (*abi.AppData, error) {
	return onMainThread(ctx, s, abi.FuncGetAppData, func(c Context) (*abi.AppData, error) {
		if c.Apps == nil {
			return nil, ErrNoApps
		}
		app, ok := c.Apps.AppData(path)
		if !ok {
			return nil, nil
		}
		return &app, nil
	})
}

// Wait blocks until every command started by RunCommand has finished.
func (s *Surface) Wait() {
	s.runs.Wait()
}
