package main

import (
	"context"

	"github.com/dshills/orbit/internal/plugin"
	"github.com/dshills/orbit/internal/window"
)

// headless runs fn against a host whose main thread is driven by a
// background goroutine with a window that is never drawn.
func (a *app) headless(ctx context.Context, fn func(context.Context, *plugin.Host) error) error {
	h, err := a.newHost(ctx)
	if err != nil {
		return err
	}

	driverCtx, stop := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := h.RunMainThread(driverCtx, &window.State{}); err != nil && driverCtx.Err() == nil {
			a.log.WithError(err).Warn("main thread stopped")
		}
	}()

	err = fn(ctx, h)

	a.closeHost(h)
	stop()
	<-done
	return err
}
