package plugin

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dshills/orbit/internal/metrics"
	"github.com/dshills/orbit/internal/plugin/abi"
	"github.com/dshills/orbit/internal/plugin/api"
	"github.com/dshills/orbit/internal/plugin/mailbox"
)

// Extension is a loaded plugin. It holds the plugin's metadata and the send
// side of its mailbox; the instance itself stays with the mailbox goroutine.
//
// Extension is safe for concurrent use. Calls are executed one at a time in
// the order they were sent.
type Extension struct {
	meta    abi.Metadata
	path    string
	mailbox *mailbox.Mailbox[Instance]
	log     *logrus.Entry
	metrics *metrics.Metrics
}

func newExtension(meta abi.Metadata, path string, mb *mailbox.Mailbox[Instance], log *logrus.Entry, m *metrics.Metrics) *Extension {
	return &Extension{
		meta:    meta,
		path:    path,
		mailbox: mb,
		log:     log.WithFields(logrus.Fields{"plugin": meta.ID, "path": path}),
		metrics: m,
	}
}

// Metadata returns the metadata reported by the plugin's init.
func (e *Extension) Metadata() abi.Metadata {
	return e.meta
}

// ID returns the command id.
func (e *Extension) ID() string {
	return e.meta.ID
}

// Path returns the file the plugin was loaded from.
func (e *Extension) Path() string {
	return e.path
}

// Pending returns the number of calls waiting in the mailbox.
func (e *Extension) Pending() int {
	return e.mailbox.Len()
}

// Run executes the command. Failures raised by the plugin are returned as
// *CallError.
func (e *Extension) Run(ctx context.Context) error {
	_, err := Call(ctx, e, func(ctx context.Context, inst Instance) (struct{}, error) {
		return struct{}{}, inst.Run(ctx)
	})
	return err
}

func (e *Extension) close() {
	e.mailbox.Close()
}

func (e *Extension) done() <-chan struct{} {
	return e.mailbox.Done()
}

// Call sends fn to the extension's mailbox and waits for its result. fn runs
// on the goroutine that owns the instance and is never run concurrently with
// another call on the same extension. If ctx is done before fn completes,
// Call returns and fn still runs to completion.
func Call[T any](ctx context.Context, e *Extension, fn func(context.Context, Instance) (T, error)) (T, error) {
	id := uuid.NewString()
	log := e.log.WithField("call_id", id)
	ctx = api.WithCaller(ctx, api.Caller{ID: e.meta.ID, Path: e.path})

	res, err := mailbox.Call(ctx, e.mailbox, func(ctx context.Context, inst Instance) (T, error) {
		start := time.Now()
		v, err := fn(ctx, inst)
		e.metrics.ObserveCall(e.meta.ID, time.Since(start), err)
		log.WithField("duration", time.Since(start)).Trace("call finished")
		return v, err
	})
	if err != nil {
		log.WithError(err).Debug("call failed")
		var zero T
		return zero, &CallError{ID: e.meta.ID, Err: err}
	}
	return res, nil
}
