package api

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/orbit/internal/bridge"
	"github.com/dshills/orbit/internal/logging"
	"github.com/dshills/orbit/internal/plugin/abi"
)

type fakeWindow struct {
	open        bool
	activations int
}

func (w *fakeWindow) IsOpen() bool { return w.open }

func (w *fakeWindow) Open() {
	if w.open {
		return
	}
	w.open = true
	w.activations++
}

func (w *fakeWindow) Close()  { w.open = false }
func (w *fakeWindow) Toggle() { w.open = !w.open }

type fakeCommands struct {
	list   func(ctx context.Context) []abi.Metadata
	run    func(ctx context.Context, id string) error
	mu     sync.Mutex
	ranIDs []string
}

func (c *fakeCommands) ListMetadataAsync(ctx context.Context) []abi.Metadata {
	return c.list(ctx)
}

func (c *fakeCommands) RunAsync(ctx context.Context, id string) error {
	c.mu.Lock()
	c.ranIDs = append(c.ranIDs, id)
	c.mu.Unlock()
	if c.run != nil {
		return c.run(ctx, id)
	}
	return nil
}

type fakeApps map[string]abi.AppData

func (a fakeApps) AppData(path string) (abi.AppData, bool) {
	app, ok := a[path]
	return app, ok
}

func setup(t *testing.T, c Context) (*Surface, *bridge.Bridge[Context]) {
	t.Helper()
	b := bridge.New[Context]()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = b.Run(ctx, c)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return NewSurface(b, logging.Discard(), nil), b
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestOpenIsIdempotent(t *testing.T) {
	w := &fakeWindow{}
	s, _ := setup(t, Context{Window: w})
	ctx := testContext(t)

	require.NoError(t, s.Open(ctx))
	require.NoError(t, s.Open(ctx))

	open, err := s.IsOpen(ctx)
	require.NoError(t, err)
	assert.True(t, open)
	assert.Equal(t, 1, w.activations)
}

func TestToggleAndClose(t *testing.T) {
	s, _ := setup(t, Context{Window: &fakeWindow{}})
	ctx := testContext(t)

	require.NoError(t, s.Toggle(ctx))
	open, err := s.IsOpen(ctx)
	require.NoError(t, err)
	assert.True(t, open)

	require.NoError(t, s.Close(ctx))
	open, err = s.IsOpen(ctx)
	require.NoError(t, err)
	assert.False(t, open)
}

func TestMissingWindow(t *testing.T) {
	s, _ := setup(t, Context{})
	ctx := testContext(t)

	_, err := s.IsOpen(ctx)
	assert.ErrorIs(t, err, ErrNoWindow)
	assert.ErrorIs(t, s.Toggle(ctx), ErrNoWindow)
}

func TestGetCommandsDoesNotBlockMainThread(t *testing.T) {
	var s *Surface
	cmds := &fakeCommands{}
	// Listing goes through the bridge again; this only completes when the
	// listing runs off the main thread.
	cmds.list = func(ctx context.Context) []abi.Metadata {
		_, err := s.IsOpen(ctx)
		require.NoError(t, err)
		return []abi.Metadata{{ID: "alpha"}, {ID: "beta"}}
	}
	s, _ = setup(t, Context{Window: &fakeWindow{}, Commands: cmds})

	list, err := s.GetCommands(testContext(t))
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].ID)
	assert.Equal(t, "beta", list[1].ID)
}

func TestGetCommandsSeesCaller(t *testing.T) {
	var seen Caller
	cmds := &fakeCommands{list: func(ctx context.Context) []abi.Metadata {
		seen, _ = CallerFrom(ctx)
		return nil
	}}
	s, _ := setup(t, Context{Commands: cmds})

	ctx := WithCaller(testContext(t), Caller{ID: "alpha", Path: "/cmds/alpha.wasm"})
	_, err := s.GetCommands(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/cmds/alpha.wasm", seen.Path)
}

func TestRunCommandDoesNotWait(t *testing.T) {
	release := make(chan struct{})
	cmds := &fakeCommands{run: func(context.Context, string) error {
		<-release
		return errors.New("command failed")
	}}
	s, _ := setup(t, Context{Commands: cmds})

	// Returns while the started command is still blocked, and its error is
	// not reported to the caller.
	require.NoError(t, s.RunCommand(testContext(t), "beta"))
	close(release)
	s.Wait()

	assert.Equal(t, []string{"beta"}, cmds.ranIDs)
}

func TestRunCommandOutlivesCaller(t *testing.T) {
	started := make(chan error, 1)
	cmds := &fakeCommands{run: func(ctx context.Context, _ string) error {
		started <- ctx.Err()
		return nil
	}}
	s, _ := setup(t, Context{Commands: cmds})

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.RunCommand(ctx, "beta"))
	cancel()
	s.Wait()

	assert.NoError(t, <-started)
}

func TestMissingCommands(t *testing.T) {
	s, _ := setup(t, Context{})
	ctx := testContext(t)

	_, err := s.GetCommands(ctx)
	assert.ErrorIs(t, err, ErrNoCommands)
	assert.ErrorIs(t, s.RunCommand(ctx, "x"), ErrNoCommands)
}

func TestGetAppData(t *testing.T) {
	apps := fakeApps{"/usr/share/applications/editor.desktop": {Name: "Editor", Tag: "Application"}}
	s, _ := setup(t, Context{Apps: apps})
	ctx := testContext(t)

	app, err := s.GetAppData(ctx, "/usr/share/applications/editor.desktop")
	require.NoError(t, err)
	require.NotNil(t, app)
	assert.Equal(t, "Editor", app.Name)

	app, err = s.GetAppData(ctx, "/nope")
	require.NoError(t, err)
	assert.Nil(t, app)
}

func TestClosedBridge(t *testing.T) {
	s, b := setup(t, Context{Window: &fakeWindow{}})
	b.Close()

	assert.ErrorIs(t, s.Open(testContext(t)), bridge.ErrClosed)
}
