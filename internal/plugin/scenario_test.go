package plugin

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/orbit/internal/logging"
	"github.com/dshills/orbit/internal/plugin/abi"
	"github.com/dshills/orbit/internal/plugin/api"
	"github.com/dshills/orbit/internal/plugin/security"
	"github.com/dshills/orbit/internal/plugin/wasm"
	"github.com/dshills/orbit/internal/plugin/wasmtest"
)

// countingUI records window activations. It is only touched on the main
// thread.
type countingUI struct {
	uiState
	activations int
}

func (u *countingUI) Open() {
	if u.open {
		return
	}
	u.open = true
	u.activations++
}

// startWasmHost builds a host over the real engine and drives its main
// thread until the test ends.
func startWasmHost(t *testing.T, dir string, ui api.UI) *Host {
	t.Helper()
	grants, err := security.NewGrants(t.TempDir())
	require.NoError(t, err)

	h, err := NewHost(context.Background(), Options{
		Dir:    dir,
		Grants: grants,
		Logger: logging.Discard(),
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = h.RunMainThread(context.Background(), ui)
	}()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		assert.NoError(t, h.Close(ctx))
		<-done
	})
	return h
}

func wasmCount(t *testing.T, ctx context.Context, ext *Extension) uint32 {
	t.Helper()
	n, err := Call(ctx, ext, func(ctx context.Context, inst Instance) (uint32, error) {
		res, err := inst.(*wasm.Instance).Call(ctx, "count")
		if err != nil {
			return 0, err
		}
		return uint32(res[0]), nil
	})
	require.NoError(t, err)
	return n
}

func TestThreeFileScenario(t *testing.T) {
	dir := t.TempDir()
	wasmtest.Simple("alpha").Write(t, dir, "a.wasm")
	wasmtest.Simple("beta").Write(t, dir, "b.wasm")
	wasmtest.WriteFile(t, dir, "c.wasm", wasmtest.Corrupt())

	h := startWasmHost(t, dir, &uiState{})
	ctx := testContext(t)
	reg := h.Registry()

	assert.Equal(t, []string{"alpha", "beta"}, ids(reg.ListAsync(ctx)))

	meta := reg.ListMetadataAsync(ctx)
	require.Len(t, meta, 2)
	assert.Equal(t, "alpha", meta[0].ID)

	states := reg.States()
	require.Len(t, states, 3)
	assert.Equal(t, StateFailed, states[2].State)
	var loadErr *LoadError
	require.ErrorAs(t, states[2].Err, &loadErr)
	assert.ErrorIs(t, loadErr, wasm.ErrCompile)

	assert.ErrorIs(t, reg.RunAsync(ctx, "gamma"), ErrCommandNotFound)
	assert.NoError(t, reg.RunAsync(ctx, "beta"))
}

func TestTrapIsACallError(t *testing.T) {
	dir := t.TempDir()
	p := wasmtest.Simple("broken")
	p.Run = [][]byte{wasmtest.Unreachable()}
	p.Write(t, dir, "broken.wasm")
	wasmtest.Simple("fine").Write(t, dir, "fine.wasm")

	h := startWasmHost(t, dir, &uiState{})
	ctx := testContext(t)

	err := h.Registry().RunAsync(ctx, "broken")
	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, "broken", callErr.ID)

	// The failing plugin keeps serving calls and others are unaffected.
	assert.Error(t, h.Registry().RunAsync(ctx, "broken"))
	assert.NoError(t, h.Registry().RunAsync(ctx, "fine"))
}

func TestConcurrentRunsOnOneInstance(t *testing.T) {
	dir := t.TempDir()
	p := wasmtest.Simple("counter")
	p.Run = [][]byte{wasmtest.Increment()}
	p.Write(t, dir, "counter.wasm")

	h := startWasmHost(t, dir, &uiState{})
	ctx := testContext(t)

	ext, ok := h.Registry().FindAsync(ctx, "counter")
	require.True(t, ok)

	const k = 64
	var wg sync.WaitGroup
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, ext.Run(ctx))
		}()
	}
	wg.Wait()

	assert.Equal(t, uint32(k), wasmCount(t, ctx, ext))
}

func TestOpenThroughBridgeIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	p := wasmtest.Simple("opener")
	p.Imports = []string{abi.FuncOpen, abi.FuncIsOpen}
	p.Run = [][]byte{
		p.Invoke(abi.FuncOpen),
		p.Invoke(abi.FuncOpen),
		p.Invoke(abi.FuncIsOpen),
		wasmtest.GlobalSet(wasmtest.GlobalCounter),
	}
	p.Write(t, dir, "opener.wasm")

	ui := &countingUI{}
	h := startWasmHost(t, dir, ui)
	ctx := testContext(t)

	require.NoError(t, h.Registry().RunAsync(ctx, "opener"))

	ext, _ := h.Registry().FindAsync(ctx, "opener")
	assert.Equal(t, uint32(1), wasmCount(t, ctx, ext))

	activations, err := OnMainThread(ctx, h, func(c api.Context) int {
		return c.Window.(*countingUI).activations
	})
	require.NoError(t, err)
	assert.Equal(t, 1, activations)
}

func TestGetCommandsFromInit(t *testing.T) {
	dir := t.TempDir()
	wasmtest.Simple("alpha").Write(t, dir, "a.wasm")
	wasmtest.WriteFile(t, dir, "b.wasm", wasmtest.Corrupt())

	p := wasmtest.Simple("lister")
	p.Imports = []string{abi.FuncGetCommands}
	// Listing from init must not wait on the plugin's own load.
	p.Init = [][]byte{
		p.Invoke(abi.FuncGetCommands),
		wasmtest.GlobalSet(wasmtest.GlobalLast),
	}
	p.Write(t, dir, "c.wasm")

	h := startWasmHost(t, dir, &uiState{})
	ctx := testContext(t)

	ext, ok := h.Registry().FindAsync(ctx, "lister")
	require.True(t, ok)

	data, err := Call(ctx, ext, func(ctx context.Context, inst Instance) ([]byte, error) {
		wi := inst.(*wasm.Instance)
		res, err := wi.Call(ctx, "last")
		if err != nil {
			return nil, err
		}
		return wi.Read(res[0])
	})
	require.NoError(t, err)

	list, err := abi.DecodeMetadataList(data)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "alpha", list[0].ID)
}

func TestRunCommandStartsAnotherPlugin(t *testing.T) {
	dir := t.TempDir()
	target := wasmtest.Simple("target")
	target.Run = [][]byte{wasmtest.Increment()}
	target.Write(t, dir, "a.wasm")

	p := wasmtest.Simple("chain")
	p.Imports = []string{abi.FuncRunCommand}
	p.Strings = []string{"target", "nobody"}
	p.Run = [][]byte{
		p.Invoke(abi.FuncRunCommand, p.Str(0)),
		// Unknown ids are logged, not raised to the caller.
		p.Invoke(abi.FuncRunCommand, p.Str(1)),
	}
	p.Write(t, dir, "b.wasm")

	h := startWasmHost(t, dir, &uiState{})
	ctx := testContext(t)

	require.NoError(t, h.Registry().RunAsync(ctx, "chain"))

	ext, ok := h.Registry().FindAsync(ctx, "target")
	require.True(t, ok)
	assert.Eventually(t, func() bool {
		return wasmCount(t, ctx, ext) == 1
	}, 5*time.Second, 10*time.Millisecond)
}
