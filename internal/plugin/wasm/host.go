package wasm

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero/api"

	"github.com/dshills/orbit/internal/plugin/abi"
)

// Guest log levels.
const (
	LogError = iota
	LogWarn
	LogInfo
	LogDebug
	LogTrace
)

func (e *Engine) instantiateHostModule(ctx context.Context) error {
	_, err := e.runtime.NewHostModuleBuilder(abi.HostModule).
		NewFunctionBuilder().WithFunc(e.isOpen).Export(abi.FuncIsOpen).
		NewFunctionBuilder().WithFunc(e.open).Export(abi.FuncOpen).
		NewFunctionBuilder().WithFunc(e.close).Export(abi.FuncClose).
		NewFunctionBuilder().WithFunc(e.toggle).Export(abi.FuncToggle).
		NewFunctionBuilder().WithFunc(e.getCommands).Export(abi.FuncGetCommands).
		NewFunctionBuilder().WithFunc(e.runCommand).Export(abi.FuncRunCommand).
		NewFunctionBuilder().WithFunc(e.getAppData).Export(abi.FuncGetAppData).
		NewFunctionBuilder().WithFunc(e.guestLog).Export(abi.FuncLog).
		Instantiate(ctx)
	return err
}

// Host function failures abort the guest call; wazero turns the panic into
// an error returned from the export the host was calling.
func check(fn string, err error) {
	if err != nil {
		panic(fmt.Errorf("host function %s: %w", fn, err))
	}
}

func (e *Engine) isOpen(ctx context.Context) uint32 {
	open, err := e.host.IsOpen(ctx)
	check(abi.FuncIsOpen, err)
	if open {
		return 1
	}
	return 0
}

func (e *Engine) open(ctx context.Context) {
	check(abi.FuncOpen, e.host.Open(ctx))
}

func (e *Engine) close(ctx context.Context) {
	check(abi.FuncClose, e.host.Close(ctx))
}

func (e *Engine) toggle(ctx context.Context) {
	check(abi.FuncToggle, e.host.Toggle(ctx))
}

func (e *Engine) getCommands(ctx context.Context, m api.Module) uint64 {
	list, err := e.host.GetCommands(ctx)
	check(abi.FuncGetCommands, err)

	data, err := abi.EncodeMetadataList(list)
	check(abi.FuncGetCommands, err)

	packed, err := writeGuest(ctx, m, data)
	check(abi.FuncGetCommands, err)
	return packed
}

func (e *Engine) runCommand(ctx context.Context, m api.Module, ptr, length uint32) {
	id, err := readGuest(m, ptr, length)
	check(abi.FuncRunCommand, err)
	check(abi.FuncRunCommand, e.host.RunCommand(ctx, string(id)))
}

func (e *Engine) getAppData(ctx context.Context, m api.Module, ptr, length uint32) uint64 {
	path, err := readGuest(m, ptr, length)
	check(abi.FuncGetAppData, err)

	app, err := e.host.GetAppData(ctx, string(path))
	check(abi.FuncGetAppData, err)
	if app == nil {
		return 0
	}

	data, err := abi.EncodeAppData(*app)
	check(abi.FuncGetAppData, err)

	packed, err := writeGuest(ctx, m, data)
	check(abi.FuncGetAppData, err)
	return packed
}

func (e *Engine) guestLog(ctx context.Context, m api.Module, level, ptr, length uint32) {
	msg, err := readGuest(m, ptr, length)
	check(abi.FuncLog, err)

	entry := e.log.WithField("module", m.Name())
	switch level {
	case LogError:
		entry.Error(string(msg))
	case LogWarn:
		entry.Warn(string(msg))
	case LogInfo:
		entry.Info(string(msg))
	case LogDebug:
		entry.Debug(string(msg))
	default:
		entry.Log(logrus.TraceLevel, string(msg))
	}
}

// readGuest copies length bytes at ptr out of guest memory.
func readGuest(m api.Module, ptr, length uint32) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	mem := m.Memory()
	if mem == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingExport, abi.ExportMemory)
	}
	view, ok := mem.Read(ptr, length)
	if !ok {
		return nil, fmt.Errorf("%w: %d bytes at %#x", ErrOutOfBounds, length, ptr)
	}
	out := make([]byte, len(view))
	copy(out, view)
	return out, nil
}

// writeGuest allocates guest memory through orbit_alloc, copies data in and
// returns the packed location. Empty data packs to zero.
func writeGuest(ctx context.Context, m api.Module, data []byte) (uint64, error) {
	if len(data) == 0 {
		return 0, nil
	}
	alloc := m.ExportedFunction(abi.ExportAlloc)
	if alloc == nil {
		return 0, fmt.Errorf("%w: %s", ErrMissingExport, abi.ExportAlloc)
	}
	res, err := alloc.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("calling %s: %w", abi.ExportAlloc, err)
	}
	if len(res) != 1 {
		return 0, fmt.Errorf("%s returned %d values", abi.ExportAlloc, len(res))
	}
	ptr := uint32(res[0])
	if !m.Memory().Write(ptr, data) {
		return 0, fmt.Errorf("%w: %d bytes at %#x", ErrOutOfBounds, len(data), ptr)
	}
	return abi.Pack(ptr, uint32(len(data))), nil
}
