package wasm

import (
	"context"
	"fmt"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/dshills/orbit/internal/plugin/abi"
)

// Instance is one instantiated plugin. It must only be used from a single
// goroutine at a time.
type Instance struct {
	path     string
	module   api.Module
	compiled wazero.CompiledModule
	closers  []func() error

	init api.Function
	run  api.Function

	closeOnce sync.Once
	closed    bool
}

func (i *Instance) bind() error {
	if i.module.Memory() == nil {
		return fmt.Errorf("%w: %s", ErrMissingExport, abi.ExportMemory)
	}
	if i.module.ExportedFunction(abi.ExportAlloc) == nil {
		return fmt.Errorf("%w: %s", ErrMissingExport, abi.ExportAlloc)
	}
	if i.init = i.module.ExportedFunction(abi.ExportInit); i.init == nil {
		return fmt.Errorf("%w: %s", ErrMissingExport, abi.ExportInit)
	}
	if i.run = i.module.ExportedFunction(abi.ExportRun); i.run == nil {
		return fmt.Errorf("%w: %s", ErrMissingExport, abi.ExportRun)
	}
	return nil
}

// Path returns the file the instance was loaded from.
func (i *Instance) Path() string {
	return i.path
}

// Init calls the guest init export and decodes its metadata.
func (i *Instance) Init(ctx context.Context) (abi.Metadata, error) {
	res, err := i.Call(ctx, abi.ExportInit)
	if err != nil {
		return abi.Metadata{}, err
	}
	if len(res) != 1 {
		return abi.Metadata{}, fmt.Errorf("%s returned %d values", abi.ExportInit, len(res))
	}
	data, err := i.Read(res[0])
	if err != nil {
		return abi.Metadata{}, err
	}
	return abi.DecodeMetadata(data)
}

// Run calls the guest run export.
func (i *Instance) Run(ctx context.Context) error {
	_, err := i.Call(ctx, abi.ExportRun)
	return err
}

// Call invokes any exported function by name.
func (i *Instance) Call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	if i.closed {
		return nil, ErrClosed
	}
	fn := i.module.ExportedFunction(name)
	if fn == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingExport, name)
	}
	res, err := fn.Call(ctx, params...)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", name, err)
	}
	return res, nil
}

// Read copies the packed region out of guest memory.
func (i *Instance) Read(packed uint64) ([]byte, error) {
	if i.closed {
		return nil, ErrClosed
	}
	ptr, length := abi.Unpack(packed)
	return readGuest(i.module, ptr, length)
}

// Close releases the instance. It is safe to call more than once.
func (i *Instance) Close(ctx context.Context) error {
	var err error
	i.closeOnce.Do(func() {
		i.closed = true
		err = i.module.Close(ctx)
		if cerr := i.compiled.Close(ctx); err == nil {
			err = cerr
		}
		for _, c := range i.closers {
			_ = c()
		}
	})
	return err
}
