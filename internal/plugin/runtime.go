package plugin

import (
	"context"

	"github.com/dshills/orbit/internal/plugin/abi"
	"github.com/dshills/orbit/internal/plugin/wasm"
)

// Runtime creates plugin instances from files.
type Runtime interface {
	Load(ctx context.Context, path string) (Instance, error)
	Close(ctx context.Context) error
}

// Instance is the execution state of one plugin. It is owned by a single
// goroutine for its whole life.
type Instance interface {
	Init(ctx context.Context) (abi.Metadata, error)
	Run(ctx context.Context) error
	Close(ctx context.Context) error
}

// engineRuntime adapts the wasm engine to Runtime.
type engineRuntime struct {
	engine *wasm.Engine
}

func (r engineRuntime) Load(ctx context.Context, path string) (Instance, error) {
	inst, err := r.engine.Load(ctx, path)
	if err != nil {
		return nil, err
	}
	return inst, nil
}

func (r engineRuntime) Close(ctx context.Context) error {
	return r.engine.Close(ctx)
}
