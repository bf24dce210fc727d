package wasmtest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/dshills/orbit/internal/plugin/abi"
)

// Globals of every Plugin module.
const (
	// GlobalHeap is the bump allocator's next free address.
	GlobalHeap uint32 = 0
	// GlobalCounter is an i32 exposed through the "count" export.
	GlobalCounter uint32 = 1
	// GlobalLast is an i64 exposed through the "last" export, used to keep
	// the packed result of a host call.
	GlobalLast uint32 = 2
)

// Memory layout of every Plugin module.
const (
	metadataOffset = 1024
	stringsOffset  = 2048
	heapStart      = 8192
)

var signatures = map[string]funcType{
	abi.FuncIsOpen:      {results: []ValType{I32}},
	abi.FuncOpen:        {},
	abi.FuncClose:       {},
	abi.FuncToggle:      {},
	abi.FuncGetCommands: {results: []ValType{I64}},
	abi.FuncRunCommand:  {params: []ValType{I32, I32}},
	abi.FuncGetAppData:  {params: []ValType{I32, I32}, results: []ValType{I64}},
	abi.FuncLog:         {params: []ValType{I32, I32, I32}},
}

// Plugin describes a guest that follows the orbit ABI.
//
// The module exports memory, orbit_alloc (a bump allocator), orbit_init
// (runs Init then returns Metadata), orbit_run (runs Run), count (returns
// GlobalCounter) and last (returns GlobalLast).
type Plugin struct {
	// Metadata is the JSON document returned by orbit_init.
	Metadata string
	// Imports lists the host functions imported from the orbit module.
	Imports []string
	// Strings are placed in memory so that Str can reference them.
	Strings []string
	// Init and Run are instruction sequences. They must leave the stack empty.
	Init [][]byte
	Run  [][]byte
}

// Simple returns a plugin with the given id whose run export does nothing.
func Simple(id string) *Plugin {
	return &Plugin{Metadata: fmt.Sprintf(`{"id":%q,"title":%q,"subtitle":"","icon":"","keywords":[]}`, id, id)}
}

// Import returns the function index of an imported host function.
func (p *Plugin) Import(fn string) uint32 {
	for i, name := range p.Imports {
		if name == fn {
			return uint32(i)
		}
	}
	panic(fmt.Sprintf("wasmtest: %s is not imported", fn))
}

// Invoke calls the host function fn after pushing args.
func (p *Plugin) Invoke(fn string, args ...[]byte) []byte {
	return append(bytes.Join(args, nil), Call(p.Import(fn))...)
}

// Str pushes the pointer and length of Strings[i].
func (p *Plugin) Str(i int) []byte {
	ptr := stringsOffset
	for _, s := range p.Strings[:i] {
		ptr += len(s)
	}
	return append(I32Const(int32(ptr)), I32Const(int32(len(p.Strings[i])))...)
}

// Increment adds one to GlobalCounter.
func Increment() []byte {
	return bytes.Join([][]byte{
		GlobalGet(GlobalCounter),
		I32Const(1),
		I32Add(),
		GlobalSet(GlobalCounter),
	}, nil)
}

// Bytes assembles the module.
func (p *Plugin) Bytes() []byte {
	b := NewBuilder()
	for _, fn := range p.Imports {
		sig, ok := signatures[fn]
		if !ok {
			panic(fmt.Sprintf("wasmtest: unknown host function %s", fn))
		}
		b.ImportFunc(abi.HostModule, fn, sig.params, sig.results)
	}

	b.Memory(2)
	b.Global(I32, true, heapStart)
	b.Global(I32, true, 0)
	b.Global(I64, true, 0)

	b.Data(metadataOffset, []byte(p.Metadata))
	if len(p.Strings) > 0 {
		var all []byte
		for _, s := range p.Strings {
			all = append(all, s...)
		}
		b.Data(stringsOffset, all)
	}

	b.Func(abi.ExportAlloc, []ValType{I32}, []ValType{I32},
		GlobalGet(GlobalHeap),
		GlobalGet(GlobalHeap),
		LocalGet(0),
		I32Add(),
		GlobalSet(GlobalHeap),
	)

	init := append(bytes.Join(p.Init, nil), I64Const(int64(abi.Pack(metadataOffset, uint32(len(p.Metadata)))))...)
	b.Func(abi.ExportInit, nil, []ValType{I64}, init)
	b.Func(abi.ExportRun, nil, nil, p.Run...)
	b.Func("count", nil, []ValType{I32}, GlobalGet(GlobalCounter))
	b.Func("last", nil, []ValType{I64}, GlobalGet(GlobalLast))

	return b.Bytes()
}

// Write assembles the module into dir/name and returns the path.
func (p *Plugin) Write(t testing.TB, dir, name string) string {
	t.Helper()
	return WriteFile(t, dir, name, p.Bytes())
}

// WriteFile writes data into dir/name and returns the path.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

// Corrupt returns bytes that are not a WebAssembly module.
func Corrupt() []byte {
	return []byte("this is not wasm")
}
