// Package wasmtest assembles small WebAssembly modules for tests.
//
// Builder writes the binary format directly so tests can exercise the
// engine without a guest toolchain. Plugin layers the orbit guest ABI on top
// of it.
package wasmtest

import (
	"bytes"
	"fmt"
)

// ValType is a WebAssembly value type.
type ValType byte

// Value types.
const (
	I32 ValType = 0x7f
	I64 ValType = 0x7e
)

// Opcodes used by the instruction helpers.
const (
	opUnreachable = 0x00
	opEnd         = 0x0b
	opCall        = 0x10
	opDrop        = 0x1a
	opLocalGet    = 0x20
	opGlobalGet   = 0x23
	opGlobalSet   = 0x24
	opI32Const    = 0x41
	opI64Const    = 0x42
	opI32Add      = 0x6a
)

// Section ids.
const (
	secType     = 1
	secImport   = 2
	secFunction = 3
	secMemory   = 5
	secGlobal   = 6
	secExport   = 7
	secCode     = 10
	secData     = 11
)

// Export kinds.
const (
	exportFunc   = 0x00
	exportMemory = 0x02
)

type funcType struct {
	params  []ValType
	results []ValType
}

func (t funcType) key() string {
	return fmt.Sprintf("%v->%v", t.params, t.results)
}

type importFunc struct {
	module, name string
	typeIdx      uint32
}

type function struct {
	export  string
	typeIdx uint32
	body    []byte
}

type global struct {
	typ     ValType
	mutable bool
	init    int64
}

type segment struct {
	offset uint32
	data   []byte
}

// Builder accumulates the pieces of one module. Imports must be declared
// before any function is defined, since imported functions take the lowest
// indices.
type Builder struct {
	types     []funcType
	typeIndex map[string]uint32
	imports   []importFunc
	funcs     []function
	memory    *uint32
	globals   []global
	data      []segment
}

// NewBuilder returns an empty module builder.
func NewBuilder() *Builder {
	return &Builder{typeIndex: make(map[string]uint32)}
}

func (b *Builder) typeOf(params, results []ValType) uint32 {
	t := funcType{params: params, results: results}
	if idx, ok := b.typeIndex[t.key()]; ok {
		return idx
	}
	idx := uint32(len(b.types))
	b.types = append(b.types, t)
	b.typeIndex[t.key()] = idx
	return idx
}

// ImportFunc declares an imported function and returns its index.
func (b *Builder) ImportFunc(module, name string, params, results []ValType) uint32 {
	if len(b.funcs) > 0 {
		panic("wasmtest: imports must be declared before functions")
	}
	b.imports = append(b.imports, importFunc{
		module:  module,
		name:    name,
		typeIdx: b.typeOf(params, results),
	})
	return uint32(len(b.imports) - 1)
}

// Func defines a function and returns its index. An empty export name keeps
// it private. The body must not include the trailing end opcode.
func (b *Builder) Func(export string, params, results []ValType, body ...[]byte) uint32 {
	b.funcs = append(b.funcs, function{
		export:  export,
		typeIdx: b.typeOf(params, results),
		body:    bytes.Join(body, nil),
	})
	return uint32(len(b.imports) + len(b.funcs) - 1)
}

// Memory declares a linear memory exported as "memory".
func (b *Builder) Memory(minPages uint32) {
	b.memory = &minPages
}

// Global declares a global and returns its index.
func (b *Builder) Global(typ ValType, mutable bool, init int64) uint32 {
	b.globals = append(b.globals, global{typ: typ, mutable: mutable, init: init})
	return uint32(len(b.globals) - 1)
}

// Data places data at offset in memory 0.
func (b *Builder) Data(offset uint32, data []byte) {
	b.data = append(b.data, segment{offset: offset, data: data})
}

// Bytes encodes the module.
func (b *Builder) Bytes() []byte {
	var out bytes.Buffer
	out.Write([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})

	var sec []byte

	sec = uleb(uint64(len(b.types)))
	for _, t := range b.types {
		sec = append(sec, 0x60)
		sec = append(sec, valTypes(t.params)...)
		sec = append(sec, valTypes(t.results)...)
	}
	writeSection(&out, secType, sec)

	if len(b.imports) > 0 {
		sec = uleb(uint64(len(b.imports)))
		for _, imp := range b.imports {
			sec = append(sec, name(imp.module)...)
			sec = append(sec, name(imp.name)...)
			sec = append(sec, exportFunc)
			sec = append(sec, uleb(uint64(imp.typeIdx))...)
		}
		writeSection(&out, secImport, sec)
	}

	sec = uleb(uint64(len(b.funcs)))
	for _, f := range b.funcs {
		sec = append(sec, uleb(uint64(f.typeIdx))...)
	}
	writeSection(&out, secFunction, sec)

	if b.memory != nil {
		sec = []byte{0x01, 0x00}
		sec = append(sec, uleb(uint64(*b.memory))...)
		writeSection(&out, secMemory, sec)
	}

	if len(b.globals) > 0 {
		sec = uleb(uint64(len(b.globals)))
		for _, g := range b.globals {
			sec = append(sec, byte(g.typ))
			if g.mutable {
				sec = append(sec, 0x01)
			} else {
				sec = append(sec, 0x00)
			}
			if g.typ == I64 {
				sec = append(sec, I64Const(g.init)...)
			} else {
				sec = append(sec, I32Const(int32(g.init))...)
			}
			sec = append(sec, opEnd)
		}
		writeSection(&out, secGlobal, sec)
	}

	var exports [][]byte
	if b.memory != nil {
		e := name("memory")
		e = append(e, exportMemory, 0x00)
		exports = append(exports, e)
	}
	for i, f := range b.funcs {
		if f.export == "" {
			continue
		}
		e := name(f.export)
		e = append(e, exportFunc)
		e = append(e, uleb(uint64(len(b.imports)+i))...)
		exports = append(exports, e)
	}
	sec = uleb(uint64(len(exports)))
	for _, e := range exports {
		sec = append(sec, e...)
	}
	writeSection(&out, secExport, sec)

	sec = uleb(uint64(len(b.funcs)))
	for _, f := range b.funcs {
		// No locals beyond the parameters.
		code := []byte{0x00}
		code = append(code, f.body...)
		code = append(code, opEnd)
		sec = append(sec, uleb(uint64(len(code)))...)
		sec = append(sec, code...)
	}
	writeSection(&out, secCode, sec)

	if len(b.data) > 0 {
		sec = uleb(uint64(len(b.data)))
		for _, d := range b.data {
			sec = append(sec, 0x00)
			sec = append(sec, I32Const(int32(d.offset))...)
			sec = append(sec, opEnd)
			sec = append(sec, uleb(uint64(len(d.data)))...)
			sec = append(sec, d.data...)
		}
		writeSection(&out, secData, sec)
	}

	return out.Bytes()
}

func writeSection(out *bytes.Buffer, id byte, contents []byte) {
	out.WriteByte(id)
	out.Write(uleb(uint64(len(contents))))
	out.Write(contents)
}

func valTypes(ts []ValType) []byte {
	out := uleb(uint64(len(ts)))
	for _, t := range ts {
		out = append(out, byte(t))
	}
	return out
}

func name(s string) []byte {
	return append(uleb(uint64(len(s))), s...)
}

func uleb(v uint64) []byte {
	var out []byte
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, c)
		}
		out = append(out, c|0x80)
	}
}

func sleb(v int64) []byte {
	var out []byte
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0) {
			return append(out, c)
		}
		out = append(out, c|0x80)
	}
}

// I32Const pushes an i32.
func I32Const(v int32) []byte { return append([]byte{opI32Const}, sleb(int64(v))...) }

// I64Const pushes an i64.
func I64Const(v int64) []byte { return append([]byte{opI64Const}, sleb(v)...) }

// Call calls the function at idx.
func Call(idx uint32) []byte { return append([]byte{opCall}, uleb(uint64(idx))...) }

// LocalGet pushes local idx.
func LocalGet(idx uint32) []byte { return append([]byte{opLocalGet}, uleb(uint64(idx))...) }

// GlobalGet pushes global idx.
func GlobalGet(idx uint32) []byte { return append([]byte{opGlobalGet}, uleb(uint64(idx))...) }

// GlobalSet pops into global idx.
func GlobalSet(idx uint32) []byte { return append([]byte{opGlobalSet}, uleb(uint64(idx))...) }

// I32Add adds the two i32s on top of the stack.
func I32Add() []byte { return []byte{opI32Add} }

// Drop discards the top of the stack.
func Drop() []byte { return []byte{opDrop} }

// Unreachable traps.
func Unreachable() []byte { return []byte{opUnreachable} }
