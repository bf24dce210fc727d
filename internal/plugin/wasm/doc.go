// Package wasm runs command plugins compiled to WebAssembly.
//
// An Engine wraps one wazero runtime shared by every plugin. It is built once
// with the sandbox grants: the host filesystem is visible only under a single
// preopened root, mounted read-only unless writes are granted, and nothing
// else (network, environment, arguments beyond the program name) is exposed.
//
// Each plugin file becomes an Instance. An Instance is not safe for
// concurrent use; the plugin package gives each one a single owning
// goroutine.
//
// # Guest ABI
//
// A plugin exports:
//
//	memory                       linear memory
//	orbit_alloc(size i32) i32    allocate size bytes for host-written results
//	orbit_init() i64             packed pointer to the metadata JSON
//	orbit_run()                  execute the command
//	_initialize()                optional, run once at instantiation
//
// and may import from module "orbit":
//
//	is_open() i32
//	open() / close() / toggle()
//	get_commands() i64                  packed pointer to a JSON metadata array
//	run_command(ptr i32, len i32)       command id
//	get_app_data(ptr i32, len i32) i64  path in, packed JSON app data out (0 if none)
//	log(level i32, ptr i32, len i32)    0 error, 1 warn, 2 info, 3 debug, 4 trace
//
// Packed values hold the pointer in the high 32 bits and the length in the
// low 32 bits.
package wasm
