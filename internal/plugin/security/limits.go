package security

// wasmPageSize is the size of one WebAssembly memory page.
const wasmPageSize = 64 * 1024

// maxMemoryPages is the 4GiB ceiling of a 32-bit linear memory.
const maxMemoryPages = 65536

// Limits bound the resources of a single plugin instance.
type Limits struct {
	// MemoryLimitPages caps linear memory growth. Zero leaves the engine default.
	MemoryLimitPages uint32
}

// LimitsFromMegabytes converts a memory budget in MiB to page limits.
func LimitsFromMegabytes(mb int) Limits {
	if mb <= 0 {
		return Limits{}
	}
	pages := uint64(mb) * 1024 * 1024 / wasmPageSize
	if pages > maxMemoryPages {
		pages = maxMemoryPages
	}
	return Limits{MemoryLimitPages: uint32(pages)}
}
