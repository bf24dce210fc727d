package plugin

// LoadState represents where a plugin file is in its load.
type LoadState int32

// Load states.
const (
	// StateNotStarted - Plugin file has been discovered but not loaded.
	StateNotStarted LoadState = iota

	// StateLoading - Plugin is being compiled, instantiated or initialized.
	StateLoading

	// StateReady - Plugin loaded and its mailbox is accepting calls.
	StateReady

	// StateFailed - Plugin could not be loaded.
	StateFailed
)

// String returns a string representation of the state.
func (s LoadState) String() string {
	switch s {
	case StateNotStarted:
		return "not-started"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IsResolved returns true once the load has an outcome.
func (s LoadState) IsResolved() bool {
	return s == StateReady || s == StateFailed
}
