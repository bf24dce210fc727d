// Package window implements the launcher window that owns the main thread.
package window

// State is the visibility of the launcher window. It is only touched on the
// main thread.
type State struct {
	open        bool
	activations int
}

// IsOpen reports whether the window is visible.
func (s *State) IsOpen() bool {
	return s.open
}

// Open shows and activates the window if it is hidden. Opening a visible
// window does nothing.
func (s *State) Open() {
	if s.open {
		return
	}
	s.open = true
	s.activations++
}

// Close hides the window.
func (s *State) Close() {
	s.open = false
}

// Toggle hides a visible window and opens a hidden one.
func (s *State) Toggle() {
	if s.open {
		s.Close()
	} else {
		s.Open()
	}
}

// Activations counts how often the window went from hidden to visible.
func (s *State) Activations() int {
	return s.activations
}
