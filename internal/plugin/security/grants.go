package security

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ErrInvalidRoot is returned when the sandbox root is unusable.
var ErrInvalidRoot = errors.New("invalid sandbox root")

// Grants is the authority handed to every plugin instance. It is built once
// at host startup and read-only afterwards.
type Grants struct {
	root         string
	capabilities map[Capability]bool

	// Limits bound the resources of each instance.
	Limits Limits
}

// NewGrants returns read/write filesystem grants rooted at root.
// The root must be an existing directory.
func NewGrants(root string) (*Grants, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrInvalidRoot, abs)
	}

	return &Grants{
		root: filepath.Clean(abs),
		capabilities: map[Capability]bool{
			CapabilityFileRead:  true,
			CapabilityFileWrite: true,
		},
	}, nil
}

// Root returns the host directory preopened for plugins.
func (g *Grants) Root() string {
	return g.root
}

// Grant adds a capability. Capabilities outside the trust boundary are refused.
func (g *Grants) Grant(cap Capability) error {
	info, ok := GetCapabilityInfo(cap)
	if !ok {
		return NewCapabilityError(cap, "grant", "unknown capability")
	}
	if !info.Grantable {
		return NewCapabilityError(cap, "grant", "not grantable to plugins")
	}
	g.capabilities[cap] = true
	return nil
}

// Revoke removes a capability and any children it implied.
func (g *Grants) Revoke(cap Capability) {
	for granted := range g.capabilities {
		if ImpliesCapability(cap, granted) {
			delete(g.capabilities, granted)
		}
	}
}

// Has returns true if cap is granted directly or through a parent.
func (g *Grants) Has(cap Capability) bool {
	if g.capabilities[cap] {
		return true
	}
	for granted := range g.capabilities {
		if ImpliesCapability(granted, cap) {
			return true
		}
	}
	return false
}

// Check returns a CapabilityError if cap is not granted.
func (g *Grants) Check(cap Capability, operation string) error {
	if !g.Has(cap) {
		return NewCapabilityError(cap, operation, "not granted")
	}
	return nil
}

// Capabilities returns the granted capabilities, sorted.
func (g *Grants) Capabilities() []Capability {
	caps := make([]Capability, 0, len(g.capabilities))
	for cap := range g.capabilities {
		caps = append(caps, cap)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

// ReadOnly reports whether the root is mounted without write access.
func (g *Grants) ReadOnly() bool {
	return g.Has(CapabilityFileRead) && !g.Has(CapabilityFileWrite)
}
