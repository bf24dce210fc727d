package security

import (
	"fmt"
	"strings"
)

// Capability represents a permission that can be granted to a plugin.
// Capabilities are hierarchical: granting a parent capability implicitly
// grants all child capabilities.
type Capability string

// Known capabilities.
const (
	// CapabilityFileSystem is the parent of the file capabilities.
	CapabilityFileSystem Capability = "filesystem"

	// CapabilityFileRead allows reading files under the sandbox root.
	CapabilityFileRead Capability = "filesystem.read"

	// CapabilityFileWrite allows writing files under the sandbox root.
	CapabilityFileWrite Capability = "filesystem.write"

	// CapabilityNetwork allows socket access. Never grantable.
	CapabilityNetwork Capability = "network"

	// CapabilityEnv exposes host environment variables. Never grantable.
	CapabilityEnv Capability = "env"
)

// CapabilityInfo provides metadata about a capability.
type CapabilityInfo struct {
	Name        Capability
	DisplayName string
	Description string
	Parent      Capability
	RiskLevel   RiskLevel
	// Grantable is false for capabilities outside the trust boundary.
	Grantable bool
}

// RiskLevel indicates the security risk of a capability.
type RiskLevel int

const (
	// RiskLow indicates minimal security risk.
	RiskLow RiskLevel = iota

	// RiskMedium indicates moderate security risk.
	RiskMedium

	// RiskHigh indicates significant security risk.
	RiskHigh

	// RiskCritical indicates maximum security risk.
	RiskCritical
)

// String returns a string representation of the risk level.
func (r RiskLevel) String() string {
	switch r {
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return "unknown"
	}
}

var capabilityRegistry = map[Capability]CapabilityInfo{
	CapabilityFileSystem: {
		Name:        CapabilityFileSystem,
		DisplayName: "File System",
		Description: "Read and write files under the sandbox root",
		RiskLevel:   RiskHigh,
		Grantable:   true,
	},
	CapabilityFileRead: {
		Name:        CapabilityFileRead,
		DisplayName: "File Read",
		Description: "Read files under the sandbox root",
		Parent:      CapabilityFileSystem,
		RiskLevel:   RiskMedium,
		Grantable:   true,
	},
	CapabilityFileWrite: {
		Name:        CapabilityFileWrite,
		DisplayName: "File Write",
		Description: "Write files under the sandbox root",
		Parent:      CapabilityFileSystem,
		RiskLevel:   RiskHigh,
		Grantable:   true,
	},
	CapabilityNetwork: {
		Name:        CapabilityNetwork,
		DisplayName: "Network Access",
		Description: "Open network sockets",
		RiskLevel:   RiskCritical,
	},
	CapabilityEnv: {
		Name:        CapabilityEnv,
		DisplayName: "Environment",
		Description: "Read host environment variables",
		RiskLevel:   RiskHigh,
	},
}

// GetCapabilityInfo returns information about a capability.
func GetCapabilityInfo(cap Capability) (CapabilityInfo, bool) {
	info, ok := capabilityRegistry[cap]
	return info, ok
}

// IsValidCapability returns true if the capability is known.
func IsValidCapability(cap Capability) bool {
	_, ok := capabilityRegistry[cap]
	return ok
}

// IsChildOf returns true if child is a child of parent.
func IsChildOf(child, parent Capability) bool {
	return strings.HasPrefix(string(child), string(parent)+".")
}

// ImpliesCapability returns true if having granted implies having required.
func ImpliesCapability(granted, required Capability) bool {
	if granted == required {
		return true
	}
	return IsChildOf(required, granted)
}

// CapabilityError represents a capability-related error.
type CapabilityError struct {
	Capability Capability
	Operation  string
	Message    string
}

// Error implements the error interface.
func (e *CapabilityError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("capability %q required for %s: %s", e.Capability, e.Operation, e.Message)
	}
	return fmt.Sprintf("capability %q: %s", e.Capability, e.Message)
}

// NewCapabilityError creates a new capability error.
func NewCapabilityError(cap Capability, operation, message string) *CapabilityError {
	return &CapabilityError{
		Capability: cap,
		Operation:  operation,
		Message:    message,
	}
}
