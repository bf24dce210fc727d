package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGrantsDefaults(t *testing.T) {
	root := t.TempDir()
	g, err := NewGrants(root)
	require.NoError(t, err)

	assert.Equal(t, filepath.Clean(root), g.Root())
	assert.True(t, g.Has(CapabilityFileRead))
	assert.True(t, g.Has(CapabilityFileWrite))
	assert.False(t, g.Has(CapabilityNetwork))
	assert.False(t, g.Has(CapabilityEnv))
	assert.False(t, g.ReadOnly())
}

func TestNewGrantsInvalidRoot(t *testing.T) {
	_, err := NewGrants(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, ErrInvalidRoot)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	_, err = NewGrants(file)
	assert.ErrorIs(t, err, ErrInvalidRoot)
}

func TestGrantRefusesOutsideBoundary(t *testing.T) {
	g, err := NewGrants(t.TempDir())
	require.NoError(t, err)

	for _, cap := range []Capability{CapabilityNetwork, CapabilityEnv, Capability("shell")} {
		err := g.Grant(cap)
		var capErr *CapabilityError
		require.True(t, errors.As(err, &capErr), "Grant(%q) should fail", cap)
		assert.Equal(t, cap, capErr.Capability)
		assert.False(t, g.Has(cap))
	}
}

func TestRevokeWriteMakesReadOnly(t *testing.T) {
	g, err := NewGrants(t.TempDir())
	require.NoError(t, err)

	g.Revoke(CapabilityFileWrite)
	assert.True(t, g.ReadOnly())
	assert.Error(t, g.Check(CapabilityFileWrite, "write file"))
	assert.NoError(t, g.Check(CapabilityFileRead, "read file"))
}

func TestParentImpliesChildren(t *testing.T) {
	g, err := NewGrants(t.TempDir())
	require.NoError(t, err)

	g.Revoke(CapabilityFileSystem)
	assert.Empty(t, g.Capabilities())

	require.NoError(t, g.Grant(CapabilityFileSystem))
	assert.True(t, g.Has(CapabilityFileRead))
	assert.True(t, g.Has(CapabilityFileWrite))
}

func TestImpliesCapability(t *testing.T) {
	assert.True(t, ImpliesCapability(CapabilityFileSystem, CapabilityFileRead))
	assert.True(t, ImpliesCapability(CapabilityFileRead, CapabilityFileRead))
	assert.False(t, ImpliesCapability(CapabilityFileRead, CapabilityFileSystem))
	assert.False(t, ImpliesCapability(CapabilityFileSystem, Capability("filesystemx")))
}

func TestRiskLevelString(t *testing.T) {
	assert.Equal(t, "low", RiskLow.String())
	assert.Equal(t, "critical", RiskCritical.String())
	assert.Equal(t, "unknown", RiskLevel(42).String())
}

func TestLimitsFromMegabytes(t *testing.T) {
	assert.Equal(t, Limits{}, LimitsFromMegabytes(0))
	assert.Equal(t, uint32(16), LimitsFromMegabytes(1).MemoryLimitPages)
	assert.Equal(t, uint32(maxMemoryPages), LimitsFromMegabytes(1<<20).MemoryLimitPages)
}
