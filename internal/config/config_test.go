package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(LoadOptions{ConfigDirPath: dir})
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, filepath.Join(dir, "commands"), cfg.Plugins.Dir)
	assert.Equal(t, 4, cfg.Plugins.MaxParallelLoads)
	assert.NotEmpty(t, cfg.Sandbox.Root)
	assert.False(t, cfg.Sandbox.ReadOnly)
	assert.Equal(t, 10*time.Minute, cfg.Apps.CacheTTL)
}

func TestLoadFromDirFile(t *testing.T) {
	dir := t.TempDir()
	content := `
[log]
level = "debug"

[plugins]
dir = "/opt/orbit/commands"
max_parallel_loads = 2

[sandbox]
root = "/srv"
read_only = true
memory_limit_mb = 32

[apps]
dirs = ["/a", "/b"]
cache_ttl = "30s"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(content), 0o644))

	cfg, err := Load(LoadOptions{ConfigDirPath: dir})
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/opt/orbit/commands", cfg.Plugins.Dir)
	assert.Equal(t, 2, cfg.Plugins.MaxParallelLoads)
	assert.Equal(t, "/srv", cfg.Sandbox.Root)
	assert.True(t, cfg.Sandbox.ReadOnly)
	assert.Equal(t, 32, cfg.Sandbox.MemoryLimitMB)
	assert.Equal(t, []string{"/a", "/b"}, cfg.Apps.Dirs)
	assert.Equal(t, 30*time.Second, cfg.Apps.CacheTTL)
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("ORBIT_PLUGINS_DIR", "/from/env")
	t.Setenv("ORBIT_LOG_LEVEL", "warn")

	cfg, err := Load(LoadOptions{ConfigDirPath: dir})
	require.NoError(t, err)

	assert.Equal(t, "/from/env", cfg.Plugins.Dir)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadExplicitFileMissing(t *testing.T) {
	_, err := Load(LoadOptions{ConfigFilePath: filepath.Join(t.TempDir(), "nope.toml")})
	require.Error(t, err)
}

func TestLoadInvalidFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[log\nlevel = "), 0o644))

	_, err := Load(LoadOptions{ConfigFilePath: path})
	require.Error(t, err)

	var parseErr *ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, path, parseErr.Path)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty plugin dir", func(c *Config) { c.Plugins.Dir = "" }},
		{"zero parallel loads", func(c *Config) { c.Plugins.MaxParallelLoads = 0 }},
		{"empty sandbox root", func(c *Config) { c.Sandbox.Root = "" }},
		{"negative memory limit", func(c *Config) { c.Sandbox.MemoryLimitMB = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(t.TempDir())
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestEncode(t *testing.T) {
	cfg := Default("/cfg")
	data, err := cfg.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), "[plugins]")
	assert.Contains(t, string(data), "/cfg/commands")
}

func TestDirOverride(t *testing.T) {
	configDirOverride = "/custom"
	t.Cleanup(func() { configDirOverride = "" })

	dir, err := Dir()
	require.NoError(t, err)
	assert.Equal(t, "/custom", dir)
}
