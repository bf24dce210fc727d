package platform

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/orbit/internal/logging"
)

func writeFile(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
}

func TestAppDataDesktopFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "editor.desktop")
	writeFile(t, path, "[Desktop Entry]\nName=Editor\nIcon=/opt/editor/icon.png\nKeywords=code;\n", 0o644)

	apps := New(Config{}, logging.Discard())
	app, ok := apps.AppData(path)
	require.True(t, ok)
	assert.Equal(t, "editor.desktop", app.ID)
	assert.Equal(t, "Editor", app.Name)
	assert.Equal(t, "/opt/editor/icon.png", app.IconPath)
	assert.Equal(t, []string{"code"}, app.Keywords)
	assert.Equal(t, TagApplication, app.Tag)
}

func TestAppDataBundleAndExecutable(t *testing.T) {
	dir := t.TempDir()
	bundle := filepath.Join(dir, "Calculator.app")
	require.NoError(t, os.Mkdir(bundle, 0o755))
	exe := filepath.Join(dir, "htop")
	writeFile(t, exe, "#!/bin/sh\n", 0o755)
	plain := filepath.Join(dir, "README")
	writeFile(t, plain, "text", 0o644)

	apps := New(Config{}, nil)

	app, ok := apps.AppData(bundle)
	require.True(t, ok)
	assert.Equal(t, "Calculator", app.Name)

	app, ok = apps.AppData(exe)
	require.True(t, ok)
	assert.Equal(t, "htop", app.Name)

	_, ok = apps.AppData(plain)
	assert.False(t, ok)

	_, ok = apps.AppData(filepath.Join(dir, "missing"))
	assert.False(t, ok)
}

func TestAppDataHiddenEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.desktop")
	writeFile(t, path, "[Desktop Entry]\nName=Daemon\nNoDisplay=true\n", 0o644)

	_, ok := New(Config{}, nil).AppData(path)
	assert.False(t, ok)
}

func TestAppDataIsCached(t *testing.T) {
	path := filepath.Join(t.TempDir(), "editor.desktop")
	writeFile(t, path, "[Desktop Entry]\nName=Editor\n", 0o644)

	apps := New(Config{CacheTTL: time.Hour}, nil)
	_, ok := apps.AppData(path)
	require.True(t, ok)

	require.NoError(t, os.Remove(path))
	app, ok := apps.AppData(path)
	require.True(t, ok)
	assert.Equal(t, "Editor", app.Name)
}

func TestApplicationFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.desktop"), "[Desktop Entry]\nName=A\n", 0o644)
	writeFile(t, filepath.Join(dir, "b.desktop"), "[Desktop Entry]\nName=B\nNoDisplay=true\n", 0o644)
	bundle := filepath.Join(t.TempDir(), "Music.app")
	require.NoError(t, os.Mkdir(bundle, 0o755))

	apps := New(Config{Dirs: []string{dir, bundle, filepath.Join(dir, "missing")}}, nil)

	files := apps.ApplicationFiles()
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "a.desktop"),
		filepath.Join(dir, "b.desktop"),
		bundle,
	}, files)

	var names []string
	for _, app := range apps.Applications() {
		names = append(names, app.Name)
	}
	assert.ElementsMatch(t, []string{"A", "Music"}, names)
}
