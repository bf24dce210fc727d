// Package platform resolves installed applications for plugins.
package platform

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/sirupsen/logrus"

	"github.com/dshills/orbit/internal/logging"
	"github.com/dshills/orbit/internal/plugin/abi"
)

// TagApplication tags every app data entry.
const TagApplication = "Application"

// Default cache settings.
const (
	DefaultCacheSize = 512
	DefaultCacheTTL  = 10 * time.Minute
)

// Config configures application lookups.
type Config struct {
	// Dirs are scanned by ApplicationFiles.
	Dirs      []string
	CacheSize int
	CacheTTL  time.Duration
}

type lookup struct {
	app abi.AppData
	ok  bool
}

// Apps looks up application data, caching results by path. Misses are
// cached too.
type Apps struct {
	dirs  []string
	cache *lru.LRU[string, lookup]
	log   *logrus.Entry
}

// New creates an application lookup.
func New(cfg Config, logger logrus.FieldLogger) *Apps {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	return &Apps{
		dirs:  cfg.Dirs,
		cache: lru.NewLRU[string, lookup](cfg.CacheSize, nil, cfg.CacheTTL),
		log:   logging.WithComponent(logger, "platform"),
	}
}

// AppData returns the application at path, if it is one.
func (a *Apps) AppData(path string) (abi.AppData, bool) {
	if l, ok := a.cache.Get(path); ok {
		return l.app, l.ok
	}
	app, err := resolve(path)
	if err != nil {
		a.log.WithError(err).WithField("path", path).Debug("not an application")
	}
	l := lookup{app: app, ok: err == nil}
	a.cache.Add(path, l)
	return l.app, l.ok
}

// ApplicationFiles lists candidate application paths in the configured
// directories. A directory that is itself an .app bundle is listed as is.
func (a *Apps) ApplicationFiles() []string {
	var files []string
	for _, dir := range a.dirs {
		if filepath.Ext(dir) == ".app" {
			if info, err := os.Stat(dir); err == nil && info.IsDir() {
				files = append(files, dir)
			}
			continue
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	return files
}

// Applications resolves every application file, skipping what is not an
// application.
func (a *Apps) Applications() []abi.AppData {
	var apps []abi.AppData
	for _, path := range a.ApplicationFiles() {
		if app, ok := a.AppData(path); ok {
			apps = append(apps, app)
		}
	}
	return apps
}

var errNotApplication = errors.New("not an application")

func resolve(path string) (abi.AppData, error) {
	info, err := os.Stat(path)
	if err != nil {
		return abi.AppData{}, err
	}
	base := filepath.Base(path)

	switch {
	case info.IsDir() && filepath.Ext(path) == ".app":
		return abi.AppData{
			ID:       base,
			Name:     strings.TrimSuffix(base, ".app"),
			Keywords: []string{},
			Tag:      TagApplication,
		}, nil

	case info.Mode().IsRegular() && filepath.Ext(path) == ".desktop":
		f, err := os.Open(path)
		if err != nil {
			return abi.AppData{}, err
		}
		defer f.Close()

		entry, err := ParseDesktopEntry(f)
		if err != nil {
			return abi.AppData{}, err
		}
		app := abi.AppData{
			ID:       base,
			Name:     entry.Name,
			Icon:     entry.Icon,
			Keywords: entry.Keywords,
			Tag:      TagApplication,
		}
		if filepath.IsAbs(entry.Icon) {
			app.IconPath = entry.Icon
		}
		return app, nil

	case info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0:
		return abi.AppData{
			ID:       base,
			Name:     base,
			Keywords: []string{},
			Tag:      TagApplication,
		}, nil
	}
	return abi.AppData{}, errNotApplication
}
