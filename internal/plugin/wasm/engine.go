package wasm

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/dshills/orbit/internal/logging"
	"github.com/dshills/orbit/internal/plugin/abi"
	"github.com/dshills/orbit/internal/plugin/security"
)

// HostAPI is the capability surface exposed to plugins. Every method is
// called from the goroutine that owns the calling instance, with the context
// of the call in progress.
type HostAPI interface {
	IsOpen(ctx context.Context) (bool, error)
	Open(ctx context.Context) error
	Close(ctx context.Context) error
	Toggle(ctx context.Context) error
	GetCommands(ctx context.Context) ([]abi.Metadata, error)
	RunCommand(ctx context.Context, id string) error
	// GetAppData returns nil when path is not an application.
	GetAppData(ctx context.Context, path string) (*abi.AppData, error)
}

// Config configures an Engine.
type Config struct {
	Grants *security.Grants
	Host   HostAPI
	Logger logrus.FieldLogger
}

// Engine compiles and instantiates plugins.
type Engine struct {
	runtime wazero.Runtime
	grants  *security.Grants
	host    HostAPI
	log     *logrus.Entry
	seq     atomic.Uint64
}

// NewEngine builds the runtime, the WASI imports and the orbit host module.
func NewEngine(ctx context.Context, cfg Config) (*Engine, error) {
	if cfg.Grants == nil {
		return nil, ErrNoGrants
	}
	if cfg.Host == nil {
		return nil, ErrNoHost
	}

	rc := wazero.NewRuntimeConfig()
	if pages := cfg.Grants.Limits.MemoryLimitPages; pages > 0 {
		rc = rc.WithMemoryLimitPages(pages)
	}

	e := &Engine{
		runtime: wazero.NewRuntimeWithConfig(ctx, rc),
		grants:  cfg.Grants,
		host:    cfg.Host,
		log:     logging.WithComponent(cfg.Logger, "wasm"),
	}

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, e.runtime); err != nil {
		_ = e.runtime.Close(ctx)
		return nil, fmt.Errorf("instantiating wasi: %w", err)
	}
	if err := e.instantiateHostModule(ctx); err != nil {
		_ = e.runtime.Close(ctx)
		return nil, fmt.Errorf("instantiating host module: %w", err)
	}

	e.log.WithFields(logrus.Fields{
		"root":         e.grants.Root(),
		"read_only":    e.grants.ReadOnly(),
		"memory_pages": e.grants.Limits.MemoryLimitPages,
	}).Debug("engine ready")

	return e, nil
}

// Load reads, compiles and instantiates the plugin at path.
func (e *Engine) Load(ctx context.Context, path string) (*Instance, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plugin: %w", err)
	}
	return e.Instantiate(ctx, path, data)
}

// Instantiate compiles and instantiates a plugin from memory. path only
// names the instance.
func (e *Engine) Instantiate(ctx context.Context, path string, data []byte) (*Instance, error) {
	compiled, err := e.runtime.CompileModule(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCompile, err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	log := e.log.WithField("plugin", path)
	stdout := log.WriterLevel(logrus.InfoLevel)
	stderr := log.WriterLevel(logrus.WarnLevel)

	mc := wazero.NewModuleConfig().
		WithName(fmt.Sprintf("%s#%d", base, e.seq.Add(1))).
		WithArgs(base).
		WithFSConfig(e.fsConfig()).
		WithStdout(stdout).
		WithStderr(stderr).
		WithSysWalltime().
		WithSysNanotime().
		WithRandSource(rand.Reader).
		WithStartFunctions(abi.ExportInitialize)

	mod, err := e.runtime.InstantiateModule(ctx, compiled, mc)
	if err != nil {
		_ = compiled.Close(ctx)
		_ = stdout.Close()
		_ = stderr.Close()
		return nil, fmt.Errorf("instantiating: %w", err)
	}

	inst := &Instance{
		path:     path,
		module:   mod,
		compiled: compiled,
		closers:  []func() error{stdout.Close, stderr.Close},
	}
	if err := inst.bind(); err != nil {
		_ = inst.Close(ctx)
		return nil, err
	}

	log.WithField("module", mod.Name()).Debug("instantiated")
	return inst, nil
}

func (e *Engine) fsConfig() wazero.FSConfig {
	fs := wazero.NewFSConfig()
	switch {
	case e.grants.Has(security.CapabilityFileWrite):
		return fs.WithDirMount(e.grants.Root(), "/")
	case e.grants.Has(security.CapabilityFileRead):
		return fs.WithReadOnlyDirMount(e.grants.Root(), "/")
	default:
		return fs
	}
}

// Close releases the runtime and every instance created by it.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}
