package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dshills/orbit/internal/config"
	"github.com/dshills/orbit/internal/logging"
	"github.com/dshills/orbit/internal/metrics"
	"github.com/dshills/orbit/internal/platform"
	"github.com/dshills/orbit/internal/plugin"
	"github.com/dshills/orbit/internal/plugin/security"
)

// shutdownTimeout bounds how long Close may take on exit.
const shutdownTimeout = 5 * time.Second

type rootOptions struct {
	configPath  string
	logLevel    string
	logFile     string
	metricsAddr string
}

// app carries state shared by every subcommand. It is populated by the
// root command's PersistentPreRunE.
type app struct {
	opts rootOptions

	cfg      *config.Config
	log      *logrus.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	logCloser     io.Closer
	metricsServer *http.Server
}

func newRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "orbit",
		Short: "A launcher for sandboxed WebAssembly commands",
		Long: `orbit loads command plugins compiled to WebAssembly from the commands
directory and runs them in a sandbox. Without a subcommand it opens the
terminal launcher.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.teardown()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runUI(cmd.Context(), a)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.opts.configPath, "config", "c", "", "path to configuration file")
	flags.StringVar(&a.opts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flags.StringVar(&a.opts.logFile, "log-file", "", "write logs to this file instead of stderr")
	flags.StringVar(&a.opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	root.AddCommand(
		newUICommand(a),
		newListCommand(a),
		newExecCommand(a),
		newAppsCommand(a),
		newConfigCommand(a),
		newVersionCommand(),
	)
	return root
}

// setup loads configuration and builds the logger and metrics.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(config.LoadOptions{ConfigFilePath: a.opts.configPath})
	if err != nil {
		return err
	}
	if a.opts.logLevel != "" {
		cfg.Log.Level = a.opts.logLevel
	}
	a.cfg = cfg

	out := cmd.ErrOrStderr()
	if a.opts.logFile != "" {
		f, err := os.OpenFile(a.opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return fmt.Errorf("opening log file: %w", err)
		}
		a.logCloser = f
		out = f
	}
	a.log = logging.New(logging.LoggerConfig{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: out,
	})

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector())
	a.metrics = metrics.New(a.registry)

	if a.opts.metricsAddr != "" {
		if err := a.serveMetrics(); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) serveMetrics() error {
	ln, err := net.Listen("tcp", a.opts.metricsAddr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	metrics.RegisterEndpoint(mux, a.registry)
	a.metricsServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := a.metricsServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.WithError(err).Error("metrics server stopped")
		}
	}()
	a.log.WithField("addr", ln.Addr().String()).Info("serving metrics")
	return nil
}

func (a *app) teardown() error {
	if a.metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = a.metricsServer.Shutdown(ctx)
		a.metricsServer = nil
	}
	if a.logCloser != nil {
		err := a.logCloser.Close()
		a.logCloser = nil
		return err
	}
	return nil
}

// newHost builds the extension host from configuration. Plugins start
// loading immediately.
func (a *app) newHost(ctx context.Context) (*plugin.Host, error) {
	grants, err := security.NewGrants(a.cfg.Sandbox.Root)
	if err != nil {
		return nil, fmt.Errorf("sandbox root: %w", err)
	}
	if a.cfg.Sandbox.ReadOnly {
		grants.Revoke(security.CapabilityFileWrite)
	}
	grants.Limits = security.LimitsFromMegabytes(a.cfg.Sandbox.MemoryLimitMB)

	apps := platform.New(platform.Config{
		Dirs:      a.cfg.Apps.Dirs,
		CacheSize: a.cfg.Apps.CacheSize,
		CacheTTL:  a.cfg.Apps.CacheTTL,
	}, a.log)

	return plugin.NewHost(ctx, plugin.Options{
		Dir:              a.cfg.Plugins.Dir,
		MaxParallelLoads: a.cfg.Plugins.MaxParallelLoads,
		Grants:           grants,
		Apps:             apps,
		Logger:           a.log,
		Metrics:          a.metrics,
	})
}

func (a *app) closeHost(h *plugin.Host) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := h.Close(ctx); err != nil {
		a.log.WithError(err).Warn("closing extension host")
	}
}

// defaultLogFile is where the terminal launcher logs when no --log-file is
// given, since stderr belongs to the screen.
func defaultLogFile() string {
	return filepath.Join(os.TempDir(), config.AppName+".log")
}
