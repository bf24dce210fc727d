package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/viper"
)

const (
	// AppName is the application name used for directories and env vars.
	AppName = "orbit"
	// ConfigFileName is the config file name without extension.
	ConfigFileName = "config"
	// ConfigFileExt is the config file extension.
	ConfigFileExt = "toml"
	// EnvPrefix prefixes every environment override.
	EnvPrefix = "ORBIT"
	// PluginExt is the extension of plugin binaries in the commands directory.
	PluginExt = ".wasm"
)

// Config is the full orbit configuration.
type Config struct {
	Log     LogConfig     `mapstructure:"log" toml:"log"`
	Plugins PluginsConfig `mapstructure:"plugins" toml:"plugins"`
	Sandbox SandboxConfig `mapstructure:"sandbox" toml:"sandbox"`
	Apps    AppsConfig    `mapstructure:"apps" toml:"apps"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level" toml:"level"`
	Format string `mapstructure:"format" toml:"format"`
}

// PluginsConfig configures plugin discovery and loading.
type PluginsConfig struct {
	// Dir is scanned once at startup for *.wasm command plugins.
	Dir string `mapstructure:"dir" toml:"dir"`
	// MaxParallelLoads bounds concurrent compilations.
	MaxParallelLoads int `mapstructure:"max_parallel_loads" toml:"max_parallel_loads"`
}

// SandboxConfig configures what plugins may touch.
type SandboxConfig struct {
	// Root is the only host directory visible to plugins, mounted at "/".
	Root string `mapstructure:"root" toml:"root"`
	// ReadOnly mounts Root without write permission.
	ReadOnly bool `mapstructure:"read_only" toml:"read_only"`
	// MemoryLimitMB caps each plugin's linear memory. Zero means the engine default.
	MemoryLimitMB int `mapstructure:"memory_limit_mb" toml:"memory_limit_mb"`
}

// AppsConfig configures application metadata lookups.
type AppsConfig struct {
	Dirs      []string      `mapstructure:"dirs" toml:"dirs"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl" toml:"cache_ttl"`
	CacheSize int           `mapstructure:"cache_size" toml:"cache_size"`
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// ConfigFilePath, when set, is used exclusively and must exist.
	ConfigFilePath string
	// ConfigDirPath overrides the config directory.
	ConfigDirPath string
}

// configDirOverride lets tests redirect Dir.
var configDirOverride string

// Dir returns the orbit configuration directory using platform conventions:
// %APPDATA% on Windows, ~/Library/Application Support on macOS and
// $XDG_CONFIG_HOME (defaulting to ~/.config) elsewhere.
func Dir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("APPDATA")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, "Library", "Application Support")
	default:
		base = os.Getenv("XDG_CONFIG_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			base = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(base, AppName), nil
}

// Default returns the built-in configuration rooted at configDir.
func Default(configDir string) *Config {
	root, err := os.UserHomeDir()
	if err != nil {
		root = string(filepath.Separator)
	}
	return &Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Plugins: PluginsConfig{
			Dir:              filepath.Join(configDir, "commands"),
			MaxParallelLoads: 4,
		},
		Sandbox: SandboxConfig{Root: root},
		Apps: AppsConfig{
			Dirs:      defaultAppDirs(root),
			CacheTTL:  10 * time.Minute,
			CacheSize: 512,
		},
	}
}

func defaultAppDirs(home string) []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"/Applications",
			"/System/Applications",
			filepath.Join(home, "Applications"),
		}
	case "windows":
		return nil
	default:
		dirs := []string{
			"/usr/share/applications",
			"/usr/local/share/applications",
			filepath.Join(home, ".local", "share", "applications"),
		}
		if xdg := os.Getenv("XDG_DATA_DIRS"); xdg != "" {
			for _, d := range filepath.SplitList(xdg) {
				dirs = append(dirs, filepath.Join(d, "applications"))
			}
		}
		return dirs
	}
}

// Load reads the configuration described by opts.
func Load(opts LoadOptions) (*Config, error) {
	dir := opts.ConfigDirPath
	if dir == "" {
		d, err := Dir()
		if err != nil {
			return nil, err
		}
		dir = d
	}

	defaults := Default(dir)
	v := viper.New()
	v.SetDefault("log.level", defaults.Log.Level)
	v.SetDefault("log.format", defaults.Log.Format)
	v.SetDefault("plugins.dir", defaults.Plugins.Dir)
	v.SetDefault("plugins.max_parallel_loads", defaults.Plugins.MaxParallelLoads)
	v.SetDefault("sandbox.root", defaults.Sandbox.Root)
	v.SetDefault("sandbox.read_only", defaults.Sandbox.ReadOnly)
	v.SetDefault("sandbox.memory_limit_mb", defaults.Sandbox.MemoryLimitMB)
	v.SetDefault("apps.dirs", defaults.Apps.Dirs)
	v.SetDefault("apps.cache_ttl", defaults.Apps.CacheTTL)
	v.SetDefault("apps.cache_size", defaults.Apps.CacheSize)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFilePath != "" {
		if _, err := os.Stat(opts.ConfigFilePath); err != nil {
			return nil, fmt.Errorf("config file not found: %w", err)
		}
		v.SetConfigFile(opts.ConfigFilePath)
		if err := v.ReadInConfig(); err != nil {
			return nil, &ParseError{Path: opts.ConfigFilePath, Err: err}
		}
	} else {
		v.SetConfigName(ConfigFileName)
		v.SetConfigType(ConfigFileExt)
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, &ParseError{Path: filepath.Join(dir, ConfigFileName+"."+ConfigFileExt), Err: err}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks invariants that defaults alone cannot guarantee.
func (c *Config) Validate() error {
	if c.Plugins.Dir == "" {
		return errors.New("plugins.dir must not be empty")
	}
	if c.Plugins.MaxParallelLoads < 1 {
		return fmt.Errorf("plugins.max_parallel_loads must be >= 1, got %d", c.Plugins.MaxParallelLoads)
	}
	if c.Sandbox.Root == "" {
		return errors.New("sandbox.root must not be empty")
	}
	if c.Sandbox.MemoryLimitMB < 0 {
		return fmt.Errorf("sandbox.memory_limit_mb must be >= 0, got %d", c.Sandbox.MemoryLimitMB)
	}
	return nil
}

// Encode renders the configuration as TOML.
func (c *Config) Encode() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return data, nil
}
