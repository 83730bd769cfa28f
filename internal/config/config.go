package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/giantswarm/microerror"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// FilePermissions is the default permission mode for regular files (read/write for owner, read for others)
	FilePermissions = 0644
	// DirPermissions is the default permission mode for directories (rwxr-xr-x)
	DirPermissions = 0755

	// EnvPrefix prefixes every environment override, e.g. K6UI_LISTEN_ADDRESS.
	EnvPrefix = "K6UI"
)

// Configuration keys.
const (
	KeyListenAddress     = "listen.address"
	KeyCORSOrigin        = "server.cors_origin"
	KeyMaxConcurrentRuns = "server.max_concurrent_runs"
	KeyK6Binary          = "k6.binary"
	KeyK6Timeout         = "k6.timeout"
	KeyK6MaxOutputBytes  = "k6.max_output_bytes"
	KeyScriptsDir        = "scripts.dir"
	KeyScriptsKeep       = "scripts.keep"
	KeyHistoryEnabled    = "history.enabled"
	KeyHistoryPath       = "history.path"
)

var (
	// ConfigDir is the global configuration directory (~/.k6ui)
	ConfigDir string

	// DatabasePath is the SQLite database file for run history
	DatabasePath string

	// ConfigFile is the config file read when --config is not given
	ConfigFile string
)

// Initialize sets up the configuration directory.
// It creates ~/.k6ui/ if it doesn't exist
func Initialize() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	setPaths(filepath.Join(homeDir, ".k6ui"))

	if err := os.MkdirAll(ConfigDir, DirPermissions); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", ConfigDir, err)
	}

	return nil
}

func setPaths(dir string) {
	ConfigDir = dir
	DatabasePath = filepath.Join(ConfigDir, "k6ui.db")
	ConfigFile = filepath.Join(ConfigDir, "config.yaml")
}

// Config is the resolved k6ui configuration.
type Config struct {
	ListenAddress     string
	CORSOrigin        string
	MaxConcurrentRuns int

	K6Binary         string
	K6Timeout        time.Duration
	K6MaxOutputBytes int

	ScriptsDir  string
	KeepScripts bool

	HistoryEnabled bool
	HistoryPath    string
}

// New returns a viper instance with defaults and environment overrides
// applied. Initialize must have been called so default paths are known.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyListenAddress, "127.0.0.1:3000")
	v.SetDefault(KeyCORSOrigin, "*")
	v.SetDefault(KeyMaxConcurrentRuns, 0)
	v.SetDefault(KeyK6Binary, "")
	v.SetDefault(KeyK6Timeout, "10m")
	v.SetDefault(KeyK6MaxOutputBytes, 10*1024*1024)
	v.SetDefault(KeyScriptsDir, filepath.Join(os.TempDir(), "k6ui-scripts"))
	v.SetDefault(KeyScriptsKeep, false)
	v.SetDefault(KeyHistoryEnabled, true)
	v.SetDefault(KeyHistoryPath, DatabasePath)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// BindFlags binds command line flags to configuration keys. Flags that are
// not present in fs are skipped.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet, bindings map[string]string) error {
	for key, name := range bindings {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// ReadFile merges a YAML config file into v. An empty path reads
// ConfigFile when it exists.
func ReadFile(v *viper.Viper, path string) error {
	if path == "" {
		if ConfigFile == "" {
			return nil
		}
		if _, err := os.Stat(ConfigFile); errors.Is(err, os.ErrNotExist) {
			return nil
		}
		path = ConfigFile
	}

	v.SetConfigFile(ExpandPath(path))
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return microerror.Maskf(invalidConfigError, "failed to read config file %s: %s", path, err)
	}
	return nil
}

// Load resolves the typed configuration from v.
func Load(v *viper.Viper) (Config, error) {
	timeout, err := time.ParseDuration(v.GetString(KeyK6Timeout))
	if err != nil || timeout <= 0 {
		return Config{}, microerror.Maskf(invalidConfigError, "%s must be a positive duration, got %q", KeyK6Timeout, v.GetString(KeyK6Timeout))
	}

	c := Config{
		ListenAddress:     strings.TrimSpace(v.GetString(KeyListenAddress)),
		CORSOrigin:        v.GetString(KeyCORSOrigin),
		MaxConcurrentRuns: v.GetInt(KeyMaxConcurrentRuns),

		K6Binary:         ExpandPath(strings.TrimSpace(v.GetString(KeyK6Binary))),
		K6Timeout:        timeout,
		K6MaxOutputBytes: v.GetInt(KeyK6MaxOutputBytes),

		ScriptsDir:  ExpandPath(v.GetString(KeyScriptsDir)),
		KeepScripts: v.GetBool(KeyScriptsKeep),

		HistoryEnabled: v.GetBool(KeyHistoryEnabled),
		HistoryPath:    ExpandPath(v.GetString(KeyHistoryPath)),
	}

	switch {
	case c.ListenAddress == "":
		return Config{}, microerror.Maskf(invalidConfigError, "%s must not be empty", KeyListenAddress)
	case c.MaxConcurrentRuns < 0:
		return Config{}, microerror.Maskf(invalidConfigError, "%s must not be negative", KeyMaxConcurrentRuns)
	case c.K6MaxOutputBytes <= 0:
		return Config{}, microerror.Maskf(invalidConfigError, "%s must be positive", KeyK6MaxOutputBytes)
	case c.ScriptsDir == "":
		return Config{}, microerror.Maskf(invalidConfigError, "%s must not be empty", KeyScriptsDir)
	case c.HistoryEnabled && c.HistoryPath == "":
		return Config{}, microerror.Maskf(invalidConfigError, "%s must not be empty when history is enabled", KeyHistoryPath)
	}

	return c, nil
}

// ExpandPath expands a leading "~/" to the home directory.
func ExpandPath(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(homeDir, p[2:])
}
