package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// Config file names, in lookup order.
const (
	ConfigFileName    = "answerdesk.yaml"
	ConfigFileNameAlt = "answerdesk.yml"
)

// EnvPrefix prefixes environment variables. A double underscore separates
// nested keys: ANSWERDESK_SERVER__PORT sets server.port.
const EnvPrefix = "ANSWERDESK_"

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

// flagKeys maps flag names to config keys where they differ from the
// snake_case form of the flag name.
var flagKeys = map[string]string{
	"port":           "server.port",
	"dev":            "server.dev",
	"watch":          "server.watch",
	"session-secret": "server.session_secret",
	"author":         "ui.author",
	"feedback-style": "ui.feedback_style",
	"server":         "client.server_url",
	"timeout":        "client.timeout",
	"redis":          "inflight.redis_addr",
	"storage":        "storage.backend",
}

// flags that only steer loading.
var ignoredFlags = map[string]bool{
	"config": true,
	"help":   true,
	"yes":    true,
}

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config
)

// defaults are the lowest-priority config layer.
func defaults() map[string]interface{} {
	return map[string]interface{}{
		"database":                 DefaultDatabase,
		"log_level":                DefaultLogLevel,
		"log_format":               DefaultLogFormat,
		"verbose":                  false,
		"server.port":              DefaultPort,
		"server.dev":               false,
		"server.watch":             true,
		"ui.feedback_style":        DefaultFeedback,
		"ui.dismiss_after":         DefaultDismissAfter.String(),
		"ui.reload_on_file_delete": true,
		"ui.author":                DefaultAuthor,
		"storage.backend":          StorageLocal,
		"storage.local_dir":        DefaultStorageDir,
		"storage.max_file_size":    DefaultMaxFileSize,
		"storage.s3.presign_ttl":   DefaultPresignTTL.String(),
		"inflight.ttl":             DefaultInflightTTL.String(),
		"client.server_url":        DefaultServerURL,
		"client.timeout":           DefaultTimeout.String(),
	}
}

// configExistsIn returns the config file in dir, or "".
func configExistsIn(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// findConfigFile finds the config file to use.
// Priority: explicit path > answerdesk.yaml in CWD or a parent directory.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if found := configExistsIn(dir); found != "" {
			return found
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// resolvePathRelativeTo resolves a path relative to baseDir if it's not absolute.
// Returns the path unchanged if it's empty, in-memory or already absolute.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || path == ":memory:" || filepath.IsAbs(path) || baseDir == "" {
		return path
	}
	return filepath.Join(baseDir, path)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")

	// 1. Load defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Load environment variables (ANSWERDESK_ prefix)
	// Transform: ANSWERDESK_UI__AUTHOR -> ui.author
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority - overrides env vars and config file)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed || ignoredFlags[f.Name] {
				return "", nil
			}
			return flagKey(f.Name), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// 6. Resolve paths against the config file's directory
	cfg.BaseDir = baseDir(configFileUsed)
	cfg.Database = resolvePathRelativeTo(cfg.Database, cfg.BaseDir)
	st := cfg.GetStorageConfig()
	st.LocalDir = resolvePathRelativeTo(st.LocalDir, cfg.BaseDir)
	expandSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	currentConfig = &cfg
	return &cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func flagKey(name string) string {
	if key, ok := flagKeys[name]; ok {
		return key
	}
	// Transform kebab-case to snake_case for config keys
	return strings.ReplaceAll(name, "-", "_")
}

func baseDir(configFile string) string {
	if configFile != "" {
		if abs, err := filepath.Abs(configFile); err == nil {
			return filepath.Dir(abs)
		}
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return cwd
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
// This is available after LoadConfig is called.
func GetCurrentConfig() *Config {
	return currentConfig
}

// =============================================================================
// Logging
// =============================================================================

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

// WithLogger returns a copy of ctx carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// NewLogger builds the process logger from the log settings. Verbose
// forces debug output.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level := parseLevel(c.LogLevel)
	if c.Verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// =============================================================================
// Secrets
// =============================================================================

var envRef = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} patterns in a string with environment variable values.
func expandEnvVars(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val := os.Getenv(varName); val != "" {
			return val
		}
		return match // Return original if not found
	})
}

// expandSecrets expands environment variables in credential fields.
func expandSecrets(c *Config) {
	if c.Server != nil {
		c.Server.SessionSecret = expandEnvVars(c.Server.SessionSecret)
	}
	if c.Storage != nil && c.Storage.S3 != nil {
		c.Storage.S3.AccessKey = expandEnvVars(c.Storage.S3.AccessKey)
		c.Storage.S3.SecretKey = expandEnvVars(c.Storage.S3.SecretKey)
	}
	if c.Inflight != nil {
		c.Inflight.RedisAddr = expandEnvVars(c.Inflight.RedisAddr)
	}
}
