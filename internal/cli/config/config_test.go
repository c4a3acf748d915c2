package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Empty(t, GetConfigFileUsed())
	assert.Equal(t, filepath.Join(dir, DefaultDatabase), cfg.Database)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)

	server := cfg.GetServerConfig()
	assert.Equal(t, DefaultPort, server.Port)
	assert.True(t, server.Watch)
	assert.False(t, server.Dev)

	ui := cfg.GetUIConfig()
	assert.Equal(t, "toast", ui.FeedbackStyle)
	assert.Equal(t, 5*time.Second, ui.DismissAfter)
	assert.True(t, ui.ReloadOnFileDelete)
	assert.Equal(t, DefaultAuthor, ui.Author)

	st := cfg.GetStorageConfig()
	assert.Equal(t, StorageLocal, st.Backend)
	assert.Equal(t, filepath.Join(dir, DefaultStorageDir), st.LocalDir)
	assert.Equal(t, int64(DefaultMaxFileSize), st.MaxFileSize)

	assert.Equal(t, DefaultServerURL, cfg.GetClientConfig().ServerURL)
	assert.Equal(t, DefaultInflightTTL, cfg.GetInflightConfig().TTL)
	assert.Empty(t, cfg.GetInflightConfig().RedisAddr)
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_File(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, `database: data/qa.db
server:
  port: 9000
ui:
  feedback_style: banner
  dismiss_after: 3s
  reload_on_file_delete: false
  author: moderator
storage:
  backend: s3
  s3:
    bucket: answers
    region: eu-central-1
inflight:
  redis_addr: localhost:6379
`)

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, path, GetConfigFileUsed())
	assert.Equal(t, filepath.Join(filepath.Dir(path), "data", "qa.db"), cfg.Database)
	assert.Equal(t, 9000, cfg.GetServerConfig().Port)
	assert.True(t, cfg.GetServerConfig().Watch, "unset keys keep their defaults")

	ui := cfg.GetUIConfig()
	assert.Equal(t, "banner", ui.FeedbackStyle)
	assert.Equal(t, 3*time.Second, ui.DismissAfter)
	assert.False(t, ui.ReloadOnFileDelete)
	assert.Equal(t, "moderator", ui.Author)

	st := cfg.GetStorageConfig()
	assert.Equal(t, StorageS3, st.Backend)
	assert.Equal(t, "answers", st.S3.Bucket)
	assert.Equal(t, DefaultPresignTTL, st.S3.PresignTTL)
	assert.Equal(t, "localhost:6379", cfg.GetInflightConfig().RedisAddr)
}

func TestLoadConfig_FindsFileInParent(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, "log_level: debug\n")
	child := filepath.Join(filepath.Dir(path), "a", "b")
	require.NoError(t, os.MkdirAll(child, 0750))
	t.Chdir(child)

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, path, GetConfigFileUsed())
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := writeConfig(t, `server:
  port: 9000
ui:
  author: from_file
`)

	t.Run("env overrides file", func(t *testing.T) {
		ResetConfig()
		t.Setenv("ANSWERDESK_SERVER__PORT", "9100")
		t.Setenv("ANSWERDESK_UI__AUTHOR", "from_env")

		cfg, err := LoadConfig(path, nil)
		require.NoError(t, err)
		assert.Equal(t, 9100, cfg.GetServerConfig().Port)
		assert.Equal(t, "from_env", cfg.GetUIConfig().Author)
	})

	t.Run("flag overrides env", func(t *testing.T) {
		ResetConfig()
		t.Setenv("ANSWERDESK_SERVER__PORT", "9100")
		t.Setenv("ANSWERDESK_UI__AUTHOR", "from_env")

		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flags.Int("port", 0, "port")
		flags.String("author", "", "author")
		require.NoError(t, flags.Set("port", "9200"))
		require.NoError(t, flags.Set("author", "from_flag"))

		cfg, err := LoadConfig(path, flags)
		require.NoError(t, err)
		assert.Equal(t, 9200, cfg.GetServerConfig().Port)
		assert.Equal(t, "from_flag", cfg.GetUIConfig().Author)
	})

	t.Run("unset flag falls back", func(t *testing.T) {
		ResetConfig()
		t.Setenv("ANSWERDESK_UI__AUTHOR", "from_env")

		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flags.Int("port", 0, "port")
		flags.String("author", "", "author")

		cfg, err := LoadConfig(path, flags)
		require.NoError(t, err)
		assert.Equal(t, 9000, cfg.GetServerConfig().Port)
		assert.Equal(t, "from_env", cfg.GetUIConfig().Author)
	})

	t.Run("snake case flag", func(t *testing.T) {
		ResetConfig()
		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flags.String("log-level", "", "level")
		flags.String("config", "", "config")
		require.NoError(t, flags.Set("log-level", "warn"))
		require.NoError(t, flags.Set("config", path))

		cfg, err := LoadConfig(path, flags)
		require.NoError(t, err)
		assert.Equal(t, "warn", cfg.LogLevel)
	})
}

func TestLoadConfig_Invalid(t *testing.T) {
	ResetConfig()
	path := writeConfig(t, "log_level: loud\n")

	_, err := LoadConfig(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
	assert.Nil(t, GetCurrentConfig())
}

func TestLoadConfig_ExpandsSecrets(t *testing.T) {
	ResetConfig()
	t.Setenv("QA_SESSION_SECRET", "s3cret")
	path := writeConfig(t, "server:\n  session_secret: ${QA_SESSION_SECRET}\n")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg.GetServerConfig().SessionSecret)
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{Database: "qa.db", LogLevel: "info", LogFormat: "text"}
	}

	tests := []struct {
		name      string
		mutate    func(c *Config)
		errSubstr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing database", mutate: func(c *Config) { c.Database = "" }, errSubstr: "database is required"},
		{name: "bad log format", mutate: func(c *Config) { c.LogFormat = "xml" }, errSubstr: "log_format"},
		{name: "bad port", mutate: func(c *Config) { c.Server = &ServerConfig{Port: 70000} }, errSubstr: "server.port"},
		{name: "bad feedback style", mutate: func(c *Config) { c.UI = &UIConfig{FeedbackStyle: "modal"} }, errSubstr: "ui.feedback_style"},
		{name: "unknown backend", mutate: func(c *Config) { c.Storage = &StorageConfig{Backend: "ftp"} }, errSubstr: "storage.backend"},
		{name: "s3 without bucket", mutate: func(c *Config) { c.Storage = &StorageConfig{Backend: StorageS3} }, errSubstr: "storage.s3.bucket"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.errSubstr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errSubstr)
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TEST_VAR_ONE", "value_one")

	tests := []struct {
		input string
		want  string
	}{
		{"${TEST_VAR_ONE}", "value_one"},
		{"prefix-${TEST_VAR_ONE}-suffix", "prefix-value_one-suffix"},
		{"${TEST_VAR_MISSING}", "${TEST_VAR_MISSING}"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, expandEnvVars(tt.input), tt.input)
	}
}

func TestLogger(t *testing.T) {
	t.Run("context round trip", func(t *testing.T) {
		logger := slog.New(slog.DiscardHandler)
		ctx := WithLogger(context.Background(), logger)
		assert.Same(t, logger, GetLogger(ctx))
		assert.NotNil(t, GetLogger(context.Background()))
	})

	t.Run("json at warn", func(t *testing.T) {
		var buf bytes.Buffer
		c := &Config{LogLevel: "warn", LogFormat: "json"}
		logger := c.NewLogger(&buf)
		logger.Info("hidden")
		logger.Warn("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), `"msg":"shown"`)
	})

	t.Run("verbose forces debug", func(t *testing.T) {
		var buf bytes.Buffer
		c := &Config{LogLevel: "error", Verbose: true}
		c.NewLogger(&buf).Debug("details")
		assert.Contains(t, buf.String(), "msg=details")
	})
}
