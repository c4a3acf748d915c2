// Package config provides configuration management for the answerdesk CLI.
package config

import "time"

// Storage backends.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Default configuration values.
const (
	DefaultDatabase     = "answerdesk.db"
	DefaultLogLevel     = "info"
	DefaultLogFormat    = "text"
	DefaultPort         = 8765
	DefaultFeedback     = "toast"
	DefaultDismissAfter = 5 * time.Second
	DefaultStorageDir   = "uploads"
	DefaultMaxFileSize  = 5 * 1024 * 1024
	DefaultPresignTTL   = 15 * time.Minute
	DefaultInflightTTL  = 30 * time.Second
	DefaultServerURL    = "http://localhost:8765"
	DefaultTimeout      = 30 * time.Second
	DefaultAuthor       = "admin"
)

// Config holds all CLI configuration options.
type Config struct {
	Database  string          `koanf:"database"`
	LogLevel  string          `koanf:"log_level"`
	LogFormat string          `koanf:"log_format"`
	Verbose   bool            `koanf:"verbose"`
	Server    *ServerConfig   `koanf:"server"`
	UI        *UIConfig       `koanf:"ui"`
	Storage   *StorageConfig  `koanf:"storage"`
	Inflight  *InflightConfig `koanf:"inflight"`
	Client    *ClientConfig   `koanf:"client"`

	// BaseDir is the directory relative paths are resolved against.
	BaseDir string `koanf:"-"`
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Port          int    `koanf:"port"`
	SessionSecret string `koanf:"session_secret"`
	Dev           bool   `koanf:"dev"`
	Watch         bool   `koanf:"watch"`
}

// UIConfig holds configuration for the answer panel.
type UIConfig struct {
	FeedbackStyle      string        `koanf:"feedback_style"`
	DismissAfter       time.Duration `koanf:"dismiss_after"`
	ReloadOnFileDelete bool          `koanf:"reload_on_file_delete"`
	Author             string        `koanf:"author"`
}

// StorageConfig selects where attachment contents are kept.
type StorageConfig struct {
	Backend     string    `koanf:"backend"`
	LocalDir    string    `koanf:"local_dir"`
	MaxFileSize int64     `koanf:"max_file_size"`
	S3          *S3Config `koanf:"s3"`
}

// S3Config holds the S3 bucket settings.
type S3Config struct {
	Region     string        `koanf:"region"`
	Bucket     string        `koanf:"bucket"`
	Endpoint   string        `koanf:"endpoint"`
	AccessKey  string        `koanf:"access_key"`
	SecretKey  string        `koanf:"secret_key"`
	PublicBase string        `koanf:"public_base"`
	PresignTTL time.Duration `koanf:"presign_ttl"`
}

// InflightConfig selects the in-flight mutation guard. An empty Redis
// address keeps the guard in process.
type InflightConfig struct {
	RedisAddr string        `koanf:"redis_addr"`
	TTL       time.Duration `koanf:"ttl"`
}

// ClientConfig configures commands that talk to a running server.
type ClientConfig struct {
	ServerURL string        `koanf:"server_url"`
	Timeout   time.Duration `koanf:"timeout"`
}

// DefaultServerConfig returns a ServerConfig with default values.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{Port: DefaultPort, Watch: true}
}

// GetServerConfig returns the server config with defaults applied for any
// unset values.
func (c *Config) GetServerConfig() *ServerConfig {
	if c.Server == nil {
		return DefaultServerConfig()
	}
	s := c.Server
	if s.Port == 0 {
		s.Port = DefaultPort
	}
	return s
}

// DefaultUIConfig returns a UIConfig with default values.
func DefaultUIConfig() *UIConfig {
	return &UIConfig{
		FeedbackStyle:      DefaultFeedback,
		DismissAfter:       DefaultDismissAfter,
		ReloadOnFileDelete: true,
		Author:             DefaultAuthor,
	}
}

// GetUIConfig returns the UI config with defaults applied for any unset
// values.
func (c *Config) GetUIConfig() *UIConfig {
	if c.UI == nil {
		return DefaultUIConfig()
	}
	ui := c.UI
	if ui.FeedbackStyle == "" {
		ui.FeedbackStyle = DefaultFeedback
	}
	if ui.DismissAfter == 0 {
		ui.DismissAfter = DefaultDismissAfter
	}
	if ui.Author == "" {
		ui.Author = DefaultAuthor
	}
	return ui
}

// GetStorageConfig returns the storage config with defaults applied.
func (c *Config) GetStorageConfig() *StorageConfig {
	if c.Storage == nil {
		c.Storage = &StorageConfig{}
	}
	st := c.Storage
	if st.Backend == "" {
		st.Backend = StorageLocal
	}
	if st.LocalDir == "" {
		st.LocalDir = resolvePathRelativeTo(DefaultStorageDir, c.BaseDir)
	}
	if st.MaxFileSize == 0 {
		st.MaxFileSize = DefaultMaxFileSize
	}
	if st.S3 == nil {
		st.S3 = &S3Config{}
	}
	if st.S3.PresignTTL == 0 {
		st.S3.PresignTTL = DefaultPresignTTL
	}
	return st
}

// GetInflightConfig returns the in-flight guard config with defaults applied.
func (c *Config) GetInflightConfig() *InflightConfig {
	if c.Inflight == nil {
		return &InflightConfig{TTL: DefaultInflightTTL}
	}
	if c.Inflight.TTL == 0 {
		c.Inflight.TTL = DefaultInflightTTL
	}
	return c.Inflight
}

// GetClientConfig returns the client config with defaults applied.
func (c *Config) GetClientConfig() *ClientConfig {
	if c.Client == nil {
		return &ClientConfig{ServerURL: DefaultServerURL, Timeout: DefaultTimeout}
	}
	if c.Client.ServerURL == "" {
		c.Client.ServerURL = DefaultServerURL
	}
	if c.Client.Timeout == 0 {
		c.Client.Timeout = DefaultTimeout
	}
	return c.Client
}
