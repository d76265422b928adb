package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const (
	defaultBaseURL           = "http://localhost:8000"
	defaultTimeout           = "60s"
	defaultRetryMaxRetries   = 3
	defaultRetryBaseDelay    = "300ms"
	defaultRetryMaxDelay     = "5s"
	defaultTopK              = 5
	defaultMaxUploadBytes    = 20 << 20
	defaultLogLevel          = "warn"
	defaultLogFormat         = "console"
	defaultConfigRelativeDir = ".config/lexchat"
	configFileName           = "config.toml"
	credentialsFileName      = "credentials.toml"
	envBaseURL               = "LEXCHAT_BASE_URL"
	envViteBaseURL           = "VITE_API_BASE_URL"
	envTimeout               = "LEXCHAT_TIMEOUT"
	envRetryMaxRetries       = "LEXCHAT_RETRY_MAX_RETRIES"
	envRetryBaseDelay        = "LEXCHAT_RETRY_BASE_DELAY"
	envRetryMaxDelay         = "LEXCHAT_RETRY_MAX_DELAY"
	envTopK                  = "LEXCHAT_TOP_K"
	envCredentialsPath       = "LEXCHAT_CREDENTIALS_PATH"
	envLogLevel              = "LEXCHAT_LOG_LEVEL"
	envLogFormat             = "LEXCHAT_LOG_FORMAT"
)

var (
	// ErrInvalidConfig indicates malformed configuration input.
	ErrInvalidConfig = errors.New("invalid config")

	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"console", "json"}
)

// Config is the application configuration root.
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Upload      UploadConfig      `toml:"upload"`
	Credentials CredentialsConfig `toml:"credentials"`
	Logging     LoggingConfig     `toml:"logging"`
}

// ServerConfig configures the backend connection.
type ServerConfig struct {
	BaseURL string      `toml:"base_url"`
	Timeout string      `toml:"timeout"`
	Retry   RetryConfig `toml:"retry"`
}

// RetryConfig stores retry policy as config-friendly values.
type RetryConfig struct {
	MaxRetries int    `toml:"max_retries"`
	BaseDelay  string `toml:"base_delay"`
	MaxDelay   string `toml:"max_delay"`
}

// UploadConfig configures document asks.
type UploadConfig struct {
	TopK       int      `toml:"top_k"`
	MaxBytes   int64    `toml:"max_bytes"`
	Extensions []string `toml:"extensions"`
}

// CredentialsConfig locates the credentials file.
type CredentialsConfig struct {
	Path string `toml:"path"`
}

// LoggingConfig configures the diagnostic logger.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// LoadOptions controls config loading behavior.
type LoadOptions struct {
	Path string
}

// RemoteSettings is a validated backend settings snapshot.
type RemoteSettings struct {
	BaseURL string
	Timeout time.Duration
	Retry   RetrySettings
}

// RetrySettings is the parsed retry policy.
type RetrySettings struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// Default returns application defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			BaseURL: defaultBaseURL,
			Timeout: defaultTimeout,
			Retry: RetryConfig{
				MaxRetries: defaultRetryMaxRetries,
				BaseDelay:  defaultRetryBaseDelay,
				MaxDelay:   defaultRetryMaxDelay,
			},
		},
		Upload: UploadConfig{
			TopK:       defaultTopK,
			MaxBytes:   defaultMaxUploadBytes,
			Extensions: []string{".pdf"},
		},
		Logging: LoggingConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}

// Load reads config file then applies environment variable overrides.
func Load(opts LoadOptions) (Config, error) {
	cfg := Default()

	path := strings.TrimSpace(opts.Path)
	if path == "" {
		path = DefaultPath()
	}

	if err := mergeConfigFile(&cfg, path); err != nil {
		return Config{}, err
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// RemoteSettings returns validated settings suitable for runtime wiring.
func (c Config) RemoteSettings() (RemoteSettings, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(c.Server.BaseURL), "/")
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return RemoteSettings{}, fmt.Errorf("%w: server.base_url %q must be an absolute URL", ErrInvalidConfig, c.Server.BaseURL)
	}
	timeout, err := time.ParseDuration(strings.TrimSpace(c.Server.Timeout))
	if err != nil {
		return RemoteSettings{}, fmt.Errorf("%w: parse server timeout: %v", ErrInvalidConfig, err)
	}
	baseDelay, err := time.ParseDuration(strings.TrimSpace(c.Server.Retry.BaseDelay))
	if err != nil {
		return RemoteSettings{}, fmt.Errorf("%w: parse server retry base_delay: %v", ErrInvalidConfig, err)
	}
	maxDelay, err := time.ParseDuration(strings.TrimSpace(c.Server.Retry.MaxDelay))
	if err != nil {
		return RemoteSettings{}, fmt.Errorf("%w: parse server retry max_delay: %v", ErrInvalidConfig, err)
	}
	if c.Server.Retry.MaxRetries < 0 {
		return RemoteSettings{}, fmt.Errorf("%w: server retry max_retries must be >= 0", ErrInvalidConfig)
	}

	return RemoteSettings{
		BaseURL: baseURL,
		Timeout: timeout,
		Retry: RetrySettings{
			MaxRetries: c.Server.Retry.MaxRetries,
			BaseDelay:  baseDelay,
			MaxDelay:   maxDelay,
		},
	}, nil
}

// CredentialsPath returns the configured credentials file or the default one.
func (c Config) CredentialsPath() string {
	if path := strings.TrimSpace(c.Credentials.Path); path != "" {
		return expandHome(path)
	}
	dir := DefaultDir()
	if dir == "" {
		return credentialsFileName
	}
	return filepath.Join(dir, credentialsFileName)
}

// DefaultDir returns the per-user config directory, or "" when home is unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, defaultConfigRelativeDir)
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	dir := DefaultDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, configFileName)
}

func mergeConfigFile(cfg *Config, path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if value, ok := os.LookupEnv(envViteBaseURL); ok && strings.TrimSpace(value) != "" {
		cfg.Server.BaseURL = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(envBaseURL); ok && strings.TrimSpace(value) != "" {
		cfg.Server.BaseURL = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(envTimeout); ok && strings.TrimSpace(value) != "" {
		cfg.Server.Timeout = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(envRetryMaxRetries); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, envRetryMaxRetries, err)
		}
		cfg.Server.Retry.MaxRetries = parsed
	}
	if value, ok := os.LookupEnv(envRetryBaseDelay); ok && strings.TrimSpace(value) != "" {
		cfg.Server.Retry.BaseDelay = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(envRetryMaxDelay); ok && strings.TrimSpace(value) != "" {
		cfg.Server.Retry.MaxDelay = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(envTopK); ok && strings.TrimSpace(value) != "" {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, envTopK, err)
		}
		cfg.Upload.TopK = parsed
	}
	if value, ok := os.LookupEnv(envCredentialsPath); ok && strings.TrimSpace(value) != "" {
		cfg.Credentials.Path = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(envLogLevel); ok && strings.TrimSpace(value) != "" {
		cfg.Logging.Level = strings.ToLower(strings.TrimSpace(value))
	}
	if value, ok := os.LookupEnv(envLogFormat); ok && strings.TrimSpace(value) != "" {
		cfg.Logging.Format = strings.ToLower(strings.TrimSpace(value))
	}
	return nil
}

func validate(cfg Config) error {
	if strings.TrimSpace(cfg.Server.BaseURL) == "" {
		return fmt.Errorf("%w: server.base_url is required", ErrInvalidConfig)
	}
	if _, err := cfg.RemoteSettings(); err != nil {
		return err
	}
	if cfg.Upload.TopK <= 0 {
		return fmt.Errorf("%w: upload.top_k must be > 0", ErrInvalidConfig)
	}
	if cfg.Upload.MaxBytes <= 0 {
		return fmt.Errorf("%w: upload.max_bytes must be > 0", ErrInvalidConfig)
	}
	if !slices.Contains(logLevels, cfg.Logging.Level) {
		return fmt.Errorf("%w: logging.level %q must be one of %s", ErrInvalidConfig, cfg.Logging.Level, strings.Join(logLevels, ", "))
	}
	if !slices.Contains(logFormats, cfg.Logging.Format) {
		return fmt.Errorf("%w: logging.format %q must be one of %s", ErrInvalidConfig, cfg.Logging.Format, strings.Join(logFormats, ", "))
	}
	return nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
