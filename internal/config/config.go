// Package config handles loading, parsing, and validating application configuration.
// It defines the structure for configuration settings, provides default values,
// loads settings from YAML files, and applies overrides from environment variables.
// file: internal/config/config.go.
package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/dkoosis/stickynotes/internal/logging"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultProfileBaseURL is the host serving the profile lookup API.
	DefaultProfileBaseURL = "https://t-midgard.milestoneinternet.com"
	// DefaultProfileTimeout bounds every profile lookup.
	DefaultProfileTimeout = 10 * time.Second
	// DefaultNotesFileName is the note file created beside the executable.
	DefaultNotesFileName = "notes.txt"
	// DefaultKeyringService is the OS keyring service holding the bearer token.
	DefaultKeyringService = "StickyNotesProfileAPI"
	// DefaultKeyringUser is the OS keyring account holding the bearer token.
	DefaultKeyringUser = "BearerToken"
)

// ServerConfig contains settings specific to the MCP server component.
type ServerConfig struct {
	// Name is reported to clients in the initialize result.
	Name string `yaml:"name"`
	// RequestTimeout bounds the handling of a single JSON-RPC request.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// NotesConfig controls the note file.
type NotesConfig struct {
	// Path is the note file. Empty means notes.txt beside the executable.
	// Supports '~' expansion for home directory.
	Path string `yaml:"path"`
	// Watch enables fsnotify change notifications for the notes://latest resource.
	Watch bool `yaml:"watch"`
}

// ProfileConfig contains settings for the remote profile lookup API.
type ProfileConfig struct {
	// BaseURL is scheme and host of the profile service; the request path is fixed.
	BaseURL string `yaml:"base_url"`
	// BearerToken is sent as "Authorization: Bearer <token>". When empty the OS keyring is consulted.
	BearerToken string `yaml:"bearer_token"`
	// Timeout bounds each lookup request.
	Timeout time.Duration `yaml:"timeout"`
	// ShowInactiveProfiles is copied into every query.
	ShowInactiveProfiles bool `yaml:"show_inactive_profiles"`
}

// AuthConfig locates the bearer token in the OS keyring.
type AuthConfig struct {
	KeyringService string `yaml:"keyring_service"`
	KeyringUser    string `yaml:"keyring_user"`
	// TokenFile is used when the OS keyring is unavailable.
	TokenFile string `yaml:"token_file"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
}

// Config is the root configuration structure for the stickynotes application.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Notes   NotesConfig   `yaml:"notes"`
	Profile ProfileConfig `yaml:"profile"`
	Auth    AuthConfig    `yaml:"auth"`
	Logging LoggingConfig `yaml:"logging"`
}

// DefaultConfig returns a configuration populated with default values,
// with environment overrides already applied.
func DefaultConfig() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Name:           "AI Sticky Notes",
			RequestTimeout: 30 * time.Second,
		},
		Notes: NotesConfig{
			Path:  DefaultNotesPath(),
			Watch: true,
		},
		Profile: ProfileConfig{
			BaseURL:              DefaultProfileBaseURL,
			Timeout:              DefaultProfileTimeout,
			ShowInactiveProfiles: true,
		},
		Auth: AuthConfig{
			KeyringService: DefaultKeyringService,
			KeyringUser:    DefaultKeyringUser,
			TokenFile:      DefaultTokenFilePath(),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
	applyEnvironmentOverrides(cfg, logging.GetLogger("config_default"))
	return cfg
}

// DefaultNotesPath returns notes.txt in the directory of the running executable,
// falling back to the working directory when the executable cannot be located.
func DefaultNotesPath() string {
	exe, err := os.Executable()
	if err != nil {
		return DefaultNotesFileName
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Join(filepath.Dir(exe), DefaultNotesFileName)
}

// DefaultConfigPath returns ~/.config/stickynotes/stickynotes.yaml.
func DefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("configs", "stickynotes.yaml")
	}
	return filepath.Join(homeDir, ".config", "stickynotes", "stickynotes.yaml")
}

// DefaultTokenFilePath returns ~/.config/stickynotes/token.
func DefaultTokenFilePath() string {
	return filepath.Join(filepath.Dir(DefaultConfigPath()), "token")
}

// LoadFromFile loads configuration from the specified YAML file path.
// It starts with default values, merges the values from the YAML file,
// applies environment overrides and validates the result.
func LoadFromFile(path string) (*Config, error) {
	path, err := expandHome(path)
	if err != nil {
		return nil, err
	}

	// #nosec G304 -- Path comes from command-line flag or default, considered trusted input.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read config file: %s", path)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse config file YAML: %s", path)
	}

	applyEnvironmentOverrides(cfg, logging.GetLogger("config_load"))

	if cfg.Notes.Path, err = expandHome(cfg.Notes.Path); err != nil {
		return nil, err
	}
	if cfg.Auth.TokenFile, err = expandHome(cfg.Auth.TokenFile); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid configuration in %s", path)
	}
	return cfg, nil
}

// Load reads path when it exists and otherwise returns validated defaults.
// An explicitly requested file that is missing is an error.
func Load(path string, explicit bool) (*Config, error) {
	if path != "" {
		expanded, err := expandHome(path)
		if err != nil {
			return nil, err
		}
		if _, statErr := os.Stat(expanded); statErr == nil || explicit {
			return LoadFromFile(expanded)
		}
	}
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid default configuration")
	}
	return cfg, nil
}

// Validate checks the values that would otherwise fail later at request time.
func (c *Config) Validate() error {
	if c.Server.Name == "" {
		return errors.New("server.name must not be empty")
	}
	if c.Server.RequestTimeout <= 0 {
		return errors.Newf("server.request_timeout must be positive, got %s", c.Server.RequestTimeout)
	}
	if c.Notes.Path == "" {
		return errors.New("notes.path must not be empty")
	}
	if c.Profile.Timeout <= 0 {
		return errors.Newf("profile.timeout must be positive, got %s", c.Profile.Timeout)
	}
	u, err := url.Parse(c.Profile.BaseURL)
	if err != nil {
		return errors.Wrapf(err, "profile.base_url is not a valid URL: %q", c.Profile.BaseURL)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Newf("profile.base_url must be an absolute http(s) URL, got %q", c.Profile.BaseURL)
	}
	return nil
}

// applyEnvironmentOverrides applies configuration overrides from environment variables.
// Environment variables take precedence over values set in configuration files or defaults.
func applyEnvironmentOverrides(config *Config, logger logging.Logger) {
	if name := os.Getenv("STICKYNOTES_SERVER_NAME"); name != "" {
		logger.Debug("Overriding server name from environment.", "envVar", "STICKYNOTES_SERVER_NAME", "value", name)
		config.Server.Name = name
	}

	if notesPath := os.Getenv("STICKYNOTES_NOTES_PATH"); notesPath != "" {
		expanded, err := expandHome(notesPath)
		if err != nil {
			logger.Warn("Could not expand '~' in STICKYNOTES_NOTES_PATH env var.", "error", err)
			expanded = notesPath
		}
		logger.Debug("Overriding notes path from environment.", "envVar", "STICKYNOTES_NOTES_PATH", "value", expanded)
		config.Notes.Path = expanded
	}

	if watch := os.Getenv("STICKYNOTES_NOTES_WATCH"); watch != "" {
		if v, err := strconv.ParseBool(watch); err == nil {
			config.Notes.Watch = v
		} else {
			logger.Warn("Invalid STICKYNOTES_NOTES_WATCH environment variable ignored.", "value", watch, "error", err)
		}
	}

	if baseURL := os.Getenv("STICKYNOTES_PROFILE_URL"); baseURL != "" {
		logger.Debug("Overriding profile base URL from environment.", "envVar", "STICKYNOTES_PROFILE_URL", "value", baseURL)
		config.Profile.BaseURL = baseURL
	}

	tokenSource := "keyring"
	if config.Profile.BearerToken != "" {
		tokenSource = "config file"
	}
	if token := os.Getenv("STICKYNOTES_PROFILE_TOKEN"); token != "" {
		config.Profile.BearerToken = token
		tokenSource = "environment variable"
	}
	// Never log the token itself.
	logger.Debug("Profile bearer token source determined.", "source", tokenSource)

	if timeout := os.Getenv("STICKYNOTES_PROFILE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			config.Profile.Timeout = d
		} else {
			logger.Warn("Invalid STICKYNOTES_PROFILE_TIMEOUT environment variable ignored.", "value", timeout, "error", err)
		}
	}

	if level := os.Getenv("STICKYNOTES_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
}

// expandHome expands a leading '~' to the user's home directory.
func expandHome(path string) (string, error) {
	if len(path) == 0 || path[0] != '~' {
		return path, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory to expand path")
	}
	return filepath.Join(homeDir, path[1:]), nil
}
