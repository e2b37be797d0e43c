package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Repo   RepoConfig        `yaml:"repo"`
	Client ClientConfig      `yaml:"client"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Repo.Validate(); err != nil {
		return err
	}
	if err := c.Client.Validate(); err != nil {
		return err
	}
	return c.SQLite.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds the read-only status API configuration. Port 0
// disables the API.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns the status API listen address.
func (c HTTPConfig) Address() string {
	return fmt.Sprintf("127.0.0.1:%d", c.Port)
}

// Enabled reports whether the status API should be served.
func (c HTTPConfig) Enabled() bool {
	return c.Port > 0
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Min(0), validation.Max(65535)),
	)
}

// RepoConfig holds the software repo endpoints.
type RepoConfig struct {
	// URL is the repo base; manifests, catalogs, and payloads live
	// under it.
	URL string `yaml:"url"`
	// LicenseURL, when set, enables the seat lookup for optional
	// installs.
	LicenseURL string `yaml:"license_url"`
}

// Validate validates the repo configuration.
func (c *RepoConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required, is.URL),
		validation.Field(&c.LicenseURL, is.URL),
	)
}

// ClientConfig holds per-machine identity and local paths.
type ClientConfig struct {
	// ID is the explicit client identifier; empty falls back to the
	// hostname chain.
	ID string `yaml:"id"`
	// ManagedDir is the root for everything the engine persists.
	ManagedDir string `yaml:"managed_dir"`
	// SelfServePath is the user-writable self-serve choices file;
	// empty disables self-serve.
	SelfServePath string `yaml:"self_serve_path"`
	// StopFile is watched during a pass; its appearance stops the run.
	StopFile string `yaml:"stop_file"`
}

// Validate validates the client configuration.
func (c *ClientConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ManagedDir, validation.Required),
	)
}

// SQLiteConfig holds the receipt database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8787,
			},
		},
		Client: ClientConfig{
			ManagedDir: "./managed",
		},
		SQLite: SQLiteConfig{
			Path: "./raido.db",
		},
	}
}
