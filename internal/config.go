package internal

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/questcard/internal/node"
	"github.com/starford/questcard/internal/proxy"
	"github.com/starford/questcard/internal/quest"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Vault    VaultConfig       `yaml:"vault"`
	SQLite   SQLiteConfig      `yaml:"sqlite"`
	Proxy    ProxyConfig       `yaml:"proxy"`
	Resolver ResolverConfig    `yaml:"resolver"`
	Theme    node.Theme        `yaml:"theme"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Proxy.Validate(); err != nil {
		return fmt.Errorf("proxy: %w", err)
	}
	if err := c.Resolver.Validate(); err != nil {
		return fmt.Errorf("resolver: %w", err)
	}
	if c.Proxy.Enabled() && c.Proxy.Port == c.App.HTTP.Port {
		return fmt.Errorf("proxy: port %d is already used by the HTTP server", c.Proxy.Port)
	}
	return nil
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

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the path to the document vault directory.
type VaultConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ProxyConfig holds the same-origin quest proxy configuration.
// Port 0 disables the proxy server.
type ProxyConfig struct {
	Port        int    `yaml:"port"`
	UpstreamURL string `yaml:"upstream_url"`
	Path        string `yaml:"path"`
}

// Enabled reports whether the proxy server should be started.
func (c *ProxyConfig) Enabled() bool {
	return c.Port != 0
}

// Address returns the proxy server address.
func (c *ProxyConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the proxy configuration.
func (c *ProxyConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Min(0), validation.Max(65535)),
		validation.Field(&c.UpstreamURL, validation.Required, is.URL),
		validation.Field(&c.Path, validation.Required,
			validation.By(func(v any) error {
				if !strings.HasPrefix(v.(string), "/") {
					return fmt.Errorf("must start with /")
				}
				return nil
			})),
	)
}

// ResolverConfig configures how quest cards are fetched and rendered.
type ResolverConfig struct {
	ProxyURL      string        `yaml:"proxy_url"`
	KeyTemplate   string        `yaml:"key_template"`
	Timezone      string        `yaml:"timezone"`
	RenderTimeout time.Duration `yaml:"render_timeout"`
}

// Validate validates the resolver configuration.
func (c *ResolverConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ProxyURL, validation.Required, is.URL),
		validation.Field(&c.KeyTemplate, validation.Required,
			validation.By(func(v any) error {
				if !strings.Contains(v.(string), "{id}") {
					return fmt.Errorf("must contain {id}")
				}
				return nil
			})),
		validation.Field(&c.Timezone, validation.Required,
			validation.By(func(v any) error {
				_, err := time.LoadLocation(v.(string))
				return err
			})),
		validation.Field(&c.RenderTimeout, validation.Min(time.Duration(0))),
	)
}

// Location returns the time zone quest periods are displayed in.
// An unknown zone falls back to UTC.
func (c *ResolverConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path: "./vault",
		},
		SQLite: SQLiteConfig{
			Path: "./questcard.db",
		},
		Proxy: ProxyConfig{
			Port:        1236,
			UpstreamURL: proxy.DefaultUpstreamURL,
			Path:        "/quest",
		},
		Resolver: ResolverConfig{
			ProxyURL:      "http://localhost:1236/quest",
			KeyTemplate:   quest.DefaultKeyTemplate,
			Timezone:      "UTC",
			RenderTimeout: 3 * time.Second,
		},
		Theme: node.Theme{
			EmbedBlock: node.ClassNames{
				Base:  "VantientQuest__container",
				Focus: "VantientQuest__container--focus",
			},
		},
	}
}
