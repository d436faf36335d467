package internal

import (
	"io"

	"github.com/starford/questcard/internal/quest"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config  *Config
	out     io.Writer
	fetcher quest.Fetcher
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithOutput sets where command output is written. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(a *application) {
		a.out = w
	}
}

// WithFetcher replaces the proxy client used to resolve quests.
func WithFetcher(f quest.Fetcher) Option {
	return func(a *application) {
		a.fetcher = f
	}
}
