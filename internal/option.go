package internal

import "github.com/valetops/tagtrack/internal/tracker"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config     *Config
	configPath string
	clock      tracker.Clock
	mcpMode    bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithConfigPath sets the path of the loaded config file so the
// application can watch it for changes.
func WithConfigPath(path string) Option {
	return func(a *application) {
		a.configPath = path
	}
}

// WithClock overrides the wall clock, used by tests.
func WithClock(clock tracker.Clock) Option {
	return func(a *application) {
		a.clock = clock
	}
}

// WithMCPMode runs the MCP stdio server instead of the HTTP server.
func WithMCPMode(enabled bool) Option {
	return func(a *application) {
		a.mcpMode = enabled
	}
}
