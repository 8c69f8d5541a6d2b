// Package internal provides the main application initialization and
// runtime logic.
package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/valetops/tagtrack/internal/tagid"
	"github.com/valetops/tagtrack/internal/vtime"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Site    SiteConfig        `yaml:"site"`
	Tags    TagsConfig        `yaml:"tags"`
	Tracker TrackerConfig     `yaml:"tracker"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	DayLog  DayLogConfig      `yaml:"daylog"`
	Auth    AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Site.Validate(); err != nil {
		return err
	}
	if err := c.Tags.Validate(); err != nil {
		return err
	}
	if err := c.Tracker.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.DayLog.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
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

// Address returns the HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SiteConfig identifies the valet site and its operating hours.
type SiteConfig struct {
	Name         string `yaml:"name"`
	Handle       string `yaml:"handle"`
	Open         string `yaml:"open"`
	Close        string `yaml:"close"`
	BlockMinutes int    `yaml:"block_minutes"`
}

// Validate validates the site configuration.
func (c *SiteConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Handle, validation.Required),
		validation.Field(&c.Open, validation.Required),
		validation.Field(&c.Close, validation.Required),
		validation.Field(&c.BlockMinutes, validation.Min(5), validation.Max(120)),
	); err != nil {
		return err
	}
	open, err := vtime.Parse(c.Open, 0)
	if err != nil {
		return fmt.Errorf("site.open: %w", err)
	}
	closeAt, err := vtime.Parse(c.Close, 0)
	if err != nil {
		return fmt.Errorf("site.close: %w", err)
	}
	if closeAt <= open {
		return fmt.Errorf("site.close %s must be after site.open %s", c.Close, c.Open)
	}
	return nil
}

// Hours returns the parsed opening and closing times. Validate must
// have succeeded first.
func (c *SiteConfig) Hours() (open, closeAt vtime.VTime) {
	open, _ = vtime.Parse(c.Open, 0)
	closeAt, _ = vtime.Parse(c.Close, 0)
	return open, closeAt
}

// TagsConfig holds the day's tag context: which tag identifiers exist
// and how each classifies.
type TagsConfig struct {
	Regular     []string `yaml:"regular"`
	Oversize    []string `yaml:"oversize"`
	Retired     []string `yaml:"retired"`
	IgnoreChars string   `yaml:"ignore_chars"`
}

// Validate validates the tag lists by building a context from them.
func (c *TagsConfig) Validate() error {
	if len(c.Regular)+len(c.Oversize) == 0 {
		return fmt.Errorf("tags: at least one regular or oversize tag is required")
	}
	_, err := c.Context()
	return err
}

// Context builds the tag context from the configured lists.
func (c *TagsConfig) Context() (*tagid.Context, error) {
	return tagid.NewContext(c.Regular, c.Oversize, c.Retired, c.IgnoreChars)
}

// TrackerConfig holds engine policy knobs.
type TrackerConfig struct {
	// ConfirmMinutes is the "meaningful stay" threshold: destroying
	// the check-out of a stay at least this long requires explicit
	// confirmation. Zero disables the guard.
	ConfirmMinutes int `yaml:"confirm_minutes"`
}

// Validate validates the tracker configuration.
func (c *TrackerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ConfirmMinutes, validation.Min(0), validation.Max(1440)),
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

// DayLogConfig holds the directory for the flat day-log files.
type DayLogConfig struct {
	Dir string `yaml:"dir"`
}

// Validate validates the day-log configuration.
func (c *DayLogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Dir, validation.Required),
	)
}

// AuthConfig holds API authentication configuration.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Enabled reports whether bearer-token auth is enforced.
func (c *AuthConfig) Enabled() bool {
	return c.Mode == AuthModeToken
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth.token is required in token mode")
	}
	return nil
}

// NewDefaultConfig returns a configuration with sensible defaults for
// a single-operator setup.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP:     HTTPConfig{Port: 8080},
		},
		Site: SiteConfig{
			Handle:       "valet",
			Open:         "07:30",
			Close:        "22:00",
			BlockMinutes: 30,
		},
		Tags: TagsConfig{
			IgnoreChars: tagid.DefaultIgnoreChars,
		},
		Tracker: TrackerConfig{
			ConfirmMinutes: 30,
		},
		SQLite: SQLiteConfig{Path: "data/tagtrack.db"},
		DayLog: DayLogConfig{Dir: "data/daylogs"},
		Auth:   AuthConfig{Mode: AuthModeDisabled},
	}
}
