package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/starford/opsdash/internal/history"
	"github.com/starford/opsdash/internal/metrics"
	"github.com/starford/opsdash/internal/source"
)

// Source kinds.
const (
	SourceKindCSV    = "csv"
	SourceKindSheets = "sheets"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
	AuthModeBasic    = "basic"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Source  SourceConfig      `yaml:"source"`
	Cache   CacheConfig       `yaml:"cache"`
	Metrics MetricsConfig     `yaml:"metrics"`
	History HistoryConfig     `yaml:"history"`
	Auth    AuthConfig        `yaml:"auth"`
	Events  EventsConfig      `yaml:"events"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	if err := c.History.Validate(); err != nil {
		return fmt.Errorf("history: %w", err)
	}
	if err := c.Events.Validate(); err != nil {
		return fmt.Errorf("events: %w", err)
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

// SourceConfig selects where task rows are read from.
type SourceConfig struct {
	Kind    string        `yaml:"kind"`
	Timeout time.Duration `yaml:"timeout"`
	// Poll refetches on an interval so history and events advance without
	// client traffic. Zero disables polling.
	Poll   time.Duration `yaml:"poll"`
	CSV    CSVConfig     `yaml:"csv"`
	Sheets SheetsConfig  `yaml:"sheets"`
}

// Validate validates the source configuration.
func (c *SourceConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Kind, validation.Required, validation.In(SourceKindCSV, SourceKindSheets)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
		validation.Field(&c.Poll, validation.Min(time.Duration(0))),
	); err != nil {
		return err
	}
	switch c.Kind {
	case SourceKindCSV:
		return c.CSV.Validate()
	default:
		return c.Sheets.Validate()
	}
}

// CSVConfig points at a local CSV export of the task sheet.
type CSVConfig struct {
	Path string `yaml:"path"`
	// Watch invalidates the cache as soon as the file changes.
	Watch bool `yaml:"watch"`
}

// Validate validates the CSV configuration.
func (c *CSVConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SheetsConfig addresses a Google Sheets worksheet.
type SheetsConfig struct {
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	Worksheet       string `yaml:"worksheet"`
	CredentialsFile string `yaml:"credentials_file"`
	APIKey          string `yaml:"api_key"`
}

// Validate validates the Sheets configuration.
func (c *SheetsConfig) Validate() error {
	if c.Worksheet == "" {
		c.Worksheet = source.DefaultWorksheet
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.SpreadsheetID, validation.Required),
	); err != nil {
		return err
	}
	if c.CredentialsFile == "" && c.APIKey == "" {
		return fmt.Errorf("sheets: credentials_file or api_key is required")
	}
	return nil
}

// CacheConfig controls snapshot reuse.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// Validate validates the cache configuration.
func (c *CacheConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.TTL, validation.Min(time.Duration(0))),
	)
}

// MetricsConfig tunes metric computation.
type MetricsConfig struct {
	OverdueAfterDays int `yaml:"overdue_after_days"`
}

// Validate validates the metrics configuration.
func (c *MetricsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.OverdueAfterDays, validation.Required, validation.Min(1)),
	)
}

// HistoryConfig selects the metrics history database. An empty driver
// disables history.
type HistoryConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Retain int    `yaml:"retain"`
}

// Enabled reports whether history is configured.
func (c *HistoryConfig) Enabled() bool {
	return c.Driver != ""
}

// Validate validates the history configuration.
func (c *HistoryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.In(history.DriverSQLite, history.DriverPostgres)),
		validation.Field(&c.DSN, validation.When(c.Driver != "", validation.Required)),
		validation.Field(&c.Retain, validation.Min(0)),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
//   - "basic": HTTP basic auth against Users, a map of username to bcrypt hash.
type AuthConfig struct {
	Mode  string            `yaml:"mode"`
	Token string            `yaml:"token"`
	Users map[string]string `yaml:"users"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken, AuthModeBasic)),
	); err != nil {
		return err
	}
	switch c.Mode {
	case AuthModeToken:
		if c.Token == "" {
			return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
		}
	case AuthModeBasic:
		if len(c.Users) == 0 {
			return fmt.Errorf("auth: mode is %q but no users are configured", AuthModeBasic)
		}
		for user, hash := range c.Users {
			if _, err := bcrypt.Cost([]byte(hash)); err != nil {
				return fmt.Errorf("auth: user %q: password must be a bcrypt hash: %w", user, err)
			}
		}
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken || c.Mode == AuthModeBasic
}

// EventsConfig tunes server-sent events.
type EventsConfig struct {
	Throttle time.Duration `yaml:"throttle"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Throttle, validation.Min(time.Duration(0))),
	)
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
		Source: SourceConfig{
			Kind:    SourceKindCSV,
			Timeout: 30 * time.Second,
			CSV: CSVConfig{
				Path:  "./data/tasks.csv",
				Watch: true,
			},
			Sheets: SheetsConfig{
				Worksheet: source.DefaultWorksheet,
			},
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
		Metrics: MetricsConfig{
			OverdueAfterDays: metrics.DefaultOverdueDays,
		},
		History: HistoryConfig{
			Driver: history.DriverSQLite,
			DSN:    "./opsdash.db",
			Retain: 1000,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Events: EventsConfig{
			Throttle: 2 * time.Second,
		},
	}
}
