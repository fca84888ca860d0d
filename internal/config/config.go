// Package config loads rollcall configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/matsen/rollcall/internal/standing"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreGoogle = "google"
	StoreLocal  = "local"
)

// Defaults.
const (
	DefaultWriteTimeout      = 30 * time.Second
	DefaultReplyExpire       = 60 * time.Second
	DefaultRequestsPerSecond = 1.0
	DefaultRequestBurst      = 5
	DefaultMaxEvents         = 10
	DefaultLocalDB           = "rollcall.db"
)

// ErrMissingSetting is wrapped by every validation failure.
var ErrMissingSetting = errors.New("missing required setting")

// Config is the full rollcall configuration.
type Config struct {
	Store    string         `yaml:"store"`
	LocalDB  string         `yaml:"local_db"`
	Slack    SlackConfig    `yaml:"slack"`
	Sheets   SheetsConfig   `yaml:"sheets"`
	Standing StandingConfig `yaml:"standing"`
	Calendar CalendarConfig `yaml:"calendar"`
	Jobs     []JobConfig    `yaml:"jobs"`
}

// SlackConfig holds chat platform settings.
type SlackConfig struct {
	BotToken    string        `yaml:"bot_token"`
	AppToken    string        `yaml:"app_token"`
	ReplyExpire time.Duration `yaml:"reply_expire"`
	Debug       bool          `yaml:"debug"`
}

// SheetsConfig holds spreadsheet settings.
type SheetsConfig struct {
	SpreadsheetID     string               `yaml:"spreadsheet_id"`
	Credentials       string               `yaml:"credentials"`
	AttendanceRange   string               `yaml:"attendance_range"`
	RosterRange       string               `yaml:"roster_range"`
	NoteSheetID       int64                `yaml:"note_sheet_id"`
	NoteBase          standing.CellAddress `yaml:"note_base"`
	WriteTimeout      time.Duration        `yaml:"write_timeout"`
	RequestsPerSecond float64              `yaml:"requests_per_second"`
	RequestBurst      int                  `yaml:"request_burst"`
}

// StandingConfig holds the standing policy.
type StandingConfig struct {
	Threshold float64 `yaml:"threshold"`
}

// CalendarConfig holds calendar settings.
type CalendarConfig struct {
	ID          string `yaml:"id"`
	Credentials string `yaml:"credentials"`
	MaxEvents   int    `yaml:"max_events"`
}

// JobConfig is a scheduled job declared in the config file.
type JobConfig struct {
	When   string `yaml:"when"`
	Kind   string `yaml:"kind"`
	Target string `yaml:"target"`
	Role   string `yaml:"role,omitempty"`
	Text   string `yaml:"text,omitempty"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	return &Config{
		Store:   StoreGoogle,
		LocalDB: DefaultLocalDB,
		Slack: SlackConfig{
			ReplyExpire: DefaultReplyExpire,
		},
		Sheets: SheetsConfig{
			NoteBase:          standing.CellAddress{Row: 1, Column: 1},
			WriteTimeout:      DefaultWriteTimeout,
			RequestsPerSecond: DefaultRequestsPerSecond,
			RequestBurst:      DefaultRequestBurst,
		},
		Standing: StandingConfig{
			Threshold: standing.DefaultThreshold,
		},
		Calendar: CalendarConfig{
			ID:        "primary",
			MaxEvents: DefaultMaxEvents,
		},
	}
}

// Load reads the configuration file at path and applies environment
// overrides. An empty path selects DefaultPath; a missing default file is not
// an error, a missing explicit file is.
func Load(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath(getenv)
	}

	if path != "" {
		data, err := os.ReadFile(ExpandTilde(path))
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		case os.IsNotExist(err) && !explicit:
			// No config file yet, defaults and environment only.
		default:
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	cfg.applyEnv(getenv)
	cfg.fillDefaults()

	return cfg, nil
}

// applyEnv overrides settings from environment variables (and .env).
func (c *Config) applyEnv(getenv func(string) string) {
	set := func(dst *string, names ...string) {
		for _, name := range names {
			if v := getenv(name); v != "" {
				*dst = v
				return
			}
		}
	}

	set(&c.Store, "ROLLCALL_STORE")
	set(&c.LocalDB, "ROLLCALL_LOCAL_DB")
	set(&c.Slack.BotToken, "SLACK_BOT_TOKEN")
	set(&c.Slack.AppToken, "SLACK_APP_TOKEN")
	set(&c.Sheets.SpreadsheetID, "SPREADSHEET_ID")
	set(&c.Sheets.Credentials, "GOOGLE_CREDENTIALS", "GOOGLE_APPLICATION_CREDENTIALS")
	set(&c.Sheets.AttendanceRange, "ATTENDANCE_RANGE", "X_CHECK_RANGE")
	set(&c.Sheets.RosterRange, "ROSTER_RANGE")
	set(&c.Calendar.ID, "CALENDAR_ID")
}

func (c *Config) fillDefaults() {
	d := Default()
	c.Store = strings.ToLower(strings.TrimSpace(c.Store))
	if c.Store == "" {
		c.Store = d.Store
	}
	if c.LocalDB == "" {
		c.LocalDB = d.LocalDB
	}
	c.LocalDB = ExpandTilde(c.LocalDB)
	if c.Slack.ReplyExpire < 0 {
		c.Slack.ReplyExpire = 0
	}
	if c.Sheets.WriteTimeout <= 0 {
		c.Sheets.WriteTimeout = d.Sheets.WriteTimeout
	}
	if c.Sheets.RequestsPerSecond <= 0 {
		c.Sheets.RequestsPerSecond = d.Sheets.RequestsPerSecond
	}
	if c.Sheets.RequestBurst <= 0 {
		c.Sheets.RequestBurst = d.Sheets.RequestBurst
	}
	if c.Sheets.Credentials != "" {
		c.Sheets.Credentials = ExpandTilde(c.Sheets.Credentials)
	}
	if c.Calendar.ID == "" {
		c.Calendar.ID = d.Calendar.ID
	}
	if c.Calendar.Credentials == "" {
		c.Calendar.Credentials = c.Sheets.Credentials
	}
	c.Calendar.Credentials = ExpandTilde(c.Calendar.Credentials)
	if c.Calendar.MaxEvents <= 0 {
		c.Calendar.MaxEvents = d.Calendar.MaxEvents
	}
}

// ValidateSheets checks the settings needed to refresh standings.
func (c *Config) ValidateSheets() error {
	var missing []string
	if c.Sheets.AttendanceRange == "" {
		missing = append(missing, "sheets.attendance_range (ATTENDANCE_RANGE)")
	}
	if c.Sheets.RosterRange == "" {
		missing = append(missing, "sheets.roster_range (ROSTER_RANGE)")
	}
	switch c.Store {
	case StoreGoogle:
		if c.Sheets.SpreadsheetID == "" {
			missing = append(missing, "sheets.spreadsheet_id (SPREADSHEET_ID)")
		}
		if c.Sheets.Credentials == "" {
			missing = append(missing, "sheets.credentials (GOOGLE_CREDENTIALS)")
		}
	case StoreLocal:
	default:
		return fmt.Errorf("unknown store %q (valid: %s, %s)", c.Store, StoreGoogle, StoreLocal)
	}
	return missingErr(missing)
}

// ValidateSlack checks the settings needed to run the bot.
func (c *Config) ValidateSlack() error {
	var missing []string
	if c.Slack.BotToken == "" {
		missing = append(missing, "slack.bot_token (SLACK_BOT_TOKEN)")
	}
	if c.Slack.AppToken == "" {
		missing = append(missing, "slack.app_token (SLACK_APP_TOKEN)")
	}
	return missingErr(missing)
}

// ValidateCalendar checks the settings needed for calendar commands.
func (c *Config) ValidateCalendar() error {
	if c.Calendar.Credentials == "" {
		return missingErr([]string{"calendar.credentials (GOOGLE_CREDENTIALS)"})
	}
	return nil
}

func missingErr(missing []string) error {
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMissingSetting, strings.Join(missing, ", "))
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	cp := *c
	cp.Slack.BotToken = redact(c.Slack.BotToken)
	cp.Slack.AppToken = redact(c.Slack.AppToken)
	cp.Jobs = append([]JobConfig(nil), c.Jobs...)
	return &cp
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****"
}
