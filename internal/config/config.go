// Package config loads runtime settings from an optional sheetwatch.yaml
// and SHEETWATCH_* environment variables on top of built-in defaults.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Source kinds.
const (
	SourceSheets = "sheets"
	SourceXLSX   = "xlsx"
	SourceCSV    = "csv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SHEETWATCH"

// Config is the full runtime configuration.
type Config struct {
	Discord Discord
	Source  Source
	State   State
	Monitor Monitor
	Reports Reports
	Metrics Metrics
	DryRun  bool
}

// Discord configures the notification sink.
type Discord struct {
	Token         string
	Default       string // channel ids
	Suspended     string
	General       string
	Reports       string
	Footer        string
	RatePerSecond float64
}

// Source configures where rows are read from.
type Source struct {
	Kind            string
	SheetID         string
	CredentialsFile string
	Range           string
	Path            string // xlsx or csv file
	Sheet           string // xlsx sheet; first sheet when empty
}

// State names the files kept under Dir.
type State struct {
	Dir      string
	Snapshot string
	Monthly  string
	Weekly   string
	Journal  string
	Synonyms string // optional synonym table override
}

// Path resolves a state file name against Dir. Absolute names are kept.
func (s State) Path(name string) string {
	if name == "" || filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.Dir, name)
}

// Monitor configures the diff cycle.
type Monitor struct {
	Interval      time.Duration
	FetchAttempts int
	FetchDelay    time.Duration
	FetchTimeout  time.Duration
}

// Reports configures scheduled report emission.
type Reports struct {
	Enabled    bool
	Hour       int
	MonthlyDay int
	WeeklyDay  time.Weekday
}

// Metrics configures the Prometheus endpoint. Empty Addr disables it.
type Metrics struct {
	Addr string
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Discord: Discord{
			Footer:        "CANELLA & SANTOS CONTABILIDADE EIRELI",
			RatePerSecond: 1,
		},
		Source: Source{
			Kind:  SourceSheets,
			Range: "A:D",
		},
		State: State{
			Dir:      "state",
			Snapshot: "snapshot.json",
			Monthly:  "monthly_history.json",
			Weekly:   "weekly_suspended.json",
			Journal:  "journal.db",
		},
		Monitor: Monitor{
			Interval:      time.Minute,
			FetchAttempts: 3,
			FetchDelay:    5 * time.Second,
			FetchTimeout:  30 * time.Second,
		},
		Reports: Reports{
			Enabled:    true,
			Hour:       9,
			MonthlyDay: 1,
			WeeklyDay:  time.Monday,
		},
	}
}

// legacyEnv lists the variable names of the first deployment that are still
// honoured after the SHEETWATCH_ ones.
var legacyEnv = map[string][]string{
	"discord.token":              {"DISCORD_TOKEN"},
	"discord.channels.default":   {"DISCORD_CHANNEL_ID"},
	"discord.channels.general":   {"DISCORD_CHANNEL_GENERAL"},
	"source.sheet_id":            {"GOOGLE_SHEET_ID"},
	"source.credentials_file":    {"GOOGLE_CREDENTIALS_FILE"},
	"discord.channels.suspended": {"DISCORD_CHANNEL_SUSPENDED"},
}

var keys = []string{
	"discord.token",
	"discord.channels.default",
	"discord.channels.suspended",
	"discord.channels.general",
	"discord.channels.reports",
	"discord.footer",
	"discord.rate_per_second",
	"source.kind",
	"source.sheet_id",
	"source.credentials_file",
	"source.range",
	"source.path",
	"source.sheet",
	"state.dir",
	"state.snapshot",
	"state.monthly",
	"state.weekly",
	"state.journal",
	"state.synonyms",
	"monitor.interval",
	"monitor.fetch_attempts",
	"monitor.fetch_delay",
	"monitor.fetch_timeout",
	"reports.enabled",
	"reports.hour",
	"reports.monthly_day",
	"reports.weekly_day",
	"metrics.addr",
	"dry_run",
}

// Load reads sheetwatch.yaml from dir, when present, and applies
// environment overrides. A missing file is not an error; a malformed one is.
func Load(dir string) (Config, error) {
	v := viper.New()
	v.SetConfigName("sheetwatch")
	v.SetConfigType("yaml")
	if dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath(".")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, key := range keys {
		names := append([]string{EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, legacyEnv[key]...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return Config{}, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read: %w", err)
		}
	}
	return fromViper(v)
}

// fromViper overlays every set key onto the defaults.
func fromViper(v *viper.Viper) (Config, error) {
	cfg := Default()

	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	str("discord.token", &cfg.Discord.Token)
	str("discord.channels.default", &cfg.Discord.Default)
	str("discord.channels.suspended", &cfg.Discord.Suspended)
	str("discord.channels.general", &cfg.Discord.General)
	str("discord.channels.reports", &cfg.Discord.Reports)
	str("discord.footer", &cfg.Discord.Footer)
	str("source.kind", &cfg.Source.Kind)
	str("source.sheet_id", &cfg.Source.SheetID)
	str("source.credentials_file", &cfg.Source.CredentialsFile)
	str("source.range", &cfg.Source.Range)
	str("source.path", &cfg.Source.Path)
	str("source.sheet", &cfg.Source.Sheet)
	str("state.dir", &cfg.State.Dir)
	str("state.snapshot", &cfg.State.Snapshot)
	str("state.monthly", &cfg.State.Monthly)
	str("state.weekly", &cfg.State.Weekly)
	str("state.journal", &cfg.State.Journal)
	str("state.synonyms", &cfg.State.Synonyms)
	str("metrics.addr", &cfg.Metrics.Addr)

	dur := func(key string, dst *time.Duration) {
		if v.IsSet(key) {
			*dst = v.GetDuration(key)
		}
	}
	dur("monitor.interval", &cfg.Monitor.Interval)
	dur("monitor.fetch_delay", &cfg.Monitor.FetchDelay)
	dur("monitor.fetch_timeout", &cfg.Monitor.FetchTimeout)

	integer := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	integer("monitor.fetch_attempts", &cfg.Monitor.FetchAttempts)
	integer("reports.hour", &cfg.Reports.Hour)
	integer("reports.monthly_day", &cfg.Reports.MonthlyDay)

	if v.IsSet("discord.rate_per_second") {
		cfg.Discord.RatePerSecond = v.GetFloat64("discord.rate_per_second")
	}
	if v.IsSet("reports.enabled") {
		cfg.Reports.Enabled = v.GetBool("reports.enabled")
	}
	if v.IsSet("dry_run") {
		cfg.DryRun = v.GetBool("dry_run")
	}
	if v.IsSet("reports.weekly_day") {
		wd, err := ParseWeekday(v.GetString("reports.weekly_day"))
		if err != nil {
			return Config{}, err
		}
		cfg.Reports.WeeklyDay = wd
	}

	cfg.Source.Kind = strings.ToLower(strings.TrimSpace(cfg.Source.Kind))
	return cfg, nil
}

// ParseWeekday accepts English weekday names, in full or three letters.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if s == name || s == name[:3] {
			return d, nil
		}
	}
	return 0, &ConfigurationError{Invalid: []string{"reports.weekly_day=" + s}}
}
