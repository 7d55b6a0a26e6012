package config

import (
	"fmt"
	"strings"
)

// ConfigurationError lists every setting that prevents startup.
type ConfigurationError struct {
	Missing []string
	Invalid []string
}

func (e *ConfigurationError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "invalid "+strings.Join(e.Invalid, ", "))
	}
	return "configuration: " + strings.Join(parts, "; ")
}

// Validate checks the settings needed to run a cycle. needSink is false for
// commands that only read local state or run dry.
func (c Config) Validate(needSink bool) error {
	e := &ConfigurationError{}

	if needSink && !c.DryRun {
		if c.Discord.Token == "" {
			e.Missing = append(e.Missing, "discord.token")
		}
		if c.Discord.Default == "" {
			e.Missing = append(e.Missing, "discord.channels.default")
		}
	}

	switch c.Source.Kind {
	case SourceSheets:
		if c.Source.SheetID == "" {
			e.Missing = append(e.Missing, "source.sheet_id")
		}
	case SourceXLSX, SourceCSV:
		if c.Source.Path == "" {
			e.Missing = append(e.Missing, "source.path")
		}
	default:
		e.Invalid = append(e.Invalid, fmt.Sprintf("source.kind=%q", c.Source.Kind))
	}

	if c.State.Dir == "" {
		e.Missing = append(e.Missing, "state.dir")
	}
	if c.Monitor.Interval <= 0 {
		e.Invalid = append(e.Invalid, "monitor.interval")
	}
	if c.Monitor.FetchAttempts < 1 {
		e.Invalid = append(e.Invalid, "monitor.fetch_attempts")
	}
	if c.Reports.Hour < 0 || c.Reports.Hour > 23 {
		e.Invalid = append(e.Invalid, "reports.hour")
	}
	if c.Reports.MonthlyDay < 1 || c.Reports.MonthlyDay > 31 {
		e.Invalid = append(e.Invalid, "reports.monthly_day")
	}

	if len(e.Missing) == 0 && len(e.Invalid) == 0 {
		return nil
	}
	return e
}

// ValidateState checks only what local read-only commands need.
func (c Config) ValidateState() error {
	if c.State.Dir == "" {
		return &ConfigurationError{Missing: []string{"state.dir"}}
	}
	return nil
}
