package logger

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

// SetupLogger replaces the default logger from the CLI log flags.
func SetupLogger(logLevel string, logJSON, logSource bool) {
	Init(&Config{
		Level:      ParseLevel(logLevel),
		JSON:       logJSON,
		AddSource:  logSource,
		TimeFormat: "15:04:05",
	})
}

// GetLoggerConfig reads --log-level, --log-json and --log-source from cmd.
func GetLoggerConfig(cmd *cobra.Command) (level string, json, source bool, err error) {
	flags := cmd.Flags()
	if level, err = flags.GetString("log-level"); err != nil {
		return "", false, false, fmt.Errorf("failed to get log-level flag: %w", err)
	}
	if json, err = flags.GetBool("log-json"); err != nil {
		return "", false, false, fmt.Errorf("failed to get log-json flag: %w", err)
	}
	if source, err = flags.GetBool("log-source"); err != nil {
		return "", false, false, fmt.Errorf("failed to get log-source flag: %w", err)
	}
	return level, json, source, nil
}

var (
	errorColor = lipgloss.Color("204")
	keyColor   = lipgloss.Color("111")
)

func textStyles() *charmlog.Styles {
	styles := charmlog.DefaultStyles()
	levels := []struct {
		level charmlog.Level
		label string
		color lipgloss.Color
	}{
		{charmlog.DebugLevel, "DEBUG", lipgloss.Color("63")},
		{charmlog.InfoLevel, "INFO", lipgloss.Color("86")},
		{charmlog.WarnLevel, "WARN", lipgloss.Color("192")},
		{charmlog.ErrorLevel, "ERROR", errorColor},
	}
	for _, l := range levels {
		styles.Levels[l.level] = lipgloss.NewStyle().SetString(l.label).Bold(true).Foreground(l.color)
	}
	for _, key := range []string{"isbn", "scope_id", "strategy"} {
		styles.Keys[key] = lipgloss.NewStyle().Foreground(keyColor)
	}
	styles.Keys["error"] = lipgloss.NewStyle().Foreground(errorColor)
	styles.Values["error"] = lipgloss.NewStyle().Foreground(errorColor)
	return styles
}
