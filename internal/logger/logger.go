// Package logger builds the hclog loggers used by the CLI.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/hashicorp/go-hclog"
)

// EnvLevel overrides the configured level when set.
const EnvLevel = "STRIDER_LOG_LEVEL"

// NewWithOutput returns a logger writing to w at the resolved level.
func NewWithOutput(name, configured string, w io.Writer) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:        name,
		Output:      w,
		Level:       Level(configured),
		DisableTime: true,
	})
}

// Level resolves the log level: STRIDER_LOG_LEVEL wins over the configured
// value, and anything unrecognized falls back to info.
func Level(configured string) hclog.Level {
	raw := configured
	if env := os.Getenv(EnvLevel); env != "" {
		raw = env
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return hclog.Trace
	case "debug":
		return hclog.Debug
	case "warn", "warning":
		return hclog.Warn
	case "error":
		return hclog.Error
	case "off":
		return hclog.Off
	default:
		return hclog.Info
	}
}
