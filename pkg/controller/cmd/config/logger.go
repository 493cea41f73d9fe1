package config

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/m-mizutani/clog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/masq"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"

	"github.com/urfave/cli/v2"
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// newLogFilter redacts credentials of the warehouse and the catalog service from log attributes.
func newLogFilter() func(groups []string, a slog.Attr) slog.Attr {
	return masq.New(
		masq.WithFieldName("Authorization"),
		masq.WithFieldName("Token"),
		masq.WithFieldName("Password"),
		masq.WithFieldName("DSN"),
		masq.WithType[types.Secret](),
	)
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}

type Logger struct {
	level  string
	output string
	format string
}

func (x *Logger) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Category:    "Log",
			Name:        "log-level",
			Usage:       "Log level [debug, info, warn, error]",
			Aliases:     []string{"l"},
			EnvVars:     []string{"CATALOGSYNC_LOG_LEVEL"},
			Destination: &x.level,
			Value:       "info",
		},
		&cli.StringFlag{
			Category:    "Log",
			Name:        "log-output",
			Usage:       "Log output [stdout, stderr, file]",
			EnvVars:     []string{"CATALOGSYNC_LOG_OUTPUT"},
			Destination: &x.output,
			Value:       "stderr",
		},
		&cli.StringFlag{
			Category:    "Log",
			Name:        "log-format",
			Usage:       "Log format [json, console, auto]. auto selects console if output is a terminal",
			Aliases:     []string{"f"},
			EnvVars:     []string{"CATALOGSYNC_LOG_FORMAT"},
			Destination: &x.format,
			Value:       "auto",
		},
	}
}

func (x *Logger) Configure() (*slog.Logger, error) {
	// Log output
	var output io.Writer
	switch x.output {
	case "stdout", "-":
		output = os.Stdout
	case "stderr":
		output = os.Stderr
	default:
		f, err := os.OpenFile(filepath.Clean(x.output), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0600)
		if err != nil {
			return nil, goerr.Wrap(err, "Failed to open log file", goerr.V("path", x.output))
		}
		output = f
	}

	level, ok := logLevels[x.level]
	if !ok {
		return nil, goerr.Wrap(types.ErrInvalidOption, "Invalid log level", goerr.V("level", x.level))
	}

	format := x.format
	if format == "auto" {
		format = "json"
		if f, ok := output.(*os.File); ok && isTerminal(f) {
			format = "console"
		}
	}

	filter := newLogFilter()

	var handler slog.Handler
	switch format {
	case "console":
		handler = clog.New(
			clog.WithWriter(output),
			clog.WithLevel(level),
			clog.WithReplaceAttr(filter),
			clog.WithSource(true),
			clog.WithColorMap(&clog.ColorMap{
				Level: map[slog.Level]*color.Color{
					slog.LevelDebug: color.New(color.FgGreen, color.Bold),
					slog.LevelInfo:  color.New(color.FgCyan, color.Bold),
					slog.LevelWarn:  color.New(color.FgYellow, color.Bold),
					slog.LevelError: color.New(color.FgRed, color.Bold),
				},
				LevelDefault: color.New(color.FgBlue, color.Bold),
				Time:         color.New(color.FgWhite),
				Message:      color.New(color.FgHiWhite),
				AttrKey:      color.New(color.FgHiCyan),
				AttrValue:    color.New(color.FgHiWhite),
			}),
		)
	case "json":
		handler = slog.NewJSONHandler(output, &slog.HandlerOptions{
			AddSource:   true,
			Level:       level,
			ReplaceAttr: filter,
		})

	default:
		return nil, goerr.Wrap(types.ErrInvalidOption, "Invalid log format", goerr.V("format", x.format))
	}

	return slog.New(handler), nil
}

func (x *Logger) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("level", x.level),
		slog.String("output", x.output),
		slog.String("format", x.format),
	)
}
