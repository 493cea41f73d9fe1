package cmd

import (
	"encoding/json"
	"io"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/utils"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Generate or validate a config file",
		Subcommands: []*cli.Command{
			configTemplateCommand(),
			configValidateCommand(),
		},
	}
}

func configTemplateCommand() *cli.Command {
	var format string

	return &cli.Command{
		Name:  "template",
		Usage: "Print a config file template with default values",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Usage:       "Template format [yaml, json]",
				Destination: &format,
				Value:       "yaml",
			},
		},
		Action: func(c *cli.Context) error {
			var p pipeline
			return writeConfigTemplate(os.Stdout, format, p.Flags())
		},
	}
}

// writeConfigTemplate writes default values of flags keyed by flag name.
func writeConfigTemplate(w io.Writer, format string, flags []cli.Flag) error {
	values := map[string]any{}
	for _, f := range flags {
		if v, ok := flagDefault(f); ok {
			values[f.Names()[0]] = v
		}
	}

	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(values); err != nil {
			return goerr.Wrap(err, "failed to encode template")
		}
		if err := enc.Close(); err != nil {
			return goerr.Wrap(err, "failed to flush template")
		}
		return nil

	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(values); err != nil {
			return goerr.Wrap(err, "failed to encode template")
		}
		return nil

	default:
		return goerr.Wrap(types.ErrInvalidOption, "invalid template format", goerr.V("format", format))
	}
}

func configValidateCommand() *cli.Command {
	var (
		p       pipeline
		unknown []string
	)

	return &cli.Command{
		Name:  "validate",
		Usage: "Validate the config file given by --config without connecting to any service",
		Before: func(c *cli.Context) error {
			var err error
			unknown, err = loadConfigFile(c)
			return err
		},
		Flags: p.Flags(),
		Action: func(c *cli.Context) error {
			if c.String("config") == "" {
				return goerr.Wrap(types.ErrInvalidOption, "--config is required")
			}
			// keys of other commands are valid in a shared config file
			known := map[string]bool{}
			flags := append([]cli.Flag{}, c.App.Flags...)
			for _, cmd := range c.App.Commands {
				flags = append(flags, cmd.Flags...)
			}
			for _, f := range flags {
				for _, name := range f.Names() {
					known[name] = true
				}
			}
			var invalid []string
			for _, key := range unknown {
				if !known[key] {
					invalid = append(invalid, key)
				}
			}
			if len(invalid) > 0 {
				return goerr.Wrap(types.ErrInvalidOption, "unknown keys in config file", goerr.V("keys", invalid))
			}
			if err := p.validate(); err != nil {
				return err
			}

			utils.Logger().Info("config is valid", "path", c.String("config"), "config", &p)
			return nil
		},
	}
}
