package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/utils"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

func mergeFlags(flags ...[]cli.Flag) []cli.Flag {
	var merged []cli.Flag
	for _, f := range flags {
		merged = append(merged, f...)
	}
	return merged
}

// readConfigFile reads a YAML file whose keys are flag names.
func readConfigFile(path string) (map[string]any, error) {
	raw, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read config file", goerr.V("path", path))
	}

	values := map[string]any{}
	if err := yaml.Unmarshal(raw, &values); err != nil {
		return nil, goerr.Wrap(types.ErrInvalidOption, "failed to parse config file", goerr.V("path", path), goerr.V("error", err.Error()))
	}
	return values, nil
}

// applyConfigFile sets values of the --config file to flags of the command. Flags given by CLI or environment variables are kept. Keys that are not flags of the command are ignored because one file is shared by all commands.
func applyConfigFile(c *cli.Context) error {
	_, err := loadConfigFile(c)
	return err
}

// loadConfigFile applies the --config file and returns keys that are not flags of the command.
func loadConfigFile(c *cli.Context) ([]string, error) {
	path := c.String("config")
	if path == "" {
		return nil, nil
	}

	values, err := readConfigFile(path)
	if err != nil {
		return nil, err
	}

	flags := c.App.Flags
	command := c.App.Name
	if c.Command != nil && c.Command.Name != "" {
		flags = c.Command.Flags
		command = c.Command.Name
	}
	known := map[string]bool{}
	for _, f := range flags {
		for _, name := range f.Names() {
			known[name] = true
		}
	}

	var unknown []string
	for name, value := range values {
		if !known[name] {
			unknown = append(unknown, name)
			continue
		}
		if c.IsSet(name) {
			continue
		}

		items, ok := value.([]any)
		if !ok {
			items = []any{value}
		}
		for _, item := range items {
			if err := c.Set(name, configString(item)); err != nil {
				return nil, goerr.Wrap(types.ErrInvalidOption, "invalid value in config file", goerr.V("key", name), goerr.V("value", item), goerr.V("error", err.Error()))
			}
		}
	}
	sort.Strings(unknown)

	utils.Logger().Debug("config file is loaded", "path", path, "command", command, "ignored", unknown)
	return unknown, nil
}

func configString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Duration:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

// flagDefault returns default value of a flag in the form written to a config file.
func flagDefault(f cli.Flag) (any, bool) {
	switch t := f.(type) {
	case *cli.StringFlag:
		return t.Value, true
	case *cli.BoolFlag:
		return t.Value, true
	case *cli.IntFlag:
		return t.Value, true
	case *cli.Float64Flag:
		return t.Value, true
	case *cli.DurationFlag:
		return t.Value.String(), true
	case *cli.StringSliceFlag:
		if t.Value == nil {
			return []string{}, true
		}
		return t.Value.Value(), true
	default:
		return nil, false
	}
}
