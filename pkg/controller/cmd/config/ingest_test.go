package config_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/catalogsync/pkg/controller/cmd/config"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/urfave/cli/v2"
)

func runFlags(t *testing.T, flags []cli.Flag, args []string, action func(c *cli.Context) error) {
	t.Helper()
	app := cli.App{
		Name:   "test",
		Flags:  flags,
		Action: action,
	}
	gt.NoError(t, app.Run(append([]string{"cmd"}, args...)))
}

func TestIngestDefault(t *testing.T) {
	var ingest config.Ingest
	runFlags(t, ingest.Flags(), nil, func(c *cli.Context) error {
		cfg, err := ingest.Configure(types.WarehouseSnowflake, nil)
		gt.NoError(t, err)
		gt.Equal(t, cfg.Platform, types.Platform("snowflake"))
		gt.Equal(t, cfg.Env, types.DefaultEnv)
		gt.Equal(t, cfg.Actor, model.DefaultActor)
		gt.Equal(t, cfg.BatchSize, 100)
		gt.Equal(t, cfg.MaxRetries, 3)
		gt.True(t, cfg.Structural)
		gt.True(t, cfg.AccessControl)
		gt.False(t, cfg.FailFast)
		gt.A(t, ingest.UseCaseOptions()).Length(2)
		return nil
	})
}

func TestIngestOverride(t *testing.T) {
	var ingest config.Ingest
	args := []string{
		"--platform", "postgres",
		"--env", "DEV",
		"--extract-access-control=false",
		"--batch-size", "10",
		"--max-retries", "0",
		"--fail-fast",
	}
	runFlags(t, ingest.Flags(), args, func(c *cli.Context) error {
		cfg, err := ingest.Configure(types.WarehouseSnowflake, nil)
		gt.NoError(t, err)
		gt.Equal(t, cfg.Platform, types.Platform("postgres"))
		gt.Equal(t, cfg.Env, types.Env("DEV"))
		gt.Equal(t, cfg.BatchSize, 10)
		gt.Equal(t, cfg.MaxRetries, 0)
		gt.True(t, cfg.FailFast)
		gt.True(t, cfg.Structural)
		gt.False(t, cfg.AccessControl)
		gt.A(t, cfg.Categories()).Length(1)
		return nil
	})
}

func TestIngestInvalid(t *testing.T) {
	testCases := map[string][]string{
		"zero batch size":    {"--batch-size", "0"},
		"negative retries":   {"--max-retries", "-1"},
		"invalid platform":   {"--platform", "Snow Flake"},
		"no category":        {"--extract-structural=false", "--extract-access-control=false"},
		"env with separator": {"--env", "PROD,DEV"},
	}

	for name, args := range testCases {
		t.Run(name, func(t *testing.T) {
			var ingest config.Ingest
			runFlags(t, ingest.Flags(), args, func(c *cli.Context) error {
				_, err := ingest.Configure(types.WarehouseSnowflake, nil)
				gt.Error(t, err)
				return nil
			})
		})
	}
}
