package cmd

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/controller/cmd/config"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/utils"

	"github.com/urfave/cli/v2"
)

func Run(argv []string) error {
	var (
		logger     config.Logger
		envFile    string
		configFile string
	)

	app := cli.App{
		Name:        types.AppName,
		Usage:       "Sync data warehouse catalog to DataHub",
		Description: "Extract databases, schemas, tables, users and roles from a data warehouse and upsert them to DataHub",
		Version:     types.AppVersion,
		Flags: mergeFlags([]cli.Flag{
			&cli.StringFlag{
				Name:        "env-file",
				Usage:       "Load environment variables from the file. Missing .env is ignored",
				EnvVars:     []string{"CATALOGSYNC_ENV_FILE"},
				Destination: &envFile,
				Value:       ".env",
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "YAML config file keyed by flag names. CLI flags and environment variables take precedence",
				EnvVars:     []string{"CATALOGSYNC_CONFIG"},
				Destination: &configFile,
			},
		}, logger.Flags()),
		Before: func(c *cli.Context) error {
			if err := loadEnvFile(envFile, c.IsSet("env-file")); err != nil {
				return err
			}
			// Only log flags are defined at app level
			if err := applyConfigFile(c); err != nil {
				return err
			}

			logger, err := logger.Configure()
			if err != nil {
				return err
			}
			utils.SetLogger(logger)

			return nil
		},
		Commands: []*cli.Command{
			runCommand(),
			checkCommand(),
			exploreCommand(),
			configCommand(),
			entityCommand(),
			serveCommand(),
			clientCommand(),
		},
	}

	if err := app.Run(argv); err != nil {
		utils.Logger().Error("failed to run command", utils.ErrLog(err))
		return err
	}

	return nil
}

// loadEnvFile loads variables that are not set yet. The default .env is optional, but an explicitly given file must exist.
func loadEnvFile(path string, required bool) error {
	if path == "" {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return goerr.Wrap(types.ErrInvalidOption, "failed to load env file", goerr.V("path", path), goerr.V("error", err.Error()))
	}
	return nil
}
