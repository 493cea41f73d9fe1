package cmd

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/utils"
	"github.com/urfave/cli/v2"
)

func runCommand() *cli.Command {
	var (
		p       pipeline
		summary bool
	)

	return &cli.Command{
		Name:   "run",
		Usage:  "Extract catalog metadata from the warehouse and upsert it to DataHub",
		Before: applyConfigFile,
		Flags: mergeFlags([]cli.Flag{
			&cli.BoolFlag{
				Name:        "summary-only",
				Usage:       "Print only one line summary instead of JSON result",
				EnvVars:     []string{"CATALOGSYNC_SUMMARY_ONLY"},
				Destination: &summary,
			},
		}, p.Flags()),
		Action: func(c *cli.Context) error {
			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			utils.Logger().Info("starting run", "config", &p)

			uc, cfg, closers, err := p.build(ctx, nil)
			defer closeAll(ctx, closers)
			if err != nil {
				return err
			}

			result, runErr := uc.Run(ctx, cfg)
			if result == nil {
				return runErr
			}

			if summary {
				utils.SafeWrite(ctx, os.Stdout, []byte(result.Summary()+"\n"))
			} else {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(result); err != nil {
					return goerr.Wrap(err, "failed to encode result")
				}
			}

			if runErr != nil {
				return runErr
			}
			if !result.Success {
				return goerr.Wrap(types.ErrRun, "run finished with failures", goerr.V("run_id", result.RunID))
			}
			return nil
		},
	}
}
