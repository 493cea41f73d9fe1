package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/controller/cmd/config"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/infra"
	"github.com/secmon-lab/catalogsync/pkg/usecase"
	"github.com/secmon-lab/catalogsync/pkg/utils"
	"github.com/urfave/cli/v2"
)

func checkCommand() *cli.Command {
	var (
		warehouse config.Warehouse
		catalog   config.Catalog
		format    string
	)

	return &cli.Command{
		Name:   "test",
		Usage:  "Test connection and permissions of the warehouse and DataHub",
		Before: applyConfigFile,
		Flags: mergeFlags([]cli.Flag{
			&cli.StringFlag{
				Name:        "format",
				Usage:       "Output format [text, json]",
				EnvVars:     []string{"CATALOGSYNC_TEST_FORMAT"},
				Destination: &format,
				Value:       "text",
			},
		}, warehouse.Flags(), catalog.Flags()),
		Action: func(c *cli.Context) error {
			ctx := c.Context

			var options []infra.Option
			wh, err := warehouse.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to configure warehouse")
			}
			options = append(options, infra.WithWarehouse(wh))

			if client, err := catalog.Configure(); err != nil {
				utils.Logger().Warn("catalog is not checked", utils.ErrLog(err))
			} else {
				options = append(options, infra.WithCatalog(client))
			}

			report := usecase.New(infra.New(options...)).Check(ctx)
			if err := printCheckReport(os.Stdout, format, report); err != nil {
				return err
			}

			if !report.OK() {
				return goerr.Wrap(types.ErrConnection, "connection test failed")
			}
			return nil
		},
	}
}

func printCheckReport(w io.Writer, format string, report *model.CheckReport) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return goerr.Wrap(err, "failed to encode report")
		}
		return nil

	case "text":
		for _, item := range report.Items {
			status := "OK"
			switch {
			case item.Skipped:
				status = "SKIP"
			case !item.OK:
				status = "NG"
			}

			line := fmt.Sprintf("[%-4s] %s", status, item.Name)
			if item.Error != "" {
				line += ": " + item.Error
			}
			if len(item.Detail) > 0 {
				raw, err := json.Marshal(item.Detail)
				if err != nil {
					return goerr.Wrap(err, "failed to encode detail", goerr.V("name", item.Name))
				}
				line += " " + string(raw)
			}
			if _, err := fmt.Fprintln(w, line); err != nil {
				return goerr.Wrap(err, "failed to write report")
			}
		}
		return nil

	default:
		return goerr.Wrap(types.ErrInvalidOption, "invalid output format", goerr.V("format", format))
	}
}
