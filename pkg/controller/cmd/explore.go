package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/controller/cmd/config"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/infra"
	"github.com/secmon-lab/catalogsync/pkg/usecase"
	"github.com/urfave/cli/v2"
)

func exploreCommand() *cli.Command {
	var (
		warehouse config.Warehouse
		req       model.ExploreRequest
		format    string
	)

	return &cli.Command{
		Name:   "explore",
		Usage:  "List databases, schemas or tables of the warehouse",
		Before: applyConfigFile,
		Flags: mergeFlags([]cli.Flag{
			&cli.StringFlag{
				Name:        "database",
				Aliases:     []string{"d"},
				Usage:       "List schemas of the database",
				Destination: &req.Database,
			},
			&cli.StringFlag{
				Name:        "schema",
				Aliases:     []string{"s"},
				Usage:       "List tables of the schema. --database is required",
				Destination: &req.Schema,
			},
			&cli.IntFlag{
				Name:        "limit",
				Usage:       "Max number of listed items",
				Destination: &req.Limit,
				Value:       model.DefaultExploreLimit,
			},
			&cli.StringFlag{
				Name:        "format",
				Usage:       "Output format [text, json]",
				EnvVars:     []string{"CATALOGSYNC_EXPLORE_FORMAT"},
				Destination: &format,
				Value:       "text",
			},
		}, warehouse.Flags()),
		Action: func(c *cli.Context) error {
			if req.Schema != "" && req.Database == "" {
				return goerr.Wrap(types.ErrInvalidOption, "--database is required with --schema")
			}

			wh, err := warehouse.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to configure warehouse")
			}

			result, err := usecase.New(infra.New(infra.WithWarehouse(wh))).Explore(c.Context, &req)
			if err != nil {
				return err
			}

			return printExploreResult(os.Stdout, format, result)
		},
	}
}

func printExploreResult(w io.Writer, format string, result *model.ExploreResult) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return goerr.Wrap(err, "failed to encode explore result")
		}
		return nil

	case "text":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tTYPE\tROWS\tSIZE\tCREATED\tCOMMENT")
		for _, item := range result.Items {
			rows, size, created := "-", "-", "-"
			if item.RowCount != nil {
				rows = humanize.Comma(*item.RowCount)
			}
			if item.Bytes != nil && *item.Bytes >= 0 {
				size = humanize.Bytes(uint64(*item.Bytes))
			}
			if item.CreatedAt != nil {
				created = humanize.Time(*item.CreatedAt)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", item.Name, item.Type, rows, size, created, item.Comment)
		}
		if err := tw.Flush(); err != nil {
			return goerr.Wrap(err, "failed to write explore result")
		}

		if _, err := fmt.Fprintf(w, "%d of %d %s(s)\n", len(result.Items), result.Total, result.Level); err != nil {
			return goerr.Wrap(err, "failed to write explore result")
		}
		return nil

	default:
		return goerr.Wrap(types.ErrInvalidOption, "invalid output format", goerr.V("format", format))
	}
}
