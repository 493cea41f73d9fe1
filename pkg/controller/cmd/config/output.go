package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/secmon-lab/catalogsync/pkg/infra/cs"
	"github.com/secmon-lab/catalogsync/pkg/infra/dump"
	"github.com/urfave/cli/v2"
)

// Output is destination of dry-run. Envelopes, run logs and notifications are written there instead of external services.
type Output struct {
	dryRun bool
	output string
}

func (x *Output) Flags() []cli.Flag {
	category := "Output"
	return []cli.Flag{
		&cli.BoolFlag{
			Category:    category,
			Name:        "dry-run",
			Usage:       "Do not send entities to the catalog, write them to --output instead",
			EnvVars:     []string{"CATALOGSYNC_DRY_RUN"},
			Destination: &x.dryRun,
		},
		&cli.StringFlag{
			Category:    category,
			Name:        "output",
			Aliases:     []string{"o"},
			Usage:       "Local directory or gs://bucket/prefix for dry-run output",
			EnvVars:     []string{"CATALOGSYNC_OUTPUT"},
			Destination: &x.output,
			Value:       "./output",
		},
	}
}

func (x *Output) DryRun() bool { return x.dryRun }

// Dir returns the local directory for run logs and notifications of dry-run. gs:// output keeps them under the current directory.
func (x *Output) Dir() string {
	if strings.HasPrefix(x.output, "gs://") {
		return filepath.Clean("./output")
	}
	return filepath.Clean(x.output)
}

// Configure returns a dry-run catalog.
func (x *Output) Configure(ctx context.Context) (*dump.Catalog, error) {
	if !strings.HasPrefix(x.output, "gs://") {
		return dump.NewCatalog(x.output, nil)
	}

	client, err := cs.New(ctx)
	if err != nil {
		return nil, err
	}
	return dump.NewCatalog(x.output, client)
}

func (x *Output) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("dry_run", x.dryRun),
		slog.String("output", x.output),
	)
}
