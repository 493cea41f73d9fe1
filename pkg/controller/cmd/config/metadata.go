package config

import (
	"context"
	"log/slog"
	"regexp"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/infra/bq"
	"github.com/urfave/cli/v2"
)

// bqDatasetPattern is the character set of BigQuery dataset IDs.
var bqDatasetPattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,1024}$`)

// Metadata is configuration of the BigQuery run log table.
type Metadata struct {
	projectID types.GoogleProjectID
	dataset   types.BQDatasetID
	table     types.BQTableID
}

func (x *Metadata) Flags() []cli.Flag {
	category := "Run log"
	return []cli.Flag{
		&cli.StringFlag{
			Category:    category,
			Name:        "meta-bq-project-id",
			Usage:       "Google Cloud project ID of run log table",
			EnvVars:     []string{"CATALOGSYNC_META_BQ_PROJECT_ID"},
			Destination: (*string)(&x.projectID),
		},
		&cli.StringFlag{
			Category:    category,
			Name:        "meta-bq-dataset-id",
			Usage:       "BigQuery dataset ID of run log table",
			EnvVars:     []string{"CATALOGSYNC_META_BQ_DATASET_ID"},
			Destination: (*string)(&x.dataset),
		},
		&cli.StringFlag{
			Category:    category,
			Name:        "meta-bq-table-id",
			Usage:       "BigQuery table ID of run log table",
			EnvVars:     []string{"CATALOGSYNC_META_BQ_TABLE_ID"},
			Destination: (*string)(&x.table),
		},
	}
}

// Configure returns nil without error if run log is not configured.
func (x *Metadata) Configure() (*model.MetadataConfig, error) {
	if x.dataset == "" && x.table == "" {
		return nil, nil
	}
	if x.dataset == "" {
		return nil, goerr.Wrap(types.ErrInvalidOption, "meta-bq-dataset-id is required")
	}
	if x.table == "" {
		return nil, goerr.Wrap(types.ErrInvalidOption, "meta-bq-table-id is required")
	}
	if !bqDatasetPattern.MatchString(x.dataset.String()) {
		return nil, goerr.Wrap(types.ErrInvalidOption, "invalid meta-bq-dataset-id", goerr.V("dataset", x.dataset))
	}

	return model.NewMetadataConfig(x.dataset, x.table), nil
}

// NewClient creates a BigQuery client for run logs. It returns nil if the project ID is not set.
func (x *Metadata) NewClient(ctx context.Context) (*bq.Client, error) {
	if x.projectID == "" {
		return nil, nil
	}
	return bq.New(ctx, x.projectID)
}

func (x *Metadata) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("project_id", x.projectID.String()),
		slog.String("dataset", x.dataset.String()),
		slog.String("table", x.table.String()),
	)
}
