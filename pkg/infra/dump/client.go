package dump

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/interfaces"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/utils"
)

// Client writes run logs to local files instead of BigQuery. It is used by dry run.
type Client struct {
	outDir string
}

// CreateTable implements interfaces.BigQuery. It writes the schema of the new table.
func (x *Client) CreateTable(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID, md *bigquery.TableMetadata) error {
	return x.writeSchema(dataset, table, md.Schema)
}

// GetMetadata implements interfaces.BigQuery. The table always exists in the dumper, so the run log schema is written only when it changes.
func (x *Client) GetMetadata(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID) (*bigquery.TableMetadata, error) {
	return &bigquery.TableMetadata{}, nil
}

// Insert implements interfaces.BigQuery. It appends run log rows to "{outDir}/{dataset}.{table}.jsonl".
func (x *Client) Insert(ctx context.Context, datasetID types.BQDatasetID, tableID types.BQTableID, schema bigquery.Schema, data []any) error {
	if err := os.MkdirAll(x.outDir, 0755); err != nil {
		return goerr.Wrap(err, "failed to create directory", goerr.V("dir", x.outDir))
	}

	fname := fmt.Sprintf("%s.%s.jsonl", datasetID, tableID)
	fpath := filepath.Join(x.outDir, fname)
	fd, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return goerr.Wrap(err, "failed to create file", goerr.V("file", fpath))
	}
	defer utils.SafeClose(ctx, fd)

	encoder := json.NewEncoder(fd)
	for _, record := range data {
		if err := encoder.Encode(record); err != nil {
			return goerr.Wrap(err, "failed to encode record", goerr.V("record", record))
		}
	}

	return nil
}

// UpdateTable implements interfaces.BigQuery. It overwrites "{outDir}/{dataset}.{table}.schema.json" with the schema.
func (x *Client) UpdateTable(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID, md bigquery.TableMetadataToUpdate, eTag string) error {
	return x.writeSchema(dataset, table, md.Schema)
}

func (x *Client) writeSchema(dataset types.BQDatasetID, table types.BQTableID, schema bigquery.Schema) error {
	if err := os.MkdirAll(x.outDir, 0755); err != nil {
		return goerr.Wrap(err, "failed to create directory", goerr.V("dir", x.outDir))
	}

	fname := fmt.Sprintf("%s.%s.schema.json", dataset, table)
	fpath := filepath.Join(x.outDir, fname)

	raw, err := schema.ToJSONFields()
	if err != nil {
		return goerr.Wrap(err, "failed to convert schema to JSON fields", goerr.V("file", fpath))
	}

	if err := os.WriteFile(fpath, raw, 0644); err != nil {
		return goerr.Wrap(err, "failed to write schema", goerr.V("file", fpath))
	}

	return nil
}

// New returns a new instance of dumper Client.
func New(outDir string) *Client {
	return &Client{
		outDir: filepath.Clean(outDir),
	}
}

var _ interfaces.BigQuery = &Client{}
