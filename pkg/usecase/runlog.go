package usecase

import (
	"context"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/bqs"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/interfaces"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/utils"
)

func createOrUpdateTable(ctx context.Context, bq interfaces.BigQuery, datasetID types.BQDatasetID, tableID types.BQTableID, md *bigquery.TableMetadata) (bigquery.Schema, error) {
	old, err := bq.GetMetadata(ctx, datasetID, tableID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get metadata", goerr.V("dataset_id", datasetID), goerr.V("table_id", tableID))
	}

	if old == nil {
		utils.CtxLogger(ctx).Info("creating new table", "dataset_id", datasetID, "table_id", tableID)
		if err := bq.CreateTable(ctx, datasetID, tableID, md); err != nil {
			return nil, err
		}
		return md.Schema, nil
	}

	merged, err := bqs.Merge(old.Schema, md.Schema)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to merge schema", goerr.V("old", old.Schema), goerr.V("new", md.Schema))
	}

	// If schema is not changed, do nothing
	if bqs.Equal(old.Schema, merged) {
		return merged, nil
	}

	update := bigquery.TableMetadataToUpdate{
		Schema: merged,
	}
	utils.CtxLogger(ctx).Info("updating table schema", "dataset_id", datasetID, "table_id", tableID)

	if err := bq.UpdateTable(ctx, datasetID, tableID, update, old.ETag); err != nil {
		return nil, goerr.Wrap(err, "failed to update table", goerr.V("dataset_id", datasetID), goerr.V("table_id", tableID))
	}
	return merged, nil
}

func setupRunLogTable(ctx context.Context, bq interfaces.BigQuery, meta *model.MetadataConfig) (bigquery.Schema, error) {
	schema, err := bqs.Infer(&model.RunLog{
		Kinds: []*model.KindLog{{}},
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to infer schema")
	}
	md := &bigquery.TableMetadata{
		Schema: schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Field: "started_at",
			Type:  bigquery.MonthPartitioningType,
		},
	}

	merged, err := createOrUpdateTable(ctx, bq, meta.Dataset(), meta.Table(), md)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create or update table")
	}

	return merged, nil
}

// writeRunLog inserts one row of the run to the metadata table. It does nothing if metadata is not configured.
func (x *UseCase) writeRunLog(ctx context.Context, result *model.IngestionResult) error {
	if x.metadata == nil || x.clients.BigQuery() == nil {
		return nil
	}

	schema, err := setupRunLogTable(ctx, x.clients.BigQuery(), x.metadata)
	if err != nil {
		return err
	}

	log := model.NewRunLog(result)
	if err := x.clients.BigQuery().Insert(ctx, x.metadata.Dataset(), x.metadata.Table(), schema, []any{log.Raw()}); err != nil {
		return goerr.Wrap(err, "failed to insert run log", goerr.V("run_id", log.ID))
	}

	utils.CtxLogger(ctx).Debug("run log is written", "dataset_id", x.metadata.Dataset(), "table_id", x.metadata.Table())
	return nil
}
