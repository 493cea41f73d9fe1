package bq

import (
	"context"
	"sync"

	"cloud.google.com/go/bigquery"
	"github.com/secmon-lab/catalogsync/pkg/domain/interfaces"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
)

type Mock struct {
	MockInsert      func(ctx context.Context, datasetID types.BQDatasetID, tableID types.BQTableID, schema bigquery.Schema, data []any) error
	MockGetMetadata func(ctx context.Context, datasetID types.BQDatasetID, tableID types.BQTableID) (*bigquery.TableMetadata, error)
	MockUpdateTable func(ctx context.Context, datasetID types.BQDatasetID, tableID types.BQTableID, md bigquery.TableMetadataToUpdate, eTag string) error
	MockCreateTable func(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID, md *bigquery.TableMetadata) error
}

var _ interfaces.BigQuery = &Mock{}

func (x *Mock) Insert(ctx context.Context, datasetID types.BQDatasetID, tableID types.BQTableID, schema bigquery.Schema, data []any) error {
	if x.MockInsert != nil {
		return x.MockInsert(ctx, datasetID, tableID, schema, data)
	}
	return nil
}

func (x *Mock) GetMetadata(ctx context.Context, datasetID types.BQDatasetID, tableID types.BQTableID) (*bigquery.TableMetadata, error) {
	if x.MockGetMetadata != nil {
		return x.MockGetMetadata(ctx, datasetID, tableID)
	}
	return nil, nil
}

func (x *Mock) UpdateTable(ctx context.Context, datasetID types.BQDatasetID, tableID types.BQTableID, md bigquery.TableMetadataToUpdate, eTag string) error {
	if x.MockUpdateTable != nil {
		return x.MockUpdateTable(ctx, datasetID, tableID, md, eTag)
	}
	return nil
}

func (x *Mock) CreateTable(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID, md *bigquery.TableMetadata) error {
	if x.MockCreateTable != nil {
		return x.MockCreateTable(ctx, dataset, table, md)
	}
	return nil
}

// GeneralMock records every call. GetMetadata returns Metadata in order, then nil.
type GeneralMock struct {
	Metadata []*bigquery.TableMetadata

	CreatedTable []*TableCall
	UpdatedTable []*TableCall
	Inserted     []*MockInsertedData

	mutex sync.Mutex
}

type TableCall struct {
	Dataset types.BQDatasetID
	Table   types.BQTableID
	Schema  bigquery.Schema
	ETag    string
}

type MockInsertedData struct {
	DatasetID types.BQDatasetID
	TableID   types.BQTableID
	Schema    bigquery.Schema
	Data      []any
}

func NewGeneralMock() *GeneralMock {
	return &GeneralMock{}
}

var _ interfaces.BigQuery = &GeneralMock{}

func (x *GeneralMock) Insert(ctx context.Context, datasetID types.BQDatasetID, tableID types.BQTableID, schema bigquery.Schema, data []any) error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	x.Inserted = append(x.Inserted, &MockInsertedData{
		DatasetID: datasetID,
		TableID:   tableID,
		Schema:    schema,
		Data:      data,
	})
	return nil
}

func (x *GeneralMock) GetMetadata(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID) (*bigquery.TableMetadata, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	if len(x.Metadata) == 0 {
		return nil, nil
	}
	md := x.Metadata[0]
	x.Metadata = x.Metadata[1:]
	return md, nil
}

func (x *GeneralMock) UpdateTable(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID, md bigquery.TableMetadataToUpdate, eTag string) error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	x.UpdatedTable = append(x.UpdatedTable, &TableCall{Dataset: dataset, Table: table, Schema: md.Schema, ETag: eTag})
	return nil
}

func (x *GeneralMock) CreateTable(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID, md *bigquery.TableMetadata) error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	x.CreatedTable = append(x.CreatedTable, &TableCall{Dataset: dataset, Table: table, Schema: md.Schema})
	return nil
}
