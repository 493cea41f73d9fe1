package interfaces

import (
	"context"
	"io"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
)

// Warehouse opens a connection to the source data warehouse.
type Warehouse interface {
	Connect(ctx context.Context) (WarehouseConn, error)
}

// WarehouseConn runs catalog queries. Every method returns rows with canonical column names.
type WarehouseConn interface {
	Ping(ctx context.Context) error

	Databases(ctx context.Context) ([]model.Row, error)
	Schemas(ctx context.Context, database string) ([]model.Row, error)
	Tables(ctx context.Context, database, schema string) ([]model.Row, error)
	Columns(ctx context.Context, database, schema string) ([]model.Row, error)
	PrimaryKeys(ctx context.Context, database, schema string) ([]model.Row, error)
	ForeignKeys(ctx context.Context, database, schema string) ([]model.Row, error)

	Users(ctx context.Context) ([]model.Row, error)
	Roles(ctx context.Context) ([]model.Row, error)
	RoleMembers(ctx context.Context) ([]model.Row, error)
	RoleGrants(ctx context.Context) ([]model.Row, error)

	Close() error
}

// Catalog opens a session to the metadata catalog service.
type Catalog interface {
	Open(ctx context.Context) (CatalogSession, error)
}

type CatalogSession interface {
	Health(ctx context.Context) error
	Config(ctx context.Context) (map[string]any, error)
	// Ingest upserts all envelopes in one request. The returned error is wrapped by types.ErrTransientDelivery or types.ErrPermanentDelivery.
	Ingest(ctx context.Context, envelopes []*model.Envelope) error
	// GetEntity returns nil without error if the entity does not exist.
	GetEntity(ctx context.Context, urn types.URN) (map[string]any, error)
	DeleteEntity(ctx context.Context, urn types.URN) error
	Close() error
}

type BigQuery interface {
	Insert(ctx context.Context, datasetID types.BQDatasetID, tableID types.BQTableID, schema bigquery.Schema, data []any) error
	GetMetadata(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID) (*bigquery.TableMetadata, error)
	UpdateTable(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID, md bigquery.TableMetadataToUpdate, eTag string) error
	CreateTable(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID, md *bigquery.TableMetadata) error
}

type PubSub interface {
	// Publish sends data with message attributes. Subscribers can filter messages by attributes without decoding data.
	Publish(ctx context.Context, data []byte, attrs map[string]string) (types.PubSubMessageID, error)
}

type CloudStorage interface {
	NewWriter(ctx context.Context, bucket types.CSBucket, object types.CSObjectID) io.WriteCloser
}

type Database interface {
	GetOrCreateState(ctx context.Context, msgType types.MsgType, input *model.State) (*model.State, bool, error)
	GetState(ctx context.Context, msgType types.MsgType, id string) (*model.State, error)
	UpdateState(ctx context.Context, msgType types.MsgType, id string, state types.MsgState, now time.Time) error
}
