package bq

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/interfaces"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// Catalog is a BigQuery project used as a source warehouse. A project is a database and a dataset is a schema.
type Catalog struct {
	projectID types.GoogleProjectID
	timeout   time.Duration
	options   []option.ClientOption
}

type CatalogOption func(*Catalog)

func WithCatalogTimeout(d time.Duration) CatalogOption {
	return func(c *Catalog) {
		c.timeout = d
	}
}

// WithClientOptions passes options to bigquery.NewClient, e.g. an endpoint of an emulator.
func WithClientOptions(opts ...option.ClientOption) CatalogOption {
	return func(c *Catalog) {
		c.options = append(c.options, opts...)
	}
}

func NewCatalog(projectID types.GoogleProjectID, options ...CatalogOption) (*Catalog, error) {
	if projectID == "" {
		return nil, goerr.Wrap(types.ErrInvalidOption, "BigQuery project ID is required")
	}

	c := &Catalog{
		projectID: projectID,
		timeout:   300 * time.Second,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

func (x *Catalog) Connect(ctx context.Context) (interfaces.WarehouseConn, error) {
	client, err := bigquery.NewClient(ctx, x.projectID.String(), x.options...)
	if err != nil {
		return nil, goerr.Wrap(types.ErrConnection, "failed to create bigquery client", goerr.V("project_id", x.projectID), goerr.V("error", err.Error()))
	}

	return &CatalogConn{
		client:  client,
		timeout: x.timeout,
		tables:  map[string][]*tableInfo{},
	}, nil
}

var _ interfaces.Warehouse = &Catalog{}

type tableInfo struct {
	id string
	md *bigquery.TableMetadata
}

// CatalogConn reads dataset and table metadata. Table metadata is cached per dataset because columns and keys are derived from it.
type CatalogConn struct {
	client  *bigquery.Client
	timeout time.Duration

	mutex  sync.Mutex
	tables map[string][]*tableInfo
}

func classifyError(err error, msg string, values ...goerr.Option) error {
	var gErr *googleapi.Error
	var netErr net.Error
	switch {
	case errors.As(err, &gErr):
		return goerr.Wrap(types.ErrExtraction, msg, append(values, goerr.V("error", err.Error()))...)
	case errors.As(err, &netErr), errors.Is(err, context.DeadlineExceeded):
		return goerr.Wrap(types.ErrConnection, msg, append(values, goerr.V("error", err.Error()))...)
	default:
		return goerr.Wrap(types.ErrExtraction, msg, append(values, goerr.V("error", err.Error()))...)
	}
}

func (x *CatalogConn) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	if _, err := x.client.Datasets(ctx).Next(); err != nil && err != iterator.Done {
		return goerr.Wrap(types.ErrConnection, "failed to list datasets", goerr.V("project", x.client.Project()), goerr.V("error", err.Error()))
	}
	return nil
}

func (x *CatalogConn) Databases(ctx context.Context) ([]model.Row, error) {
	return []model.Row{{"NAME": x.client.Project()}}, nil
}

func (x *CatalogConn) Schemas(ctx context.Context, database string) ([]model.Row, error) {
	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	var rows []model.Row
	it := x.client.DatasetsInProject(ctx, database)
	for {
		ds, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classifyError(err, "failed to list datasets", goerr.V("project", database))
		}

		md, err := ds.Metadata(ctx)
		if err != nil {
			return nil, classifyError(err, "failed to get dataset metadata", goerr.V("dataset", ds.DatasetID))
		}

		rows = append(rows, model.Row{
			"NAME":    ds.DatasetID,
			"COMMENT": md.Description,
			"CREATED": md.CreationTime,
		})
	}

	return rows, nil
}

func (x *CatalogConn) tableMetadata(ctx context.Context, database, schema string) ([]*tableInfo, error) {
	key := database + "." + schema

	x.mutex.Lock()
	cached, ok := x.tables[key]
	x.mutex.Unlock()
	if ok {
		return cached, nil
	}

	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	var tables []*tableInfo
	it := x.client.DatasetInProject(database, schema).Tables(ctx)
	for {
		t, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, classifyError(err, "failed to list tables", goerr.V("dataset", key))
		}

		md, err := t.Metadata(ctx)
		if err != nil {
			return nil, classifyError(err, "failed to get table metadata", goerr.V("dataset", key), goerr.V("table", t.TableID))
		}
		tables = append(tables, &tableInfo{id: t.TableID, md: md})
	}

	x.mutex.Lock()
	x.tables[key] = tables
	x.mutex.Unlock()

	return tables, nil
}

func tableType(t bigquery.TableType) string {
	switch t {
	case bigquery.ViewTable, bigquery.MaterializedView:
		return "VIEW"
	default:
		return "BASE TABLE"
	}
}

func (x *CatalogConn) Tables(ctx context.Context, database, schema string) ([]model.Row, error) {
	tables, err := x.tableMetadata(ctx, database, schema)
	if err != nil {
		return nil, err
	}

	rows := make([]model.Row, 0, len(tables))
	for _, t := range tables {
		md := t.md
		rows = append(rows, model.Row{
			"TABLE_NAME":   t.id,
			"TABLE_TYPE":   tableType(md.Type),
			"ROW_COUNT":    int64(md.NumRows),
			"BYTES":        md.NumBytes,
			"CREATED":      md.CreationTime,
			"LAST_ALTERED": md.LastModifiedTime,
			"COMMENT":      md.Description,
		})
	}
	return rows, nil
}

func fieldType(f *bigquery.FieldSchema) string {
	t := string(f.Type)
	if f.Repeated {
		return "ARRAY<" + t + ">"
	}
	return t
}

func (x *CatalogConn) Columns(ctx context.Context, database, schema string) ([]model.Row, error) {
	tables, err := x.tableMetadata(ctx, database, schema)
	if err != nil {
		return nil, err
	}

	var rows []model.Row
	for _, t := range tables {
		md := t.md
		for i, f := range md.Schema {
			nullable := "YES"
			if f.Required {
				nullable = "NO"
			}
			row := model.Row{
				"TABLE_NAME":       t.id,
				"COLUMN_NAME":      f.Name,
				"DATA_TYPE":        fieldType(f),
				"IS_NULLABLE":      nullable,
				"ORDINAL_POSITION": int64(i + 1),
				"COMMENT":          f.Description,
			}
			if f.DefaultValueExpression != "" {
				row["COLUMN_DEFAULT"] = f.DefaultValueExpression
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (x *CatalogConn) PrimaryKeys(ctx context.Context, database, schema string) ([]model.Row, error) {
	tables, err := x.tableMetadata(ctx, database, schema)
	if err != nil {
		return nil, err
	}

	var rows []model.Row
	for _, t := range tables {
		md := t.md
		if md.TableConstraints == nil || md.TableConstraints.PrimaryKey == nil {
			continue
		}
		for i, col := range md.TableConstraints.PrimaryKey.Columns {
			rows = append(rows, model.Row{
				"TABLE_NAME":   t.id,
				"COLUMN_NAME":  col,
				"KEY_SEQUENCE": int64(i + 1),
			})
		}
	}
	return rows, nil
}

func (x *CatalogConn) ForeignKeys(ctx context.Context, database, schema string) ([]model.Row, error) {
	tables, err := x.tableMetadata(ctx, database, schema)
	if err != nil {
		return nil, err
	}

	var rows []model.Row
	for _, t := range tables {
		md := t.md
		if md.TableConstraints == nil {
			continue
		}
		for _, fk := range md.TableConstraints.ForeignKeys {
			if fk.ReferencedTable == nil {
				continue
			}
			for _, ref := range fk.ColumnReferences {
				rows = append(rows, model.Row{
					"TABLE_NAME":          t.id,
					"COLUMN_NAME":         ref.ReferencingColumn,
					"CONSTRAINT_NAME":     fk.Name,
					"REFERENCED_DATABASE": fk.ReferencedTable.ProjectID,
					"REFERENCED_SCHEMA":   fk.ReferencedTable.DatasetID,
					"REFERENCED_TABLE":    fk.ReferencedTable.TableID,
					"REFERENCED_COLUMN":   ref.ReferencedColumn,
				})
			}
		}
	}
	return rows, nil
}

func unsupported(surface string) error {
	return goerr.Wrap(types.ErrUnsupported, "catalog surface is not available", goerr.V("type", types.WarehouseBigQuery), goerr.V("surface", surface))
}

// IAM principals of BigQuery are not exposed as warehouse users and roles.
func (x *CatalogConn) Users(ctx context.Context) ([]model.Row, error) {
	return nil, unsupported("users")
}

func (x *CatalogConn) Roles(ctx context.Context) ([]model.Row, error) {
	return nil, unsupported("roles")
}

func (x *CatalogConn) RoleMembers(ctx context.Context) ([]model.Row, error) {
	return nil, unsupported("role members")
}

func (x *CatalogConn) RoleGrants(ctx context.Context) ([]model.Row, error) {
	return nil, unsupported("role grants")
}

func (x *CatalogConn) Close() error {
	if err := x.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close bigquery client")
	}
	return nil
}

var _ interfaces.WarehouseConn = &CatalogConn{}
