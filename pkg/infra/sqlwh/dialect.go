package sqlwh

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
)

// Querier runs a catalog query. Conn implements it.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) ([]model.Row, error)
}

// Dialect is a set of catalog queries of one warehouse product. Every method returns rows with canonical column names.
type Dialect interface {
	Type() types.WarehouseType
	Driver() string

	Databases(ctx context.Context, q Querier) ([]model.Row, error)
	Schemas(ctx context.Context, q Querier, database string) ([]model.Row, error)
	Tables(ctx context.Context, q Querier, database, schema string) ([]model.Row, error)
	Columns(ctx context.Context, q Querier, database, schema string) ([]model.Row, error)
	PrimaryKeys(ctx context.Context, q Querier, database, schema string) ([]model.Row, error)
	ForeignKeys(ctx context.Context, q Querier, database, schema string) ([]model.Row, error)

	Users(ctx context.Context, q Querier) ([]model.Row, error)
	Roles(ctx context.Context, q Querier) ([]model.Row, error)
	RoleMembers(ctx context.Context, q Querier) ([]model.Row, error)
	RoleGrants(ctx context.Context, q Querier) ([]model.Row, error)
}

func NewDialect(whType types.WarehouseType) (Dialect, error) {
	switch whType {
	case types.WarehouseSnowflake:
		return &snowflake{}, nil
	case types.WarehousePostgres:
		return &postgres{}, nil
	case types.WarehouseRedshift:
		return &redshift{}, nil
	case types.WarehouseSQLite:
		return &sqlite{}, nil
	default:
		return nil, goerr.Wrap(types.ErrInvalidOption, "unsupported warehouse type for SQL driver", goerr.V("type", whType))
	}
}

// quoteIdent quotes an identifier with double quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func renameAll(rows []model.Row, mapping map[string]string) []model.Row {
	for i := range rows {
		rows[i] = rows[i].Rename(mapping)
	}
	return rows
}

func unsupported(whType types.WarehouseType, surface string) error {
	return goerr.Wrap(types.ErrUnsupported, "catalog surface is not available", goerr.V("type", whType), goerr.V("surface", surface))
}
