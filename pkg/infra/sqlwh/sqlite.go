package sqlwh

import (
	"context"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
)

// sqlite exposes the main database of a file as database "main" with one schema "main". SQLite has no principals.
type sqlite struct{}

const sqliteMain = "main"

func (x *sqlite) Type() types.WarehouseType { return types.WarehouseSQLite }
func (x *sqlite) Driver() string            { return "sqlite3" }

func (x *sqlite) Databases(ctx context.Context, q Querier) ([]model.Row, error) {
	return q.Query(ctx, `SELECT name AS NAME FROM pragma_database_list WHERE name = ?`, sqliteMain)
}

func (x *sqlite) Schemas(ctx context.Context, q Querier, database string) ([]model.Row, error) {
	if database != sqliteMain {
		return nil, nil
	}
	return []model.Row{{"NAME": sqliteMain}}, nil
}

func (x *sqlite) Tables(ctx context.Context, q Querier, database, schema string) ([]model.Row, error) {
	return q.Query(ctx, `SELECT m.name AS TABLE_NAME,
	CASE m.type WHEN 'view' THEN 'VIEW' ELSE 'BASE TABLE' END AS TABLE_TYPE
FROM sqlite_master m
WHERE m.type IN ('table', 'view') AND m.name NOT LIKE 'sqlite\_%' ESCAPE '\'
ORDER BY m.name`)
}

func (x *sqlite) Columns(ctx context.Context, q Querier, database, schema string) ([]model.Row, error) {
	return q.Query(ctx, `SELECT m.name AS TABLE_NAME,
	p.name AS COLUMN_NAME,
	p.type AS DATA_TYPE,
	CASE WHEN p."notnull" = 1 OR p.pk > 0 THEN 'NO' ELSE 'YES' END AS IS_NULLABLE,
	p.dflt_value AS COLUMN_DEFAULT,
	p.cid + 1 AS ORDINAL_POSITION
FROM sqlite_master m, pragma_table_info(m.name) p
WHERE m.type IN ('table', 'view') AND m.name NOT LIKE 'sqlite\_%' ESCAPE '\'
ORDER BY m.name, p.cid`)
}

func (x *sqlite) PrimaryKeys(ctx context.Context, q Querier, database, schema string) ([]model.Row, error) {
	return q.Query(ctx, `SELECT m.name AS TABLE_NAME,
	p.name AS COLUMN_NAME,
	p.pk AS KEY_SEQUENCE
FROM sqlite_master m, pragma_table_info(m.name) p
WHERE m.type = 'table' AND p.pk > 0
ORDER BY m.name, p.pk`)
}

func (x *sqlite) ForeignKeys(ctx context.Context, q Querier, database, schema string) ([]model.Row, error) {
	return q.Query(ctx, `SELECT m.name AS TABLE_NAME,
	f."from" AS COLUMN_NAME,
	'fk_' || m.name || '_' || f.id AS CONSTRAINT_NAME,
	f."table" AS REFERENCED_TABLE,
	f."to" AS REFERENCED_COLUMN
FROM sqlite_master m, pragma_foreign_key_list(m.name) f
WHERE m.type = 'table'
ORDER BY m.name, f.id, f.seq`)
}

func (x *sqlite) Users(ctx context.Context, q Querier) ([]model.Row, error) {
	return nil, unsupported(x.Type(), "users")
}

func (x *sqlite) Roles(ctx context.Context, q Querier) ([]model.Row, error) {
	return nil, unsupported(x.Type(), "roles")
}

func (x *sqlite) RoleMembers(ctx context.Context, q Querier) ([]model.Row, error) {
	return nil, unsupported(x.Type(), "role members")
}

func (x *sqlite) RoleGrants(ctx context.Context, q Querier) ([]model.Row, error) {
	return nil, unsupported(x.Type(), "role grants")
}

var _ Dialect = &sqlite{}
