package sqlwh

import (
	"context"

	_ "github.com/lib/pq"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
)

// postgres reads only the database of the connection because PostgreSQL cannot query across databases.
type postgres struct{}

func (x *postgres) Type() types.WarehouseType { return types.WarehousePostgres }
func (x *postgres) Driver() string            { return "postgres" }

func (x *postgres) Databases(ctx context.Context, q Querier) ([]model.Row, error) {
	return q.Query(ctx, `SELECT d.datname AS name,
	pg_get_userbyid(d.datdba) AS owner,
	shobj_description(d.oid, 'pg_database') AS comment
FROM pg_database d
WHERE d.datname = current_database()`)
}

func (x *postgres) Schemas(ctx context.Context, q Querier, database string) ([]model.Row, error) {
	return q.Query(ctx, `SELECT n.nspname AS name,
	pg_get_userbyid(n.nspowner) AS owner,
	obj_description(n.oid, 'pg_namespace') AS comment
FROM pg_namespace n
WHERE n.nspname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
	AND n.nspname NOT LIKE 'pg_temp_%'
	AND n.nspname NOT LIKE 'pg_toast_temp_%'
ORDER BY n.nspname`)
}

func (x *postgres) Tables(ctx context.Context, q Querier, database, schema string) ([]model.Row, error) {
	return q.Query(ctx, `SELECT t.table_name,
	t.table_type,
	CASE WHEN c.reltuples < 0 THEN NULL ELSE c.reltuples::bigint END AS row_count,
	pg_total_relation_size(c.oid) AS bytes,
	obj_description(c.oid, 'pg_class') AS comment,
	pg_get_userbyid(c.relowner) AS table_owner
FROM information_schema.tables t
LEFT JOIN pg_namespace n ON n.nspname = t.table_schema
LEFT JOIN pg_class c ON c.relnamespace = n.oid AND c.relname = t.table_name
WHERE t.table_schema = $1
ORDER BY t.table_name`, schema)
}

func (x *postgres) Columns(ctx context.Context, q Querier, database, schema string) ([]model.Row, error) {
	return q.Query(ctx, `SELECT c.table_name,
	c.column_name,
	CASE WHEN c.data_type IN ('USER-DEFINED', 'ARRAY') THEN c.udt_name ELSE c.data_type END AS data_type,
	c.is_nullable,
	c.column_default,
	c.ordinal_position,
	d.description AS comment
FROM information_schema.columns c
LEFT JOIN pg_catalog.pg_statio_all_tables st ON st.schemaname = c.table_schema AND st.relname = c.table_name
LEFT JOIN pg_catalog.pg_description d ON d.objoid = st.relid AND d.objsubid = c.ordinal_position
WHERE c.table_schema = $1
ORDER BY c.table_name, c.ordinal_position`, schema)
}

func (x *postgres) PrimaryKeys(ctx context.Context, q Querier, database, schema string) ([]model.Row, error) {
	return q.Query(ctx, `SELECT kcu.table_name,
	kcu.column_name,
	kcu.ordinal_position AS key_sequence
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
	ON kcu.constraint_name = tc.constraint_name
	AND kcu.table_schema = tc.table_schema
	AND kcu.table_name = tc.table_name
WHERE tc.constraint_type = 'PRIMARY KEY'
	AND tc.table_schema = $1
ORDER BY kcu.table_name, kcu.ordinal_position`, schema)
}

func (x *postgres) ForeignKeys(ctx context.Context, q Querier, database, schema string) ([]model.Row, error) {
	return q.Query(ctx, `SELECT kcu1.table_name,
	kcu1.column_name,
	rc.constraint_name,
	kcu2.table_catalog AS referenced_database,
	kcu2.table_schema AS referenced_schema,
	kcu2.table_name AS referenced_table,
	kcu2.column_name AS referenced_column
FROM information_schema.referential_constraints rc
JOIN information_schema.key_column_usage kcu1
	ON kcu1.constraint_name = rc.constraint_name
	AND kcu1.table_schema = rc.constraint_schema
JOIN information_schema.key_column_usage kcu2
	ON kcu2.constraint_name = rc.unique_constraint_name
	AND kcu2.table_schema = rc.unique_constraint_schema
	AND kcu2.ordinal_position = kcu1.ordinal_position
WHERE kcu1.table_schema = $1
ORDER BY kcu1.table_name, rc.constraint_name, kcu1.ordinal_position`, schema)
}

func (x *postgres) Users(ctx context.Context, q Querier) ([]model.Row, error) {
	return q.Query(ctx, `SELECT r.rolname AS name,
	r.rolvaliduntil IS NOT NULL AND r.rolvaliduntil < now() AS disabled,
	shobj_description(r.oid, 'pg_authid') AS comment
FROM pg_roles r
WHERE r.rolcanlogin AND r.rolname NOT LIKE 'pg\_%'
ORDER BY r.rolname`)
}

func (x *postgres) Roles(ctx context.Context, q Querier) ([]model.Row, error) {
	return q.Query(ctx, `SELECT r.rolname AS name,
	shobj_description(r.oid, 'pg_authid') AS comment
FROM pg_roles r
WHERE NOT r.rolcanlogin AND r.rolname NOT LIKE 'pg\_%'
ORDER BY r.rolname`)
}

func (x *postgres) RoleMembers(ctx context.Context, q Querier) ([]model.Row, error) {
	return q.Query(ctx, `SELECT g.rolname AS role, m.rolname AS grantee_name
FROM pg_auth_members am
JOIN pg_roles g ON g.oid = am.roleid
JOIN pg_roles m ON m.oid = am.member
WHERE m.rolcanlogin`)
}

func (x *postgres) RoleGrants(ctx context.Context, q Querier) ([]model.Row, error) {
	return q.Query(ctx, `SELECT p.grantee AS grantee_name,
	p.privilege_type AS privilege,
	'TABLE' AS granted_on,
	p.table_catalog || '.' || p.table_schema || '.' || p.table_name AS name
FROM information_schema.table_privileges p
WHERE p.table_schema NOT IN ('pg_catalog', 'information_schema')`)
}

var _ Dialect = &postgres{}

// redshift speaks PostgreSQL protocol but keeps statistics and access control in SVV_* system views.
type redshift struct {
	postgres
}

func (x *redshift) Type() types.WarehouseType { return types.WarehouseRedshift }

func (x *redshift) Databases(ctx context.Context, q Querier) ([]model.Row, error) {
	return q.Query(ctx, `SELECT current_database() AS name`)
}

func (x *redshift) Tables(ctx context.Context, q Querier, database, schema string) ([]model.Row, error) {
	return q.Query(ctx, `SELECT t.table_name,
	t.table_type,
	i.tbl_rows AS row_count,
	i.size * 1048576 AS bytes
FROM information_schema.tables t
LEFT JOIN svv_table_info i ON i.schema = t.table_schema AND i."table" = t.table_name
WHERE t.table_schema = $1
ORDER BY t.table_name`, schema)
}

func (x *redshift) Columns(ctx context.Context, q Querier, database, schema string) ([]model.Row, error) {
	return q.Query(ctx, `SELECT c.table_name,
	c.column_name,
	c.data_type,
	c.is_nullable,
	c.column_default,
	c.ordinal_position
FROM information_schema.columns c
WHERE c.table_schema = $1
ORDER BY c.table_name, c.ordinal_position`, schema)
}

func (x *redshift) Users(ctx context.Context, q Querier) ([]model.Row, error) {
	return q.Query(ctx, `SELECT u.usename AS name,
	u.valuntil IS NOT NULL AND u.valuntil < getdate() AS disabled
FROM pg_user u
WHERE u.usename <> 'rdsdb'
ORDER BY u.usename`)
}

func (x *redshift) Roles(ctx context.Context, q Querier) ([]model.Row, error) {
	return q.Query(ctx, `SELECT r.role_name AS name, r.role_owner AS owner
FROM svv_roles r
ORDER BY r.role_name`)
}

func (x *redshift) RoleMembers(ctx context.Context, q Querier) ([]model.Row, error) {
	return q.Query(ctx, `SELECT g.role_name AS role, g.user_name AS grantee_name
FROM svv_user_grants g`)
}

func (x *redshift) RoleGrants(ctx context.Context, q Querier) ([]model.Row, error) {
	return q.Query(ctx, `SELECT p.identity_name AS grantee_name,
	p.privilege_type AS privilege,
	'TABLE' AS granted_on,
	p.namespace_name || '.' || p.relation_name AS name
FROM svv_relation_privileges p
WHERE p.identity_type = 'role'`)
}

var _ Dialect = &redshift{}
