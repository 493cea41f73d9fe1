package usecase

import (
	"context"
	"errors"
	"iter"
	"sync/atomic"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/interfaces"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/utils"
)

// Extract returns raw records of the category. The sequence is lazy and can be ranged only once; ranging it again yields a single types.ErrAssertion error.
//
// A failed query of one database or schema yields an error wrapping types.ErrExtraction and extraction continues with the next one. An error wrapping types.ErrConnection is yielded last.
func Extract(ctx context.Context, conn interfaces.WarehouseConn, filter *model.Filter, category types.Category) iter.Seq2[model.Record, error] {
	var used atomic.Bool

	return func(yield func(model.Record, error) bool) {
		if used.Swap(true) {
			yield(nil, goerr.Wrap(types.ErrAssertion, "record sequence is already consumed", goerr.V("category", category)))
			return
		}

		e := &extractor{conn: conn, filter: filter, yield: yield}
		switch category {
		case types.CategoryStructural:
			e.structural(ctx)
		case types.CategoryAccessControl:
			e.accessControl(ctx)
		default:
			yield(nil, goerr.Wrap(types.ErrInvalidOption, "unknown category", goerr.V("category", category)))
		}
	}
}

type extractor struct {
	conn    interfaces.WarehouseConn
	filter  *model.Filter
	yield   func(model.Record, error) bool
	stopped bool
}

func (x *extractor) emit(rec model.Record) bool {
	if x.stopped {
		return false
	}
	if !x.yield(rec, nil) {
		x.stopped = true
	}
	return !x.stopped
}

// fail yields err and returns false if extraction must stop.
func (x *extractor) fail(err error) bool {
	if x.stopped {
		return false
	}
	if !x.yield(nil, err) {
		x.stopped = true
	}
	if errors.Is(err, types.ErrConnection) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		x.stopped = true
	}
	return !x.stopped
}

func (x *extractor) cancelled(ctx context.Context) bool {
	if err := ctx.Err(); err != nil {
		x.fail(goerr.Wrap(err, "extraction is cancelled"))
		return true
	}
	return false
}

func (x *extractor) structural(ctx context.Context) {
	databases, err := x.conn.Databases(ctx)
	if err != nil {
		x.fail(goerr.Wrap(err, "failed to list databases"))
		return
	}

	for _, db := range databases {
		if x.cancelled(ctx) {
			return
		}

		name := db.String("NAME")
		if name == "" {
			// Rejected by normalizer with the reason.
			if !x.emit(&model.DatabaseRecord{Row: db}) {
				return
			}
			continue
		}
		if !x.filter.Database(name) {
			utils.CtxLogger(ctx).Debug("database is excluded", "database", name)
			continue
		}

		if !x.database(ctx, name, db) {
			return
		}
	}
}

func (x *extractor) database(ctx context.Context, name string, row model.Row) bool {
	schemas, err := x.conn.Schemas(ctx, name)
	if err != nil {
		return x.fail(goerr.Wrap(err, "failed to list schemas", goerr.V("database", name)))
	}

	var included []model.Row
	var names []string
	for _, s := range schemas {
		schema := s.String("NAME")
		if schema != "" && !x.filter.Schema(name, schema) {
			continue
		}
		included = append(included, s)
		if schema != "" {
			names = append(names, schema)
		}
	}

	if !x.emit(&model.DatabaseRecord{Row: row, Schemas: names}) {
		return false
	}

	for _, s := range included {
		if x.cancelled(ctx) {
			return false
		}
		if !x.schema(ctx, name, s) {
			return false
		}
	}
	return true
}

// groupByTable partitions rows by TABLE_NAME.
func groupByTable(rows []model.Row) map[string][]model.Row {
	out := map[string][]model.Row{}
	for _, row := range rows {
		name := row.String("TABLE_NAME")
		out[name] = append(out[name], row)
	}
	return out
}

func (x *extractor) schema(ctx context.Context, database string, row model.Row) bool {
	schema := row.String("NAME")
	if schema == "" {
		return x.emit(&model.SchemaRecord{Database: database, Row: row})
	}
	qualified := model.QualifiedName(database, schema)

	tables, err := x.conn.Tables(ctx, database, schema)
	if err != nil {
		return x.fail(goerr.Wrap(err, "failed to list tables", goerr.V("schema", qualified)))
	}
	columns, err := x.conn.Columns(ctx, database, schema)
	if err != nil {
		return x.fail(goerr.Wrap(err, "failed to list columns", goerr.V("schema", qualified)))
	}

	// Keys are optional metadata. The tables are still extracted without them.
	pks, err := x.conn.PrimaryKeys(ctx, database, schema)
	if err != nil && !errors.Is(err, types.ErrUnsupported) {
		if !x.fail(goerr.Wrap(err, "failed to list primary keys", goerr.V("schema", qualified))) {
			return false
		}
	}
	fks, err := x.conn.ForeignKeys(ctx, database, schema)
	if err != nil && !errors.Is(err, types.ErrUnsupported) {
		if !x.fail(goerr.Wrap(err, "failed to list foreign keys", goerr.V("schema", qualified))) {
			return false
		}
	}

	var included []model.Row
	var names []string
	for _, t := range tables {
		table := t.String("TABLE_NAME")
		if table != "" && !x.filter.Table(database, schema, table) {
			continue
		}
		included = append(included, t)
		if table != "" {
			names = append(names, table)
		}
	}

	if !x.emit(&model.SchemaRecord{Database: database, Row: row, Tables: names}) {
		return false
	}

	columnsByTable := groupByTable(columns)
	pksByTable := groupByTable(pks)
	fksByTable := groupByTable(fks)

	for _, t := range included {
		table := t.String("TABLE_NAME")
		rec := &model.TableRecord{
			Database: database,
			Schema:   schema,
			Row:      t,
		}
		if table != "" {
			rec.Columns = columnsByTable[table]
			rec.PrimaryKeys = pksByTable[table]
			rec.ForeignKeys = fksByTable[table]
		}
		if !x.emit(rec) {
			return false
		}
	}
	return true
}

func (x *extractor) accessControl(ctx context.Context) {
	logger := utils.CtxLogger(ctx)

	// query returns false if the category must stop.
	query := func(name string, f func(context.Context) ([]model.Row, error)) ([]model.Row, bool) {
		rows, err := f(ctx)
		if err == nil {
			return rows, true
		}
		if errors.Is(err, types.ErrUnsupported) {
			logger.Warn("access control metadata is not supported by the warehouse", "surface", name, utils.ErrLog(err))
			x.stopped = true
			return nil, false
		}
		return nil, x.fail(goerr.Wrap(err, "failed to list "+name))
	}

	members, ok := query("role members", x.conn.RoleMembers)
	if !ok {
		return
	}
	grants, ok := query("role grants", x.conn.RoleGrants)
	if !ok {
		return
	}

	rolesByUser := map[string][]string{}
	membersByRole := map[string][]string{}
	for _, m := range members {
		role, grantee := m.String("ROLE"), m.String("GRANTEE_NAME")
		if role == "" || grantee == "" {
			continue
		}
		rolesByUser[grantee] = append(rolesByUser[grantee], role)
		membersByRole[role] = append(membersByRole[role], grantee)
	}

	grantsByRole := map[string][]model.Row{}
	for _, g := range grants {
		role := g.String("GRANTEE_NAME")
		grantsByRole[role] = append(grantsByRole[role], g)
	}

	users, ok := query("users", x.conn.Users)
	if !ok {
		return
	}
	for _, u := range users {
		if !x.emit(&model.UserRecord{Row: u, Roles: rolesByUser[u.String("NAME")]}) {
			return
		}
	}

	if x.cancelled(ctx) {
		return
	}

	roles, ok := query("roles", x.conn.Roles)
	if !ok {
		return
	}
	for _, r := range roles {
		name := r.String("NAME")
		if !x.emit(&model.RoleRecord{Row: r, Members: membersByRole[name], Grants: grantsByRole[name]}) {
			return
		}
	}
}
