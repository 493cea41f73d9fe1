package sqlwh

import (
	"context"
	"sync"

	"github.com/secmon-lab/catalogsync/pkg/domain/interfaces"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
)

// Mock is a warehouse and its connection. Unset functions return no rows.
type Mock struct {
	MockConnect     func(ctx context.Context) error
	MockPing        func(ctx context.Context) error
	MockDatabases   func(ctx context.Context) ([]model.Row, error)
	MockSchemas     func(ctx context.Context, database string) ([]model.Row, error)
	MockTables      func(ctx context.Context, database, schema string) ([]model.Row, error)
	MockColumns     func(ctx context.Context, database, schema string) ([]model.Row, error)
	MockPrimaryKeys func(ctx context.Context, database, schema string) ([]model.Row, error)
	MockForeignKeys func(ctx context.Context, database, schema string) ([]model.Row, error)
	MockUsers       func(ctx context.Context) ([]model.Row, error)
	MockRoles       func(ctx context.Context) ([]model.Row, error)
	MockRoleMembers func(ctx context.Context) ([]model.Row, error)
	MockRoleGrants  func(ctx context.Context) ([]model.Row, error)

	mutex   sync.Mutex
	queried []string
	closed  int
}

func (x *Mock) record(name string) {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	x.queried = append(x.queried, name)
}

// Queried returns names of called queries with arguments, e.g. "tables:db.schema".
func (x *Mock) Queried() []string {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	return append([]string{}, x.queried...)
}

func (x *Mock) CloseCount() int {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	return x.closed
}

func (x *Mock) Connect(ctx context.Context) (interfaces.WarehouseConn, error) {
	if x.MockConnect != nil {
		if err := x.MockConnect(ctx); err != nil {
			return nil, err
		}
	}
	return x, nil
}

func (x *Mock) Ping(ctx context.Context) error {
	if x.MockPing != nil {
		return x.MockPing(ctx)
	}
	return nil
}

func (x *Mock) Databases(ctx context.Context) ([]model.Row, error) {
	x.record("databases")
	if x.MockDatabases != nil {
		return x.MockDatabases(ctx)
	}
	return nil, nil
}

func (x *Mock) Schemas(ctx context.Context, database string) ([]model.Row, error) {
	x.record("schemas:" + database)
	if x.MockSchemas != nil {
		return x.MockSchemas(ctx, database)
	}
	return nil, nil
}

func (x *Mock) Tables(ctx context.Context, database, schema string) ([]model.Row, error) {
	x.record("tables:" + database + "." + schema)
	if x.MockTables != nil {
		return x.MockTables(ctx, database, schema)
	}
	return nil, nil
}

func (x *Mock) Columns(ctx context.Context, database, schema string) ([]model.Row, error) {
	x.record("columns:" + database + "." + schema)
	if x.MockColumns != nil {
		return x.MockColumns(ctx, database, schema)
	}
	return nil, nil
}

func (x *Mock) PrimaryKeys(ctx context.Context, database, schema string) ([]model.Row, error) {
	x.record("primary_keys:" + database + "." + schema)
	if x.MockPrimaryKeys != nil {
		return x.MockPrimaryKeys(ctx, database, schema)
	}
	return nil, nil
}

func (x *Mock) ForeignKeys(ctx context.Context, database, schema string) ([]model.Row, error) {
	x.record("foreign_keys:" + database + "." + schema)
	if x.MockForeignKeys != nil {
		return x.MockForeignKeys(ctx, database, schema)
	}
	return nil, nil
}

func (x *Mock) Users(ctx context.Context) ([]model.Row, error) {
	x.record("users")
	if x.MockUsers != nil {
		return x.MockUsers(ctx)
	}
	return nil, nil
}

func (x *Mock) Roles(ctx context.Context) ([]model.Row, error) {
	x.record("roles")
	if x.MockRoles != nil {
		return x.MockRoles(ctx)
	}
	return nil, nil
}

func (x *Mock) RoleMembers(ctx context.Context) ([]model.Row, error) {
	x.record("role_members")
	if x.MockRoleMembers != nil {
		return x.MockRoleMembers(ctx)
	}
	return nil, nil
}

func (x *Mock) RoleGrants(ctx context.Context) ([]model.Row, error) {
	x.record("role_grants")
	if x.MockRoleGrants != nil {
		return x.MockRoleGrants(ctx)
	}
	return nil, nil
}

func (x *Mock) Close() error {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	x.closed++
	return nil
}

var (
	_ interfaces.Warehouse     = &Mock{}
	_ interfaces.WarehouseConn = &Mock{}
)
