package sqlwh

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/interfaces"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/utils"
)

const DefaultTimeout = 300 * time.Second

// Client is a warehouse reachable through database/sql. Catalog queries are provided by Dialect.
type Client struct {
	dialect Dialect
	dsn     types.Secret
	timeout time.Duration
}

type Option func(*Client)

// WithTimeout sets timeout of connection and each catalog query.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

func New(whType types.WarehouseType, dsn types.Secret, options ...Option) (*Client, error) {
	dialect, err := NewDialect(whType)
	if err != nil {
		return nil, err
	}
	if dsn == "" {
		return nil, goerr.Wrap(types.ErrInvalidOption, "warehouse DSN is required", goerr.V("type", whType))
	}

	c := &Client{
		dialect: dialect,
		dsn:     dsn,
		timeout: DefaultTimeout,
	}
	for _, opt := range options {
		opt(c)
	}

	return c, nil
}

func (x *Client) Type() types.WarehouseType { return x.dialect.Type() }

func (x *Client) Connect(ctx context.Context) (interfaces.WarehouseConn, error) {
	db, err := sql.Open(x.dialect.Driver(), x.dsn.Unsafe())
	if err != nil {
		return nil, goerr.Wrap(types.ErrConnection, "failed to open warehouse", goerr.V("type", x.dialect.Type()), goerr.V("error", err.Error()))
	}
	// Catalog queries are issued one by one.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(x.timeout)

	return &Conn{
		db:      db,
		dialect: x.dialect,
		timeout: x.timeout,
	}, nil
}

var _ interfaces.Warehouse = &Client{}

// Conn is an open warehouse connection.
type Conn struct {
	db      *sql.DB
	dialect Dialect
	timeout time.Duration
}

func (x *Conn) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	if err := x.db.PingContext(ctx); err != nil {
		return goerr.Wrap(types.ErrConnection, "failed to connect warehouse", goerr.V("type", x.dialect.Type()), goerr.V("error", err.Error()))
	}
	return nil
}

// Query runs a catalog query and returns all rows. Column names are upper-cased.
func (x *Conn) Query(ctx context.Context, query string, args ...any) ([]model.Row, error) {
	ctx, cancel := context.WithTimeout(ctx, x.timeout)
	defer cancel()

	utils.CtxLogger(ctx).Debug("run catalog query", "query", query, "args", args)

	rows, err := x.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classifyError(err, "failed to run catalog query", query)
	}
	defer utils.SafeClose(ctx, rows)

	columns, err := rows.Columns()
	if err != nil {
		return nil, classifyError(err, "failed to get columns", query)
	}

	var results []model.Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, classifyError(err, "failed to scan row", query)
		}
		results = append(results, model.NewRow(columns, values))
	}
	if err := rows.Err(); err != nil {
		return nil, classifyError(err, "failed to iterate rows", query)
	}

	return results, nil
}

func (x *Conn) Databases(ctx context.Context) ([]model.Row, error) {
	return x.dialect.Databases(ctx, x)
}

func (x *Conn) Schemas(ctx context.Context, database string) ([]model.Row, error) {
	return x.dialect.Schemas(ctx, x, database)
}

func (x *Conn) Tables(ctx context.Context, database, schema string) ([]model.Row, error) {
	return x.dialect.Tables(ctx, x, database, schema)
}

func (x *Conn) Columns(ctx context.Context, database, schema string) ([]model.Row, error) {
	return x.dialect.Columns(ctx, x, database, schema)
}

func (x *Conn) PrimaryKeys(ctx context.Context, database, schema string) ([]model.Row, error) {
	return x.dialect.PrimaryKeys(ctx, x, database, schema)
}

func (x *Conn) ForeignKeys(ctx context.Context, database, schema string) ([]model.Row, error) {
	return x.dialect.ForeignKeys(ctx, x, database, schema)
}

func (x *Conn) Users(ctx context.Context) ([]model.Row, error) {
	return x.dialect.Users(ctx, x)
}

func (x *Conn) Roles(ctx context.Context) ([]model.Row, error) {
	return x.dialect.Roles(ctx, x)
}

func (x *Conn) RoleMembers(ctx context.Context) ([]model.Row, error) {
	return x.dialect.RoleMembers(ctx, x)
}

func (x *Conn) RoleGrants(ctx context.Context) ([]model.Row, error) {
	return x.dialect.RoleGrants(ctx, x)
}

func (x *Conn) Close() error {
	if err := x.db.Close(); err != nil {
		return goerr.Wrap(err, "failed to close warehouse connection")
	}
	return nil
}

var _ interfaces.WarehouseConn = &Conn{}

// classifyError tags err with types.ErrConnection if the connection is lost, otherwise types.ErrExtraction.
func classifyError(err error, msg, query string) error {
	if isConnectionError(err) {
		return goerr.Wrap(types.ErrConnection, msg, goerr.V("query", query), goerr.V("error", err.Error()))
	}
	return goerr.Wrap(types.ErrExtraction, msg, goerr.V("query", query), goerr.V("error", err.Error()))
}

func isConnectionError(err error) bool {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
