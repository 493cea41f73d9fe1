package sqlwh

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/utils"
	sf "github.com/snowflakedb/gosnowflake"
)

type snowflake struct{}

func (x *snowflake) Type() types.WarehouseType { return types.WarehouseSnowflake }
func (x *snowflake) Driver() string            { return "snowflake" }

// SnowflakeConfig is connection parameters of Snowflake account.
type SnowflakeConfig struct {
	Account   string
	User      string
	Password  types.Secret
	Warehouse string
	Database  string
	Role      string
	Timeout   time.Duration
}

// SnowflakeDSN builds a DSN string for gosnowflake driver.
func SnowflakeDSN(cfg SnowflakeConfig) (types.Secret, error) {
	if cfg.Account == "" || cfg.User == "" {
		return "", goerr.Wrap(types.ErrInvalidOption, "snowflake account and user are required")
	}

	dsn, err := sf.DSN(&sf.Config{
		Account:        cfg.Account,
		User:           cfg.User,
		Password:       cfg.Password.Unsafe(),
		Warehouse:      cfg.Warehouse,
		Database:       cfg.Database,
		Role:           cfg.Role,
		LoginTimeout:   cfg.Timeout,
		RequestTimeout: cfg.Timeout,
		Application:    types.AppName,
	})
	if err != nil {
		return "", goerr.Wrap(types.ErrInvalidOption, "invalid snowflake config", goerr.V("account", cfg.Account), goerr.V("error", err.Error()))
	}

	return types.Secret(dsn), nil
}

func (x *snowflake) Databases(ctx context.Context, q Querier) ([]model.Row, error) {
	rows, err := q.Query(ctx, "SHOW DATABASES")
	if err != nil {
		return nil, err
	}
	return renameAll(rows, map[string]string{"CREATED_ON": "CREATED"}), nil
}

func (x *snowflake) Schemas(ctx context.Context, q Querier, database string) ([]model.Row, error) {
	rows, err := q.Query(ctx, "SHOW SCHEMAS IN DATABASE "+quoteIdent(database))
	if err != nil {
		return nil, err
	}
	return renameAll(rows, map[string]string{"CREATED_ON": "CREATED"}), nil
}

func (x *snowflake) Tables(ctx context.Context, q Querier, database, schema string) ([]model.Row, error) {
	query := fmt.Sprintf(`SELECT TABLE_NAME, TABLE_TYPE, ROW_COUNT, BYTES, CREATED, LAST_ALTERED, COMMENT, TABLE_OWNER
FROM %s.INFORMATION_SCHEMA.TABLES
WHERE TABLE_SCHEMA = ?
ORDER BY TABLE_NAME`, quoteIdent(database))
	return q.Query(ctx, query, schema)
}

func (x *snowflake) Columns(ctx context.Context, q Querier, database, schema string) ([]model.Row, error) {
	query := fmt.Sprintf(`SELECT TABLE_NAME, COLUMN_NAME, DATA_TYPE, IS_NULLABLE, COLUMN_DEFAULT, ORDINAL_POSITION, COMMENT
FROM %s.INFORMATION_SCHEMA.COLUMNS
WHERE TABLE_SCHEMA = ?
ORDER BY TABLE_NAME, ORDINAL_POSITION`, quoteIdent(database))
	return q.Query(ctx, query, schema)
}

func (x *snowflake) PrimaryKeys(ctx context.Context, q Querier, database, schema string) ([]model.Row, error) {
	return q.Query(ctx, fmt.Sprintf("SHOW PRIMARY KEYS IN SCHEMA %s.%s", quoteIdent(database), quoteIdent(schema)))
}

func (x *snowflake) ForeignKeys(ctx context.Context, q Querier, database, schema string) ([]model.Row, error) {
	rows, err := q.Query(ctx, fmt.Sprintf("SHOW IMPORTED KEYS IN SCHEMA %s.%s", quoteIdent(database), quoteIdent(schema)))
	if err != nil {
		return nil, err
	}
	return renameAll(rows, map[string]string{
		"FK_TABLE_NAME":    "TABLE_NAME",
		"FK_COLUMN_NAME":   "COLUMN_NAME",
		"FK_NAME":          "CONSTRAINT_NAME",
		"PK_DATABASE_NAME": "REFERENCED_DATABASE",
		"PK_SCHEMA_NAME":   "REFERENCED_SCHEMA",
		"PK_TABLE_NAME":    "REFERENCED_TABLE",
		"PK_COLUMN_NAME":   "REFERENCED_COLUMN",
	}), nil
}

// withFallback runs primary query and then fallback query if the primary one fails without connection error. ACCOUNT_USAGE requires IMPORTED PRIVILEGES on SNOWFLAKE database.
func withFallback(ctx context.Context, q Querier, primary, fallback string) ([]model.Row, error) {
	rows, err := q.Query(ctx, primary)
	if err == nil {
		return rows, nil
	}
	if errors.Is(err, types.ErrConnection) {
		return nil, err
	}

	utils.CtxLogger(ctx).Warn("ACCOUNT_USAGE is not accessible, falling back", "fallback", fallback, utils.ErrLog(err))
	return q.Query(ctx, fallback)
}

func (x *snowflake) Users(ctx context.Context, q Querier) ([]model.Row, error) {
	return withFallback(ctx, q,
		`SELECT NAME, EMAIL, DISPLAY_NAME, DISABLED, CREATED_ON, LAST_SUCCESS_LOGIN, COMMENT
FROM SNOWFLAKE.ACCOUNT_USAGE.USERS
WHERE DELETED_ON IS NULL
ORDER BY NAME`,
		"SHOW USERS",
	)
}

func (x *snowflake) Roles(ctx context.Context, q Querier) ([]model.Row, error) {
	return withFallback(ctx, q,
		`SELECT NAME, COMMENT, CREATED_ON, OWNER
FROM SNOWFLAKE.ACCOUNT_USAGE.ROLES
WHERE DELETED_ON IS NULL
ORDER BY NAME`,
		"SHOW ROLES",
	)
}

func (x *snowflake) RoleMembers(ctx context.Context, q Querier) ([]model.Row, error) {
	return q.Query(ctx, `SELECT ROLE, GRANTEE_NAME
FROM SNOWFLAKE.ACCOUNT_USAGE.GRANTS_TO_USERS
WHERE DELETED_ON IS NULL`)
}

func (x *snowflake) RoleGrants(ctx context.Context, q Querier) ([]model.Row, error) {
	return q.Query(ctx, `SELECT GRANTEE_NAME, PRIVILEGE, GRANTED_ON, NAME
FROM SNOWFLAKE.ACCOUNT_USAGE.GRANTS_TO_ROLES
WHERE DELETED_ON IS NULL AND GRANTED_TO = 'ROLE'`)
}

var _ Dialect = &snowflake{}
