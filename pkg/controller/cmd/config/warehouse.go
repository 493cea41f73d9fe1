package config

import (
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/interfaces"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/infra/bq"
	"github.com/secmon-lab/catalogsync/pkg/infra/sqlwh"
	"github.com/urfave/cli/v2"
)

// Warehouse is configuration of the source data warehouse.
type Warehouse struct {
	whType  string
	dsn     string
	timeout time.Duration

	sfAccount   string
	sfUser      string
	sfPassword  string
	sfWarehouse string
	sfDatabase  string
	sfRole      string

	bqProjectID string
}

func (x *Warehouse) Flags() []cli.Flag {
	category := "Warehouse"
	return []cli.Flag{
		&cli.StringFlag{
			Category:    category,
			Name:        "warehouse-type",
			Usage:       "Type of source warehouse [snowflake, postgres, redshift, sqlite, bigquery]",
			EnvVars:     []string{"CATALOGSYNC_WAREHOUSE_TYPE"},
			Destination: &x.whType,
			Value:       string(types.WarehouseSnowflake),
		},
		&cli.StringFlag{
			Category:    category,
			Name:        "warehouse-dsn",
			Usage:       "Data source name of the warehouse. Snowflake DSN is built from snowflake-* flags if empty",
			EnvVars:     []string{"CATALOGSYNC_WAREHOUSE_DSN"},
			Destination: &x.dsn,
		},
		&cli.DurationFlag{
			Category:    category,
			Name:        "warehouse-timeout",
			Usage:       "Timeout of warehouse connection and each catalog query",
			EnvVars:     []string{"CATALOGSYNC_WAREHOUSE_TIMEOUT"},
			Destination: &x.timeout,
			Value:       sqlwh.DefaultTimeout,
		},
		&cli.StringFlag{
			Category:    category,
			Name:        "snowflake-account",
			Usage:       "Snowflake account identifier",
			EnvVars:     []string{"CATALOGSYNC_SNOWFLAKE_ACCOUNT"},
			Destination: &x.sfAccount,
		},
		&cli.StringFlag{
			Category:    category,
			Name:        "snowflake-user",
			Usage:       "Snowflake user name",
			EnvVars:     []string{"CATALOGSYNC_SNOWFLAKE_USER"},
			Destination: &x.sfUser,
		},
		&cli.StringFlag{
			Category:    category,
			Name:        "snowflake-password",
			Usage:       "Snowflake password",
			EnvVars:     []string{"CATALOGSYNC_SNOWFLAKE_PASSWORD"},
			Destination: &x.sfPassword,
		},
		&cli.StringFlag{
			Category:    category,
			Name:        "snowflake-warehouse",
			Usage:       "Snowflake virtual warehouse to run catalog queries",
			EnvVars:     []string{"CATALOGSYNC_SNOWFLAKE_WAREHOUSE"},
			Destination: &x.sfWarehouse,
		},
		&cli.StringFlag{
			Category:    category,
			Name:        "snowflake-database",
			Usage:       "Snowflake default database",
			EnvVars:     []string{"CATALOGSYNC_SNOWFLAKE_DATABASE"},
			Destination: &x.sfDatabase,
		},
		&cli.StringFlag{
			Category:    category,
			Name:        "snowflake-role",
			Usage:       "Snowflake role. ACCOUNT_USAGE access is required to extract access control",
			EnvVars:     []string{"CATALOGSYNC_SNOWFLAKE_ROLE"},
			Destination: &x.sfRole,
		},
		&cli.StringFlag{
			Category:    category,
			Name:        "bigquery-project-id",
			Usage:       "Google Cloud project ID of BigQuery warehouse",
			EnvVars:     []string{"CATALOGSYNC_BIGQUERY_PROJECT_ID"},
			Destination: &x.bqProjectID,
		},
	}
}

// Type returns the configured warehouse type. It is used as the default platform name.
func (x *Warehouse) Type() types.WarehouseType {
	return types.WarehouseType(x.whType)
}

// Configure builds a warehouse client. It does not connect to the warehouse.
func (x *Warehouse) Configure() (interfaces.Warehouse, error) {
	switch x.Type() {
	case types.WarehouseBigQuery:
		if x.bqProjectID == "" {
			return nil, goerr.Wrap(types.ErrInvalidOption, "bigquery-project-id is required for bigquery warehouse")
		}
		return bq.NewCatalog(types.GoogleProjectID(x.bqProjectID), bq.WithCatalogTimeout(x.timeout))

	case types.WarehouseSnowflake:
		dsn := types.Secret(x.dsn)
		if dsn == "" {
			built, err := sqlwh.SnowflakeDSN(sqlwh.SnowflakeConfig{
				Account:   x.sfAccount,
				User:      x.sfUser,
				Password:  types.Secret(x.sfPassword),
				Warehouse: x.sfWarehouse,
				Database:  x.sfDatabase,
				Role:      x.sfRole,
				Timeout:   x.timeout,
			})
			if err != nil {
				return nil, err
			}
			dsn = built
		}
		return sqlwh.New(types.WarehouseSnowflake, dsn, sqlwh.WithTimeout(x.timeout))

	case types.WarehousePostgres, types.WarehouseRedshift, types.WarehouseSQLite:
		return sqlwh.New(x.Type(), types.Secret(x.dsn), sqlwh.WithTimeout(x.timeout))

	default:
		return nil, goerr.Wrap(types.ErrInvalidOption, "unsupported warehouse type", goerr.V("type", x.whType))
	}
}

func (x *Warehouse) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("type", x.whType),
		slog.Bool("dsn", x.dsn != ""),
		slog.Duration("timeout", x.timeout),
		slog.String("snowflake_account", x.sfAccount),
		slog.String("snowflake_user", x.sfUser),
		slog.String("snowflake_warehouse", x.sfWarehouse),
		slog.String("snowflake_role", x.sfRole),
		slog.String("bigquery_project_id", x.bqProjectID),
	)
}
