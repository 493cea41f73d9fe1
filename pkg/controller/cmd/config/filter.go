package config

import (
	"log/slog"

	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/urfave/cli/v2"
)

// DefaultExcludedSchemas are system schemas that never hold user data.
var DefaultExcludedSchemas = []string{"INFORMATION_SCHEMA"}

// Filter is include and exclude glob patterns of databases, schemas and tables.
type Filter struct {
	includeDatabases cli.StringSlice
	excludeDatabases cli.StringSlice
	includeSchemas   cli.StringSlice
	excludeSchemas   cli.StringSlice
	includeTables    cli.StringSlice
	excludeTables    cli.StringSlice
}

func (x *Filter) Flags() []cli.Flag {
	category := "Filter"
	return []cli.Flag{
		&cli.StringSliceFlag{
			Category:    category,
			Name:        "include-database",
			Usage:       "Glob pattern of databases to extract. All databases if not set",
			EnvVars:     []string{"CATALOGSYNC_INCLUDE_DATABASE"},
			Destination: &x.includeDatabases,
		},
		&cli.StringSliceFlag{
			Category:    category,
			Name:        "exclude-database",
			Usage:       "Glob pattern of databases to skip",
			EnvVars:     []string{"CATALOGSYNC_EXCLUDE_DATABASE"},
			Destination: &x.excludeDatabases,
		},
		&cli.StringSliceFlag{
			Category:    category,
			Name:        "include-schema",
			Usage:       "Glob pattern of schemas to extract, matched with both schema and database.schema",
			EnvVars:     []string{"CATALOGSYNC_INCLUDE_SCHEMA"},
			Destination: &x.includeSchemas,
		},
		&cli.StringSliceFlag{
			Category:    category,
			Name:        "exclude-schema",
			Usage:       "Glob pattern of schemas to skip",
			EnvVars:     []string{"CATALOGSYNC_EXCLUDE_SCHEMA"},
			Destination: &x.excludeSchemas,
			Value:       cli.NewStringSlice(DefaultExcludedSchemas...),
		},
		&cli.StringSliceFlag{
			Category:    category,
			Name:        "include-table",
			Usage:       "Glob pattern of tables to extract, matched with both table and database.schema.table",
			EnvVars:     []string{"CATALOGSYNC_INCLUDE_TABLE"},
			Destination: &x.includeTables,
		},
		&cli.StringSliceFlag{
			Category:    category,
			Name:        "exclude-table",
			Usage:       "Glob pattern of tables to skip",
			EnvVars:     []string{"CATALOGSYNC_EXCLUDE_TABLE"},
			Destination: &x.excludeTables,
		},
	}
}

func (x *Filter) Configure() (*model.Filter, error) {
	databases, err := model.NewPatternSet(x.includeDatabases.Value(), x.excludeDatabases.Value())
	if err != nil {
		return nil, err
	}
	schemas, err := model.NewPatternSet(x.includeSchemas.Value(), x.excludeSchemas.Value())
	if err != nil {
		return nil, err
	}
	tables, err := model.NewPatternSet(x.includeTables.Value(), x.excludeTables.Value())
	if err != nil {
		return nil, err
	}

	return &model.Filter{
		Databases: databases,
		Schemas:   schemas,
		Tables:    tables,
	}, nil
}

func (x *Filter) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("include_database", x.includeDatabases.Value()),
		slog.Any("exclude_database", x.excludeDatabases.Value()),
		slog.Any("include_schema", x.includeSchemas.Value()),
		slog.Any("exclude_schema", x.excludeSchemas.Value()),
		slog.Any("include_table", x.includeTables.Value()),
		slog.Any("exclude_table", x.excludeTables.Value()),
	)
}
