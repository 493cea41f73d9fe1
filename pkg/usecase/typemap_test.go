package usecase_test

import (
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/usecase"
)

func TestTypeMapper(t *testing.T) {
	testCases := []struct {
		platform types.Platform
		native   string
		expect   model.FieldType
	}{
		{"snowflake", "NUMBER(38,0)", model.FieldTypeNumber},
		{"snowflake", "VARCHAR(16777216)", model.FieldTypeString},
		{"snowflake", "TIMESTAMP_NTZ(9)", model.FieldTypeTime},
		{"snowflake", "VARIANT", model.FieldTypeRecord},
		{"snowflake", "OBJECT", model.FieldTypeMap},
		{"snowflake", "boolean", model.FieldTypeBoolean},
		{"snowflake", "GEOGRAPHY", model.FieldTypeString},
		{"snowflake", "UNKNOWN_TYPE", model.FieldTypeString},
		{"postgres", "character varying", model.FieldTypeString},
		{"postgres", "timestamp with time zone", model.FieldTypeTime},
		{"postgres", "integer[]", model.FieldTypeArray},
		{"postgres", "jsonb", model.FieldTypeMap},
		{"postgres", "bytea", model.FieldTypeBytes},
		{"redshift", "SUPER", model.FieldTypeRecord},
		{"bigquery", "ARRAY<STRING>", model.FieldTypeArray},
		{"bigquery", "STRUCT<a INT64>", model.FieldTypeRecord},
		{"bigquery", "INT64", model.FieldTypeNumber},
		{"sqlite", "INTEGER", model.FieldTypeNumber},
		{"sqlite", "VARCHAR(10)", model.FieldTypeString},
		{"sqlite", "", model.FieldTypeBytes},
		{"sqlite", "DATE", model.FieldTypeDate},
		{"sqlite", "DATETIME", model.FieldTypeTime},
		{"sqlite", "DECIMAL(10,2)", model.FieldTypeNumber},
		{"my-platform", "DATE", model.FieldTypeDate},
	}

	for _, tc := range testCases {
		t.Run(string(tc.platform)+"/"+tc.native, func(t *testing.T) {
			gt.Equal(t, usecase.NewTypeMapper(tc.platform)(tc.native), tc.expect)
		})
	}
}
