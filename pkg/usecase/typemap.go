package usecase

import (
	"strings"

	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
)

// TypeMapper maps a native column type of the warehouse to a catalog field type.
type TypeMapper func(nativeType string) model.FieldType

var genericTypes = map[string]model.FieldType{
	"NUMBER":           model.FieldTypeNumber,
	"NUMERIC":          model.FieldTypeNumber,
	"DECIMAL":          model.FieldTypeNumber,
	"BIGNUMERIC":       model.FieldTypeNumber,
	"INT":              model.FieldTypeNumber,
	"INTEGER":          model.FieldTypeNumber,
	"BIGINT":           model.FieldTypeNumber,
	"SMALLINT":         model.FieldTypeNumber,
	"TINYINT":          model.FieldTypeNumber,
	"BYTEINT":          model.FieldTypeNumber,
	"INT2":             model.FieldTypeNumber,
	"INT4":             model.FieldTypeNumber,
	"INT8":             model.FieldTypeNumber,
	"INT64":            model.FieldTypeNumber,
	"SERIAL":           model.FieldTypeNumber,
	"BIGSERIAL":        model.FieldTypeNumber,
	"FLOAT":            model.FieldTypeNumber,
	"FLOAT4":           model.FieldTypeNumber,
	"FLOAT8":           model.FieldTypeNumber,
	"FLOAT64":          model.FieldTypeNumber,
	"DOUBLE":           model.FieldTypeNumber,
	"DOUBLE PRECISION": model.FieldTypeNumber,
	"REAL":             model.FieldTypeNumber,
	"MONEY":            model.FieldTypeNumber,

	"VARCHAR":           model.FieldTypeString,
	"CHAR":              model.FieldTypeString,
	"CHARACTER":         model.FieldTypeString,
	"CHARACTER VARYING": model.FieldTypeString,
	"NVARCHAR":          model.FieldTypeString,
	"NCHAR":             model.FieldTypeString,
	"BPCHAR":            model.FieldTypeString,
	"STRING":            model.FieldTypeString,
	"TEXT":              model.FieldTypeString,
	"CLOB":              model.FieldTypeString,
	"UUID":              model.FieldTypeString,

	"BOOLEAN": model.FieldTypeBoolean,
	"BOOL":    model.FieldTypeBoolean,

	"DATE": model.FieldTypeDate,

	"TIME":                        model.FieldTypeTime,
	"TIMETZ":                      model.FieldTypeTime,
	"DATETIME":                    model.FieldTypeTime,
	"TIMESTAMP":                   model.FieldTypeTime,
	"TIMESTAMPTZ":                 model.FieldTypeTime,
	"TIMESTAMP WITH TIME ZONE":    model.FieldTypeTime,
	"TIMESTAMP WITHOUT TIME ZONE": model.FieldTypeTime,
	"TIME WITH TIME ZONE":         model.FieldTypeTime,
	"TIME WITHOUT TIME ZONE":      model.FieldTypeTime,
	"INTERVAL":                    model.FieldTypeTime,

	"BINARY":    model.FieldTypeBytes,
	"VARBINARY": model.FieldTypeBytes,
	"BYTEA":     model.FieldTypeBytes,
	"BLOB":      model.FieldTypeBytes,
	"BYTES":     model.FieldTypeBytes,

	"ARRAY": model.FieldTypeArray,

	"MAP":    model.FieldTypeMap,
	"OBJECT": model.FieldTypeMap,
	"JSON":   model.FieldTypeMap,
	"JSONB":  model.FieldTypeMap,
	"HSTORE": model.FieldTypeMap,

	"STRUCT":  model.FieldTypeRecord,
	"RECORD":  model.FieldTypeRecord,
	"VARIANT": model.FieldTypeRecord,

	"NULL": model.FieldTypeNull,
}

var snowflakeTypes = map[string]model.FieldType{
	"TIMESTAMP_LTZ": model.FieldTypeTime,
	"TIMESTAMP_NTZ": model.FieldTypeTime,
	"TIMESTAMP_TZ":  model.FieldTypeTime,
	"GEOGRAPHY":     model.FieldTypeString,
	"GEOMETRY":      model.FieldTypeString,
	"VECTOR":        model.FieldTypeArray,
}

var postgresTypes = map[string]model.FieldType{
	"USER-DEFINED": model.FieldTypeString,
	"INET":         model.FieldTypeString,
	"CIDR":         model.FieldTypeString,
	"XML":          model.FieldTypeString,
	"SUPER":        model.FieldTypeRecord,
}

var bigqueryTypes = map[string]model.FieldType{
	"GEOGRAPHY":  model.FieldTypeString,
	"BIGNUMERIC": model.FieldTypeNumber,
	"RANGE":      model.FieldTypeRecord,
}

// baseType returns upper-cased type name without parameters, e.g. "NUMBER(38,0)" -> "NUMBER".
func baseType(native string) string {
	t := strings.ToUpper(strings.TrimSpace(native))
	if i := strings.IndexAny(t, "(<"); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	return t
}

func genericType(native string) model.FieldType {
	upper := strings.ToUpper(strings.TrimSpace(native))
	if strings.HasSuffix(upper, "[]") || strings.HasPrefix(upper, "ARRAY<") {
		return model.FieldTypeArray
	}
	if t, ok := genericTypes[baseType(native)]; ok {
		return t
	}
	return model.FieldTypeString
}

func withOverrides(overrides map[string]model.FieldType) TypeMapper {
	return func(native string) model.FieldType {
		if t, ok := overrides[baseType(native)]; ok {
			return t
		}
		return genericType(native)
	}
}

// sqliteType follows the type affinity rules of SQLite.
func sqliteType(native string) model.FieldType {
	t := strings.ToUpper(native)
	switch {
	case t == "":
		return model.FieldTypeBytes
	case strings.Contains(t, "INT"):
		return model.FieldTypeNumber
	case strings.Contains(t, "CHAR"), strings.Contains(t, "CLOB"), strings.Contains(t, "TEXT"):
		return model.FieldTypeString
	case strings.Contains(t, "BLOB"):
		return model.FieldTypeBytes
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"):
		return model.FieldTypeNumber
	case strings.Contains(t, "BOOL"):
		return model.FieldTypeBoolean
	case strings.Contains(t, "DATE"), strings.Contains(t, "TIME"):
		if baseType(t) == "DATE" {
			return model.FieldTypeDate
		}
		return model.FieldTypeTime
	default:
		return model.FieldTypeNumber
	}
}

// NewTypeMapper returns the mapper of the platform. Unknown platforms use generic SQL mapping.
func NewTypeMapper(platform types.Platform) TypeMapper {
	switch types.WarehouseType(platform) {
	case types.WarehouseSnowflake:
		return withOverrides(snowflakeTypes)
	case types.WarehousePostgres, types.WarehouseRedshift:
		return withOverrides(postgresTypes)
	case types.WarehouseBigQuery:
		return withOverrides(bigqueryTypes)
	case types.WarehouseSQLite:
		return sqliteType
	default:
		return genericType
	}
}
