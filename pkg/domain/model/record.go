package model

import (
	"strings"

	"github.com/secmon-lab/catalogsync/pkg/domain/types"
)

// Record is a raw catalog record yielded by the extractor. The set of implementations is closed.
type Record interface {
	Category() types.Category
	// Name returns human readable identity of the record for error reporting.
	Name() string
	record()
}

type DatabaseRecord struct {
	Row     Row
	Schemas []string
}

func (x *DatabaseRecord) Category() types.Category { return types.CategoryStructural }
func (x *DatabaseRecord) Name() string             { return "database:" + x.Row.String("NAME") }
func (x *DatabaseRecord) record()                  {}

type SchemaRecord struct {
	Database string
	Row      Row
	Tables   []string
}

func (x *SchemaRecord) Category() types.Category { return types.CategoryStructural }
func (x *SchemaRecord) Name() string {
	return "schema:" + joinName(x.Database, x.Row.String("NAME"))
}
func (x *SchemaRecord) record() {}

type TableRecord struct {
	Database    string
	Schema      string
	Row         Row
	Columns     []Row
	PrimaryKeys []Row
	ForeignKeys []Row
}

func (x *TableRecord) Category() types.Category { return types.CategoryStructural }
func (x *TableRecord) Name() string {
	return "table:" + joinName(x.Database, x.Schema, x.Row.String("TABLE_NAME"))
}
func (x *TableRecord) record() {}

type UserRecord struct {
	Row   Row
	Roles []string
}

func (x *UserRecord) Category() types.Category { return types.CategoryAccessControl }
func (x *UserRecord) Name() string             { return "user:" + x.Row.String("NAME") }
func (x *UserRecord) record()                  {}

type RoleRecord struct {
	Row     Row
	Members []string
	Grants  []Row
}

func (x *RoleRecord) Category() types.Category { return types.CategoryAccessControl }
func (x *RoleRecord) Name() string             { return "role:" + x.Row.String("NAME") }
func (x *RoleRecord) record()                  {}

var (
	_ Record = &DatabaseRecord{}
	_ Record = &SchemaRecord{}
	_ Record = &TableRecord{}
	_ Record = &UserRecord{}
	_ Record = &RoleRecord{}
)

func joinName(parts ...string) string {
	return strings.Join(parts, ".")
}

// QualifiedName joins non-empty parts with ".".
func QualifiedName(parts ...string) string {
	var nonEmpty []string
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, ".")
}
