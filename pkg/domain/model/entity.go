package model

import (
	"time"

	"github.com/secmon-lab/catalogsync/pkg/domain/types"
)

// Entity is a canonical metadata record eligible for ingestion.
type Entity interface {
	EntityURN() types.URN
	Kind() types.EntityKind
	// Key returns the natural key of the entity.
	Key() string
}

type FieldType string

const (
	FieldTypeNumber  FieldType = "NumberType"
	FieldTypeString  FieldType = "StringType"
	FieldTypeBoolean FieldType = "BooleanType"
	FieldTypeDate    FieldType = "DateType"
	FieldTypeTime    FieldType = "TimeType"
	FieldTypeBytes   FieldType = "BytesType"
	FieldTypeArray   FieldType = "ArrayType"
	FieldTypeMap     FieldType = "MapType"
	FieldTypeRecord  FieldType = "RecordType"
	FieldTypeNull    FieldType = "NullType"
)

type ForeignKeyRef struct {
	Dataset    string    `json:"dataset"`
	DatasetURN types.URN `json:"dataset_urn"`
	Column     string    `json:"column"`
}

type FieldMetadata struct {
	Name         string         `json:"name"`
	NativeType   string         `json:"native_type"`
	Type         FieldType      `json:"type"`
	Nullable     bool           `json:"nullable"`
	Position     int            `json:"position"`
	DefaultValue *string        `json:"default_value,omitempty"`
	Description  string         `json:"description,omitempty"`
	IsPrimaryKey bool           `json:"is_primary_key"`
	ForeignKey   *ForeignKeyRef `json:"foreign_key,omitempty"`
}

type ForeignKey struct {
	Name           string    `json:"name"`
	SourceFields   []string  `json:"source_fields"`
	ForeignDataset string    `json:"foreign_dataset"`
	ForeignFields  []string  `json:"foreign_fields"`
	ForeignURN     types.URN `json:"foreign_urn"`
}

type DatasetMetadata struct {
	URN           types.URN       `json:"urn"`
	QualifiedName string          `json:"qualified_name"`
	Database      string          `json:"database"`
	Schema        string          `json:"schema"`
	Name          string          `json:"name"`
	TableKind     types.TableKind `json:"table_kind"`
	Fields        []FieldMetadata `json:"fields"`
	PrimaryKeys   []string        `json:"primary_keys,omitempty"`
	ForeignKeys   []ForeignKey    `json:"foreign_keys,omitempty"`
	RowCount      *int64          `json:"row_count,omitempty"`
	SizeBytes     *int64          `json:"size_bytes,omitempty"`
	CreatedAt     *time.Time      `json:"created_at,omitempty"`
	ModifiedAt    *time.Time      `json:"modified_at,omitempty"`
	Description   string          `json:"description,omitempty"`
	Owner         string          `json:"owner,omitempty"`
	ContainerURN  types.URN       `json:"container_urn"`
}

func (x *DatasetMetadata) EntityURN() types.URN   { return x.URN }
func (x *DatasetMetadata) Kind() types.EntityKind { return types.KindDataset }
func (x *DatasetMetadata) Key() string            { return x.QualifiedName }

// SchemaMetadata is a database or schema container.
type SchemaMetadata struct {
	URN           types.URN  `json:"urn"`
	QualifiedName string     `json:"qualified_name"`
	Database      string     `json:"database"`
	Schema        string     `json:"schema,omitempty"`
	Owner         string     `json:"owner,omitempty"`
	Description   string     `json:"description,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	ParentURN     types.URN  `json:"parent_urn,omitempty"`
	Children      []string   `json:"children,omitempty"`
}

func (x *SchemaMetadata) EntityURN() types.URN   { return x.URN }
func (x *SchemaMetadata) Kind() types.EntityKind { return types.KindSchema }
func (x *SchemaMetadata) Key() string            { return x.QualifiedName }

// IsDatabase returns true if the container is a database, not a schema.
func (x *SchemaMetadata) IsDatabase() bool { return x.Schema == "" }

type UserMetadata struct {
	URN         types.URN  `json:"urn"`
	Username    string     `json:"username"`
	Email       string     `json:"email,omitempty"`
	DisplayName string     `json:"display_name,omitempty"`
	Active      bool       `json:"active"`
	Roles       []string   `json:"roles"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
	Comment     string     `json:"comment,omitempty"`
}

func (x *UserMetadata) EntityURN() types.URN   { return x.URN }
func (x *UserMetadata) Kind() types.EntityKind { return types.KindUser }
func (x *UserMetadata) Key() string            { return x.Username }

type Grant struct {
	Privilege  string `json:"privilege"`
	ObjectType string `json:"object_type"`
	ObjectName string `json:"object_name"`
}

type GroupMetadata struct {
	URN         types.URN  `json:"urn"`
	GroupName   string     `json:"group_name"`
	DisplayName string     `json:"display_name"`
	Description string     `json:"description,omitempty"`
	Active      bool       `json:"active"`
	Members     []string   `json:"members"`
	Owner       string     `json:"owner,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	Grants      []Grant    `json:"grants,omitempty"`
}

func (x *GroupMetadata) EntityURN() types.URN   { return x.URN }
func (x *GroupMetadata) Kind() types.EntityKind { return types.KindGroup }
func (x *GroupMetadata) Key() string            { return x.GroupName }

var (
	_ Entity = &DatasetMetadata{}
	_ Entity = &SchemaMetadata{}
	_ Entity = &UserMetadata{}
	_ Entity = &GroupMetadata{}
)
