package usecase

import (
	"slices"
	"sort"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/domain/urn"
)

// Normalizer converts raw records into canonical entities. It is stateless and safe for concurrent use.
type Normalizer struct {
	urn     *urn.Builder
	typeMap TypeMapper
}

func NewNormalizer(builder *urn.Builder, typeMap TypeMapper) *Normalizer {
	if typeMap == nil {
		typeMap = NewTypeMapper(builder.Platform())
	}
	return &Normalizer{urn: builder, typeMap: typeMap}
}

// Normalize returns an entity of the record, or nil if the record is rejected. Returned errors wrap types.ErrTransform and describe rejected records or dropped parts of the record.
func (x *Normalizer) Normalize(rec model.Record) (model.Entity, []error) {
	switch r := rec.(type) {
	case *model.DatabaseRecord:
		return x.database(r)
	case *model.SchemaRecord:
		return x.schema(r)
	case *model.TableRecord:
		return x.table(r)
	case *model.UserRecord:
		return x.user(r)
	case *model.RoleRecord:
		return x.role(r)
	default:
		return nil, []error{goerr.Wrap(types.ErrTransform, "unknown record type", goerr.V("record", rec))}
	}
}

func rejected(rec model.Record, msg string, values ...goerr.Option) (model.Entity, []error) {
	values = append(values, goerr.V("record", rec.Name()))
	return nil, []error{goerr.Wrap(types.ErrTransform, msg, values...)}
}

// uniqueSorted returns sorted names without empty and duplicated ones.
func uniqueSorted(names []string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n != "" {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func (x *Normalizer) database(r *model.DatabaseRecord) (model.Entity, []error) {
	name := r.Row.String("NAME")
	if name == "" {
		return rejected(r, "database name is missing")
	}

	u, err := x.urn.Container(name, "")
	if err != nil {
		return rejected(r, "failed to build database URN", goerr.V("error", err.Error()))
	}

	children := make([]string, 0, len(r.Schemas))
	for _, s := range r.Schemas {
		children = append(children, model.QualifiedName(name, s))
	}

	return &model.SchemaMetadata{
		URN:           u,
		QualifiedName: name,
		Database:      name,
		Owner:         r.Row.String("OWNER"),
		Description:   r.Row.String("COMMENT"),
		CreatedAt:     r.Row.Time("CREATED"),
		Children:      uniqueSorted(children),
	}, nil
}

func (x *Normalizer) schema(r *model.SchemaRecord) (model.Entity, []error) {
	name := r.Row.String("NAME")
	if r.Database == "" {
		return rejected(r, "database name of schema is missing")
	}
	if name == "" {
		return rejected(r, "schema name is missing", goerr.V("database", r.Database))
	}

	u, err := x.urn.Container(r.Database, name)
	if err != nil {
		return rejected(r, "failed to build schema URN", goerr.V("error", err.Error()))
	}
	parent, err := x.urn.Container(r.Database, "")
	if err != nil {
		return rejected(r, "failed to build database URN", goerr.V("error", err.Error()))
	}

	children := make([]string, 0, len(r.Tables))
	for _, t := range r.Tables {
		children = append(children, model.QualifiedName(r.Database, name, t))
	}

	return &model.SchemaMetadata{
		URN:           u,
		QualifiedName: model.QualifiedName(r.Database, name),
		Database:      r.Database,
		Schema:        name,
		Owner:         r.Row.String("OWNER"),
		Description:   r.Row.String("COMMENT"),
		CreatedAt:     r.Row.Time("CREATED"),
		ParentURN:     parent,
		Children:      uniqueSorted(children),
	}, nil
}

func tableKind(tableType string) types.TableKind {
	if strings.Contains(strings.ToUpper(tableType), "VIEW") {
		return types.TableKindView
	}
	return types.TableKindTable
}

func (x *Normalizer) table(r *model.TableRecord) (model.Entity, []error) {
	name := r.Row.String("TABLE_NAME")
	if r.Database == "" || r.Schema == "" {
		return rejected(r, "database or schema name of table is missing")
	}
	if name == "" {
		return rejected(r, "table name is missing", goerr.V("schema", model.QualifiedName(r.Database, r.Schema)))
	}

	qualifiedName := model.QualifiedName(r.Database, r.Schema, name)
	u, err := x.urn.Dataset(qualifiedName)
	if err != nil {
		return rejected(r, "failed to build dataset URN", goerr.V("error", err.Error()))
	}
	container, err := x.urn.Container(r.Database, r.Schema)
	if err != nil {
		return rejected(r, "failed to build schema URN", goerr.V("error", err.Error()))
	}

	dataset := &model.DatasetMetadata{
		URN:           u,
		QualifiedName: qualifiedName,
		Database:      r.Database,
		Schema:        r.Schema,
		Name:          name,
		TableKind:     tableKind(r.Row.String("TABLE_TYPE")),
		RowCount:      r.Row.Int64("ROW_COUNT"),
		SizeBytes:     r.Row.Int64("BYTES"),
		CreatedAt:     r.Row.Time("CREATED"),
		ModifiedAt:    r.Row.Time("LAST_ALTERED"),
		Description:   r.Row.String("COMMENT"),
		Owner:         r.Row.String("TABLE_OWNER"),
		ContainerURN:  container,
	}

	var errs []error
	dataset.Fields, errs = x.fields(r, qualifiedName)
	dataset.PrimaryKeys = primaryKeys(r.PrimaryKeys)

	isPK := make(map[string]bool, len(dataset.PrimaryKeys))
	for _, pk := range dataset.PrimaryKeys {
		isPK[pk] = true
	}
	for i := range dataset.Fields {
		dataset.Fields[i].IsPrimaryKey = isPK[dataset.Fields[i].Name]
	}

	fks, fkErrs := x.foreignKeys(r, qualifiedName)
	errs = append(errs, fkErrs...)
	dataset.ForeignKeys = fks
	for _, fk := range fks {
		for i, src := range fk.SourceFields {
			for j := range dataset.Fields {
				if dataset.Fields[j].Name == src {
					dataset.Fields[j].ForeignKey = &model.ForeignKeyRef{
						Dataset:    fk.ForeignDataset,
						DatasetURN: fk.ForeignURN,
						Column:     fk.ForeignFields[i],
					}
				}
			}
		}
	}

	return dataset, errs
}

func (x *Normalizer) fields(r *model.TableRecord, qualifiedName string) ([]model.FieldMetadata, []error) {
	var errs []error
	fields := make([]model.FieldMetadata, 0, len(r.Columns))

	for i, col := range r.Columns {
		name := col.String("COLUMN_NAME")
		if name == "" {
			errs = append(errs, goerr.Wrap(types.ErrTransform, "column name is missing",
				goerr.V("dataset", qualifiedName),
				goerr.V("index", i),
				goerr.V("data_type", col.String("DATA_TYPE")),
			))
			continue
		}

		position := i + 1
		if p := col.Int64("ORDINAL_POSITION"); p != nil {
			position = int(*p)
		}

		var defaultValue *string
		if col.Has("COLUMN_DEFAULT") {
			v := col.String("COLUMN_DEFAULT")
			defaultValue = &v
		}

		native := col.String("DATA_TYPE")
		fields = append(fields, model.FieldMetadata{
			Name:         name,
			NativeType:   native,
			Type:         x.typeMap(native),
			Nullable:     !col.Has("IS_NULLABLE") || col.Bool("IS_NULLABLE"),
			Position:     position,
			DefaultValue: defaultValue,
			Description:  col.String("COMMENT"),
		})
	}

	sort.SliceStable(fields, func(i, j int) bool { return fields[i].Position < fields[j].Position })
	return fields, errs
}

func primaryKeys(rows []model.Row) []string {
	type key struct {
		name string
		seq  int64
	}
	keys := make([]key, 0, len(rows))
	for i, row := range rows {
		name := row.String("COLUMN_NAME")
		if name == "" {
			continue
		}
		seq := int64(i + 1)
		if s := row.Int64("KEY_SEQUENCE"); s != nil {
			seq = *s
		}
		keys = append(keys, key{name: name, seq: seq})
	}
	sort.SliceStable(keys, func(i, j int) bool { return keys[i].seq < keys[j].seq })

	var names []string
	for _, k := range keys {
		if !slices.Contains(names, k.name) {
			names = append(names, k.name)
		}
	}
	return names
}

func (x *Normalizer) foreignKeys(r *model.TableRecord, qualifiedName string) ([]model.ForeignKey, []error) {
	var errs []error
	var order []string
	byName := map[string]*model.ForeignKey{}

	for _, row := range r.ForeignKeys {
		column := row.String("COLUMN_NAME")
		refTable := row.String("REFERENCED_TABLE")
		refColumn := row.String("REFERENCED_COLUMN")
		if column == "" || refTable == "" || refColumn == "" {
			errs = append(errs, goerr.Wrap(types.ErrTransform, "incomplete foreign key",
				goerr.V("dataset", qualifiedName),
				goerr.V("constraint", row.String("CONSTRAINT_NAME")),
			))
			continue
		}

		refDatabase := row.String("REFERENCED_DATABASE")
		if refDatabase == "" {
			refDatabase = r.Database
		}
		refSchema := row.String("REFERENCED_SCHEMA")
		if refSchema == "" {
			refSchema = r.Schema
		}
		target := model.QualifiedName(refDatabase, refSchema, refTable)

		name := row.String("CONSTRAINT_NAME")
		if name == "" {
			name = "fk_" + qualifiedName + "_" + target
		}

		fk, ok := byName[name]
		if !ok {
			u, err := x.urn.Dataset(target)
			if err != nil {
				errs = append(errs, goerr.Wrap(types.ErrTransform, "failed to build foreign dataset URN", goerr.V("dataset", qualifiedName), goerr.V("error", err.Error())))
				continue
			}
			fk = &model.ForeignKey{Name: name, ForeignDataset: target, ForeignURN: u}
			byName[name] = fk
			order = append(order, name)
		}
		fk.SourceFields = append(fk.SourceFields, column)
		fk.ForeignFields = append(fk.ForeignFields, refColumn)
	}

	fks := make([]model.ForeignKey, 0, len(order))
	for _, name := range order {
		fks = append(fks, *byName[name])
	}
	return fks, errs
}

func (x *Normalizer) user(r *model.UserRecord) (model.Entity, []error) {
	name := r.Row.String("NAME")
	if name == "" {
		return rejected(r, "username is missing")
	}

	u, err := x.urn.User(name)
	if err != nil {
		return rejected(r, "failed to build user URN", goerr.V("error", err.Error()))
	}

	return &model.UserMetadata{
		URN:         u,
		Username:    name,
		Email:       r.Row.String("EMAIL"),
		DisplayName: r.Row.String("DISPLAY_NAME"),
		Active:      !r.Row.Bool("DISABLED"),
		Roles:       uniqueSorted(r.Roles),
		CreatedAt:   r.Row.Time("CREATED_ON"),
		LastLoginAt: r.Row.Time("LAST_SUCCESS_LOGIN"),
		Comment:     r.Row.String("COMMENT"),
	}, nil
}

func (x *Normalizer) role(r *model.RoleRecord) (model.Entity, []error) {
	name := r.Row.String("NAME")
	if name == "" {
		return rejected(r, "role name is missing")
	}

	u, err := x.urn.Group(name)
	if err != nil {
		return rejected(r, "failed to build group URN", goerr.V("error", err.Error()))
	}

	var grants []model.Grant
	for _, g := range r.Grants {
		if g.String("PRIVILEGE") == "" {
			continue
		}
		grants = append(grants, model.Grant{
			Privilege:  g.String("PRIVILEGE"),
			ObjectType: g.String("GRANTED_ON"),
			ObjectName: g.String("NAME"),
		})
	}

	return &model.GroupMetadata{
		URN:         u,
		GroupName:   name,
		DisplayName: name,
		Description: r.Row.String("COMMENT"),
		Active:      true,
		Members:     uniqueSorted(r.Members),
		Owner:       r.Row.String("OWNER"),
		CreatedAt:   r.Row.Time("CREATED_ON"),
		Grants:      grants,
	}, nil
}
