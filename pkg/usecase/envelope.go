package usecase

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/domain/urn"
)

const aspectContentType = "application/json"

// envelopeBuilder converts an entity into upsert envelopes of its aspects.
type envelopeBuilder struct {
	urn   *urn.Builder
	actor string
	now   func() time.Time
}

type aspect struct {
	name  string
	value any
}

func (x *envelopeBuilder) Build(entity model.Entity) ([]*model.Envelope, error) {
	var aspects []aspect
	switch e := entity.(type) {
	case *model.DatasetMetadata:
		aspects = x.datasetAspects(e)
	case *model.SchemaMetadata:
		aspects = x.containerAspects(e)
	case *model.UserMetadata:
		aspects = []aspect{{name: "platformUserInfo", value: x.userInfo(e)}}
	case *model.GroupMetadata:
		aspects = []aspect{{name: "platformUserGroupInfo", value: x.groupInfo(e)}}
	default:
		return nil, goerr.Wrap(types.ErrPermanentDelivery, "unknown entity type", goerr.V("entity", entity))
	}

	header := &model.AuditHeader{
		Time:  x.now().UnixMilli(),
		Actor: x.actor,
	}

	envelopes := make([]*model.Envelope, 0, len(aspects))
	for _, a := range aspects {
		raw, err := json.Marshal(a.value)
		if err != nil {
			return nil, goerr.Wrap(types.ErrPermanentDelivery, "failed to encode aspect",
				goerr.V("urn", entity.EntityURN()),
				goerr.V("aspect", a.name),
				goerr.V("error", err.Error()),
			)
		}

		envelopes = append(envelopes, &model.Envelope{
			AuditHeader: header,
			EntityType:  urn.EntityType(entity.Kind()),
			EntityURN:   entity.EntityURN(),
			ChangeType:  model.ChangeTypeUpsert,
			AspectName:  a.name,
			Aspect: model.AspectPayload{
				Value:       string(raw),
				ContentType: aspectContentType,
			},
		})
	}

	return envelopes, nil
}

type timeStamp struct {
	Time int64 `json:"time"`
}

func stamp(t *time.Time) *timeStamp {
	if t == nil {
		return nil
	}
	return &timeStamp{Time: t.UnixMilli()}
}

func isoTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

type subTypes struct {
	TypeNames []string `json:"typeNames"`
}

type containerRef struct {
	Container types.URN `json:"container"`
}

type datasetProperties struct {
	Name             string            `json:"name"`
	QualifiedName    string            `json:"qualifiedName"`
	Description      string            `json:"description,omitempty"`
	Created          *timeStamp        `json:"created,omitempty"`
	LastModified     *timeStamp        `json:"lastModified,omitempty"`
	CustomProperties map[string]string `json:"customProperties"`
}

type schemaFieldType struct {
	Type map[string]struct{} `json:"type"`
}

type schemaField struct {
	FieldPath      string          `json:"fieldPath"`
	NativeDataType string          `json:"nativeDataType"`
	Type           schemaFieldType `json:"type"`
	Description    string          `json:"description,omitempty"`
	Nullable       bool            `json:"nullable"`
	Recursive      bool            `json:"recursive"`
	IsPartOfKey    bool            `json:"isPartOfKey"`
	DefaultValue   *string         `json:"defaultValue,omitempty"`
}

type schemaForeignKey struct {
	Name           string      `json:"name"`
	ForeignFields  []types.URN `json:"foreignFields"`
	SourceFields   []types.URN `json:"sourceFields"`
	ForeignDataset types.URN   `json:"foreignDataset"`
}

type schemaMetadata struct {
	SchemaName     string                       `json:"schemaName"`
	Platform       types.URN                    `json:"platform"`
	Version        int                          `json:"version"`
	Hash           string                       `json:"hash"`
	PlatformSchema map[string]map[string]string `json:"platformSchema"`
	Fields         []schemaField                `json:"fields"`
	PrimaryKeys    []string                     `json:"primaryKeys,omitempty"`
	ForeignKeys    []schemaForeignKey           `json:"foreignKeys,omitempty"`
}

func schemaFieldURN(dataset types.URN, field string) types.URN {
	return types.URN("urn:li:schemaField:(" + string(dataset) + "," + field + ")")
}

func (x *envelopeBuilder) datasetAspects(e *model.DatasetMetadata) []aspect {
	custom := map[string]string{
		"platform":   string(x.urn.Platform()),
		"database":   e.Database,
		"schema":     e.Schema,
		"table_type": string(e.TableKind),
	}
	if e.Owner != "" {
		custom["owner"] = e.Owner
	}
	if e.RowCount != nil {
		custom["row_count"] = strconv.FormatInt(*e.RowCount, 10)
	}
	if e.SizeBytes != nil {
		custom["size_bytes"] = strconv.FormatInt(*e.SizeBytes, 10)
	}

	fields := make([]schemaField, 0, len(e.Fields))
	for _, f := range e.Fields {
		fields = append(fields, schemaField{
			FieldPath:      f.Name,
			NativeDataType: f.NativeType,
			Type: schemaFieldType{
				Type: map[string]struct{}{"com.linkedin.schema." + string(f.Type): {}},
			},
			Description:  f.Description,
			Nullable:     f.Nullable,
			IsPartOfKey:  f.IsPrimaryKey,
			DefaultValue: f.DefaultValue,
		})
	}

	var fks []schemaForeignKey
	for _, fk := range e.ForeignKeys {
		sfk := schemaForeignKey{Name: fk.Name, ForeignDataset: fk.ForeignURN}
		for _, f := range fk.SourceFields {
			sfk.SourceFields = append(sfk.SourceFields, schemaFieldURN(e.URN, f))
		}
		for _, f := range fk.ForeignFields {
			sfk.ForeignFields = append(sfk.ForeignFields, schemaFieldURN(fk.ForeignURN, f))
		}
		fks = append(fks, sfk)
	}

	subType := "Table"
	if e.TableKind == types.TableKindView {
		subType = "View"
	}

	return []aspect{
		{name: "datasetProperties", value: &datasetProperties{
			Name:             e.Name,
			QualifiedName:    e.QualifiedName,
			Description:      e.Description,
			Created:          stamp(e.CreatedAt),
			LastModified:     stamp(e.ModifiedAt),
			CustomProperties: custom,
		}},
		{name: "schemaMetadata", value: &schemaMetadata{
			SchemaName: e.QualifiedName,
			Platform:   x.urn.PlatformURN(),
			PlatformSchema: map[string]map[string]string{
				"com.linkedin.schema.MySqlDDL": {"tableSchema": ""},
			},
			Fields:      fields,
			PrimaryKeys: e.PrimaryKeys,
			ForeignKeys: fks,
		}},
		{name: "subTypes", value: &subTypes{TypeNames: []string{subType}}},
		{name: "container", value: &containerRef{Container: e.ContainerURN}},
	}
}

type containerProperties struct {
	Name             string            `json:"name"`
	QualifiedName    string            `json:"qualifiedName"`
	Description      string            `json:"description,omitempty"`
	Created          *timeStamp        `json:"created,omitempty"`
	CustomProperties map[string]string `json:"customProperties"`
}

type dataPlatformInstance struct {
	Platform types.URN `json:"platform"`
}

func (x *envelopeBuilder) containerAspects(e *model.SchemaMetadata) []aspect {
	custom := map[string]string{
		"platform": string(x.urn.Platform()),
		"database": e.Database,
	}
	name, subType := e.Database, "Database"
	if !e.IsDatabase() {
		custom["schema"] = e.Schema
		name, subType = e.Schema, "Schema"
	}
	if e.Owner != "" {
		custom["owner"] = e.Owner
	}

	aspects := []aspect{
		{name: "containerProperties", value: &containerProperties{
			Name:             name,
			QualifiedName:    e.QualifiedName,
			Description:      e.Description,
			Created:          stamp(e.CreatedAt),
			CustomProperties: custom,
		}},
		{name: "subTypes", value: &subTypes{TypeNames: []string{subType}}},
		{name: "dataPlatformInstance", value: &dataPlatformInstance{Platform: x.urn.PlatformURN()}},
	}
	if e.ParentURN != "" {
		aspects = append(aspects, aspect{name: "container", value: &containerRef{Container: e.ParentURN}})
	}
	return aspects
}

type platformUserInfo struct {
	Platform         types.Platform    `json:"platform"`
	Username         string            `json:"username"`
	Email            string            `json:"email,omitempty"`
	DisplayName      string            `json:"displayName,omitempty"`
	Active           bool              `json:"active"`
	Roles            []string          `json:"roles"`
	CreatedAt        *string           `json:"createdAt"`
	LastLogin        *string           `json:"lastLogin"`
	CustomProperties map[string]string `json:"customProperties"`
}

func (x *envelopeBuilder) userInfo(e *model.UserMetadata) *platformUserInfo {
	custom := map[string]string{}
	if e.Comment != "" {
		custom["comment"] = e.Comment
	}
	roles := e.Roles
	if roles == nil {
		roles = []string{}
	}

	return &platformUserInfo{
		Platform:         x.urn.Platform(),
		Username:         e.Username,
		Email:            e.Email,
		DisplayName:      e.DisplayName,
		Active:           e.Active,
		Roles:            roles,
		CreatedAt:        isoTime(e.CreatedAt),
		LastLogin:        isoTime(e.LastLoginAt),
		CustomProperties: custom,
	}
}

type platformUserGroupInfo struct {
	Platform         types.Platform    `json:"platform"`
	GroupName        string            `json:"groupName"`
	DisplayName      string            `json:"displayName"`
	Description      string            `json:"description,omitempty"`
	Active           bool              `json:"active"`
	Members          []string          `json:"members"`
	Owner            string            `json:"owner,omitempty"`
	CreatedAt        *string           `json:"createdAt"`
	Grants           []model.Grant     `json:"grants,omitempty"`
	CustomProperties map[string]string `json:"customProperties"`
}

func (x *envelopeBuilder) groupInfo(e *model.GroupMetadata) *platformUserGroupInfo {
	members := e.Members
	if members == nil {
		members = []string{}
	}

	return &platformUserGroupInfo{
		Platform:         x.urn.Platform(),
		GroupName:        e.GroupName,
		DisplayName:      e.DisplayName,
		Description:      e.Description,
		Active:           e.Active,
		Members:          members,
		Owner:            e.Owner,
		CreatedAt:        isoTime(e.CreatedAt),
		Grants:           e.Grants,
		CustomProperties: map[string]string{},
	}
}
