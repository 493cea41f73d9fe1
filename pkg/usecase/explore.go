package usecase

import (
	"context"
	"sort"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/utils"
)

// Explore lists databases, schemas or tables of the warehouse. The filter is not applied so that operators can see what it would exclude.
func (x *UseCase) Explore(ctx context.Context, req *model.ExploreRequest) (*model.ExploreResult, error) {
	warehouse := x.clients.Warehouse()
	if warehouse == nil {
		return nil, goerr.Wrap(types.ErrInvalidOption, "warehouse is not configured")
	}

	conn, err := warehouse.Connect(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect to warehouse")
	}
	defer utils.SafeClose(ctx, conn)

	level := req.Level()
	var rows []model.Row
	switch level {
	case model.ExploreDatabases:
		rows, err = conn.Databases(ctx)
	case model.ExploreSchemas:
		rows, err = conn.Schemas(ctx, req.Database)
	case model.ExploreTables:
		rows, err = conn.Tables(ctx, req.Database, req.Schema)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list catalog", goerr.V("level", level), goerr.V("database", req.Database), goerr.V("schema", req.Schema))
	}

	result := &model.ExploreResult{
		Level: level,
		Total: len(rows),
	}
	for _, row := range rows {
		result.Items = append(result.Items, exploreItem(level, row))
	}
	sort.Slice(result.Items, func(i, j int) bool { return result.Items[i].Name < result.Items[j].Name })

	limit := req.Limit
	if limit <= 0 {
		limit = model.DefaultExploreLimit
	}
	if len(result.Items) > limit {
		result.Items = result.Items[:limit]
	}

	return result, nil
}

func exploreItem(level model.ExploreLevel, row model.Row) *model.ExploreItem {
	if level != model.ExploreTables {
		return &model.ExploreItem{
			Name:      row.String("NAME"),
			Comment:   row.String("COMMENT"),
			CreatedAt: row.Time("CREATED"),
		}
	}

	return &model.ExploreItem{
		Name:      row.String("TABLE_NAME"),
		Type:      row.String("TABLE_TYPE"),
		Comment:   row.String("COMMENT"),
		RowCount:  row.Int64("ROW_COUNT"),
		Bytes:     row.Int64("BYTES"),
		CreatedAt: row.Time("CREATED"),
	}
}
