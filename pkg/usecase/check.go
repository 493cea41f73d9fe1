package usecase

import (
	"context"
	"errors"

	"github.com/secmon-lab/catalogsync/pkg/domain/interfaces"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/utils"
)

// Check tests connectivity of the warehouse and the catalog service, and probes permissions of catalog queries. Failures are reported as items, not returned.
func (x *UseCase) Check(ctx context.Context) *model.CheckReport {
	report := &model.CheckReport{}

	x.checkWarehouse(ctx, report)
	x.checkCatalog(ctx, report)

	return report
}

func failedItem(name string, err error) *model.CheckItem {
	return &model.CheckItem{Name: name, Error: err.Error()}
}

func (x *UseCase) checkWarehouse(ctx context.Context, report *model.CheckReport) {
	warehouse := x.clients.Warehouse()
	if warehouse == nil {
		report.Add(&model.CheckItem{Name: "warehouse", Error: "warehouse is not configured"})
		return
	}

	conn, err := warehouse.Connect(ctx)
	if err != nil {
		report.Add(failedItem("warehouse", err))
		return
	}
	defer utils.SafeClose(ctx, conn)

	if err := conn.Ping(ctx); err != nil {
		report.Add(failedItem("warehouse", err))
		return
	}
	report.Add(&model.CheckItem{Name: "warehouse", OK: true})

	probes := []struct {
		name  string
		query func(ctx context.Context) ([]model.Row, error)
	}{
		{"databases", conn.Databases},
		{"users", conn.Users},
		{"roles", conn.Roles},
		{"role_grants", conn.RoleGrants},
	}

	for _, probe := range probes {
		report.Add(runProbe(ctx, "permission:"+probe.name, probe.query))
	}
}

func runProbe(ctx context.Context, name string, query func(ctx context.Context) ([]model.Row, error)) *model.CheckItem {
	rows, err := query(ctx)
	switch {
	case errors.Is(err, types.ErrUnsupported):
		return &model.CheckItem{Name: name, Skipped: true, Error: err.Error()}
	case err != nil:
		return failedItem(name, err)
	}

	return &model.CheckItem{
		Name:   name,
		OK:     true,
		Detail: map[string]any{"rows": len(rows)},
	}
}

func (x *UseCase) checkCatalog(ctx context.Context, report *model.CheckReport) {
	catalog := x.clients.Catalog()
	if catalog == nil {
		report.Add(&model.CheckItem{Name: "catalog", Error: "catalog is not configured"})
		return
	}

	session, err := catalog.Open(ctx)
	if err != nil {
		report.Add(failedItem("catalog", err))
		return
	}
	defer utils.SafeClose(ctx, session)

	report.Add(checkSession(ctx, session))
}

func checkSession(ctx context.Context, session interfaces.CatalogSession) *model.CheckItem {
	if err := session.Health(ctx); err != nil {
		return failedItem("catalog", err)
	}

	cfg, err := session.Config(ctx)
	if err != nil {
		return failedItem("catalog", err)
	}

	detail := map[string]any{}
	for _, key := range []string{"versions", "noCode", "telemetry"} {
		if v, ok := cfg[key]; ok {
			detail[key] = v
		}
	}
	return &model.CheckItem{Name: "catalog", OK: true, Detail: detail}
}
