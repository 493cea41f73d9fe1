package usecase_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/infra"
	"github.com/secmon-lab/catalogsync/pkg/infra/datahub"
	"github.com/secmon-lab/catalogsync/pkg/infra/sqlwh"
	"github.com/secmon-lab/catalogsync/pkg/usecase"
)

func findItem(report *model.CheckReport, name string) *model.CheckItem {
	for _, item := range report.Items {
		if item.Name == name {
			return item
		}
	}
	return nil
}

func TestCheck(t *testing.T) {
	wh := &sqlwh.Mock{
		MockDatabases: func(ctx context.Context) ([]model.Row, error) {
			return []model.Row{{"NAME": "SALES"}}, nil
		},
		MockRoleGrants: func(ctx context.Context) ([]model.Row, error) {
			return nil, goerr.Wrap(types.ErrUnsupported, "not available")
		},
	}
	catalog := &datahub.Mock{
		MockConfig: func(ctx context.Context) (map[string]any, error) {
			return map[string]any{"versions": map[string]any{"linkedin/datahub": "v0.13"}}, nil
		},
	}
	uc := usecase.New(infra.New(infra.WithWarehouse(wh), infra.WithCatalog(catalog)))

	report := uc.Check(context.Background())
	gt.True(t, report.OK())
	gt.A(t, report.Items).Length(6)

	gt.True(t, findItem(report, "warehouse").OK)
	gt.Equal(t, findItem(report, "permission:databases").Detail["rows"], any(1))
	gt.True(t, findItem(report, "permission:role_grants").Skipped)
	catalogItem := findItem(report, "catalog")
	gt.True(t, catalogItem.OK)
	_, ok := catalogItem.Detail["versions"]
	gt.True(t, ok)
}

func TestCheckFailures(t *testing.T) {
	wh := &sqlwh.Mock{
		MockPing: func(ctx context.Context) error {
			return goerr.Wrap(types.ErrConnection, "connection refused")
		},
	}
	catalog := &datahub.Mock{
		MockHealth: func(ctx context.Context) error {
			return goerr.Wrap(types.ErrConnection, "connection refused")
		},
	}
	uc := usecase.New(infra.New(infra.WithWarehouse(wh), infra.WithCatalog(catalog)))

	report := uc.Check(context.Background())
	gt.False(t, report.OK())
	gt.A(t, report.Items).Length(2)
	gt.False(t, findItem(report, "warehouse").OK)
	gt.False(t, findItem(report, "catalog").OK)
}
