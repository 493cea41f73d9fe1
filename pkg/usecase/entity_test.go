package usecase_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/infra"
	"github.com/secmon-lab/catalogsync/pkg/infra/datahub"
	"github.com/secmon-lab/catalogsync/pkg/usecase"
)

const aliceURN = types.URN("urn:li:platformUser:(urn:li:dataPlatform:snowflake,alice)")

func TestDeleteEntity(t *testing.T) {
	var deleted []types.URN
	catalog := &datahub.Mock{
		MockDeleteEntity: func(ctx context.Context, urn types.URN) error {
			deleted = append(deleted, urn)
			return nil
		},
	}
	uc := usecase.New(infra.New(infra.WithCatalog(catalog)))

	gt.NoError(t, uc.DeleteEntity(context.Background(), aliceURN))
	gt.A(t, deleted).Length(1)
	gt.Equal(t, deleted[0], aliceURN)
	gt.Equal(t, catalog.OpenCount(), 1)
	gt.Equal(t, catalog.CloseCount(), 1)

	t.Run("unmanaged kind is rejected without request", func(t *testing.T) {
		err := uc.DeleteEntity(context.Background(), "urn:li:corpuser:alice")
		gt.True(t, errors.Is(err, types.ErrInvalidOption))
		gt.A(t, deleted).Length(1)
	})

	t.Run("delivery error is returned", func(t *testing.T) {
		catalog := &datahub.Mock{
			MockDeleteEntity: func(ctx context.Context, urn types.URN) error {
				return goerr.Wrap(types.ErrPermanentDelivery, "not found", goerr.V("status", 404))
			},
		}
		uc := usecase.New(infra.New(infra.WithCatalog(catalog)))
		err := uc.DeleteEntity(context.Background(), aliceURN)
		gt.True(t, errors.Is(err, types.ErrPermanentDelivery))
		gt.Equal(t, catalog.CloseCount(), 1)
	})

	t.Run("catalog is not configured", func(t *testing.T) {
		err := usecase.New(infra.New()).DeleteEntity(context.Background(), aliceURN)
		gt.True(t, errors.Is(err, types.ErrInvalidOption))
	})
}

func TestGetEntity(t *testing.T) {
	catalog := &datahub.Mock{
		MockGetEntity: func(ctx context.Context, urn types.URN) (map[string]any, error) {
			if urn == aliceURN {
				return map[string]any{"urn": urn.String()}, nil
			}
			return nil, nil
		},
	}
	uc := usecase.New(infra.New(infra.WithCatalog(catalog)))

	entity := gt.R1(uc.GetEntity(context.Background(), aliceURN)).NoError(t)
	gt.Equal(t, entity["urn"], any(aliceURN.String()))

	entity = gt.R1(uc.GetEntity(context.Background(), "urn:li:platformUser:(urn:li:dataPlatform:snowflake,bob)")).NoError(t)
	gt.True(t, entity == nil)

	_, err := uc.GetEntity(context.Background(), "alice")
	gt.True(t, errors.Is(err, types.ErrInvalidOption))
}
