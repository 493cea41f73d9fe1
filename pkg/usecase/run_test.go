package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/infra"
	"github.com/secmon-lab/catalogsync/pkg/infra/datahub"
	"github.com/secmon-lab/catalogsync/pkg/infra/pubsub"
	"github.com/secmon-lab/catalogsync/pkg/infra/sqlwh"
	"github.com/secmon-lab/catalogsync/pkg/usecase"
	"github.com/secmon-lab/catalogsync/pkg/utils"
)

func noBackoff() usecase.Backoff { return usecase.NoBackoff() }

func userRows(n int) []model.Row {
	rows := make([]model.Row, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, model.Row{"NAME": fmt.Sprintf("user%03d", i)})
	}
	return rows
}

func usersWarehouse(users []model.Row, roles ...string) *sqlwh.Mock {
	return &sqlwh.Mock{
		MockUsers: func(ctx context.Context) ([]model.Row, error) {
			return users, nil
		},
		MockRoles: func(ctx context.Context) ([]model.Row, error) {
			var rows []model.Row
			for _, r := range roles {
				rows = append(rows, model.Row{"NAME": r})
			}
			return rows, nil
		},
	}
}

func accessControlConfig() *model.RunConfig {
	cfg := model.NewRunConfig("snowflake")
	cfg.Structural = false
	return cfg
}

func newUseCase(wh *sqlwh.Mock, catalog *datahub.Mock, options ...usecase.Option) *usecase.UseCase {
	clients := infra.New(infra.WithWarehouse(wh), infra.WithCatalog(catalog))
	options = append([]usecase.Option{usecase.WithBackoff(noBackoff)}, options...)
	return usecase.New(clients, options...)
}

func TestRunRetryTransient(t *testing.T) {
	var mutex sync.Mutex
	calls := 0
	catalog := &datahub.Mock{
		MockIngest: func(ctx context.Context, envelopes []*model.Envelope) error {
			mutex.Lock()
			defer mutex.Unlock()
			calls++
			if calls <= 2 {
				return goerr.Wrap(types.ErrTransientDelivery, "service unavailable", goerr.V("status", 503))
			}
			return nil
		},
	}

	uc := newUseCase(usersWarehouse(userRows(50)), catalog)
	result := gt.R1(uc.Run(context.Background(), accessControlConfig())).NoError(t)

	users := result.Kind(types.KindUser)
	gt.Equal(t, users.Attempted, 50)
	gt.Equal(t, users.Succeeded, 50)
	gt.Equal(t, users.Failed, 0)
	gt.Equal(t, users.Retries, 2)
	gt.Equal(t, users.Batches, 1)
	gt.Equal(t, calls, 3)
	gt.True(t, result.Success)
}

func TestRunRetryExhausted(t *testing.T) {
	calls := 0
	catalog := &datahub.Mock{
		MockIngest: func(ctx context.Context, envelopes []*model.Envelope) error {
			calls++
			return goerr.Wrap(types.ErrTransientDelivery, "service unavailable")
		},
	}

	cfg := accessControlConfig()
	cfg.MaxRetries = 2

	uc := newUseCase(usersWarehouse(userRows(5)), catalog)
	result := gt.R1(uc.Run(context.Background(), cfg)).NoError(t)

	gt.Equal(t, calls, cfg.MaxRetries+1)
	users := result.Kind(types.KindUser)
	gt.Equal(t, users.Failed, 5)
	gt.Equal(t, users.Succeeded, 0)
	gt.Equal(t, users.Retries, cfg.MaxRetries)
	gt.A(t, result.Failures).Length(5)
	gt.False(t, result.Success)
}

func TestRunPermanentFailureIsNotRetried(t *testing.T) {
	calls := 0
	catalog := &datahub.Mock{
		MockIngest: func(ctx context.Context, envelopes []*model.Envelope) error {
			calls++
			return goerr.Wrap(types.ErrPermanentDelivery, "bad request", goerr.V("status", 400))
		},
	}

	uc := newUseCase(usersWarehouse(userRows(3)), catalog)
	result := gt.R1(uc.Run(context.Background(), accessControlConfig())).NoError(t)

	gt.Equal(t, calls, 1)
	gt.Equal(t, result.Kind(types.KindUser).Failed, 3)
	gt.Equal(t, result.Kind(types.KindUser).Retries, 0)
}

func TestRunBatchSize(t *testing.T) {
	testCases := map[string]struct {
		users     int
		batchSize int
		batches   int
	}{
		"exact":     {users: 200, batchSize: 100, batches: 2},
		"remainder": {users: 250, batchSize: 100, batches: 3},
		"single":    {users: 1, batchSize: 100, batches: 1},
		"one each":  {users: 7, batchSize: 1, batches: 7},
		"empty":     {users: 0, batchSize: 10, batches: 0},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			var mutex sync.Mutex
			var sizes []int
			catalog := &datahub.Mock{
				MockIngest: func(ctx context.Context, envelopes []*model.Envelope) error {
					mutex.Lock()
					defer mutex.Unlock()
					sizes = append(sizes, len(envelopes))
					return nil
				},
			}

			cfg := accessControlConfig()
			cfg.BatchSize = tc.batchSize

			uc := newUseCase(usersWarehouse(userRows(tc.users)), catalog, usecase.WithIngestConcurrency(4))
			result := gt.R1(uc.Run(context.Background(), cfg)).NoError(t)

			gt.A(t, sizes).Length(tc.batches)
			for _, size := range sizes {
				gt.True(t, size <= tc.batchSize)
			}
			gt.Equal(t, result.Kind(types.KindUser).Batches, tc.batches)
			gt.Equal(t, result.Kind(types.KindUser).Succeeded, tc.users)
		})
	}
}

func TestRunWarehouseUnreachable(t *testing.T) {
	wh := &sqlwh.Mock{
		MockPing: func(ctx context.Context) error {
			return goerr.Wrap(types.ErrConnection, "connection refused")
		},
	}
	catalog := &datahub.Mock{}

	uc := newUseCase(wh, catalog)
	result, err := uc.Run(context.Background(), model.NewRunConfig("snowflake"))

	gt.Error(t, err)
	gt.True(t, errors.Is(err, types.ErrRun))
	gt.True(t, result != nil)
	gt.True(t, result.RunError != "")
	gt.False(t, result.Success)
	gt.Equal(t, catalog.OpenCount(), 0)
	gt.Equal(t, catalog.Calls(), 0)
	gt.Equal(t, wh.CloseCount(), 1)
}

func TestRunNotConfigured(t *testing.T) {
	uc := usecase.New(infra.New())
	_, err := uc.Run(context.Background(), model.NewRunConfig("snowflake"))
	gt.Error(t, err)
	gt.True(t, errors.Is(err, types.ErrRun))

	_, err = uc.Run(context.Background(), &model.RunConfig{})
	gt.Error(t, err)
	gt.True(t, errors.Is(err, types.ErrInvalidOption))
}

func TestRunFailFastPerKind(t *testing.T) {
	catalog := &datahub.Mock{
		MockIngest: func(ctx context.Context, envelopes []*model.Envelope) error {
			if envelopes[0].EntityType == "platformUser" {
				return goerr.Wrap(types.ErrPermanentDelivery, "rejected")
			}
			return nil
		},
	}

	cfg := accessControlConfig()
	cfg.BatchSize = 1
	cfg.FailFast = true

	uc := newUseCase(usersWarehouse(userRows(3), "ANALYST"), catalog)
	result, err := uc.Run(context.Background(), cfg)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, types.ErrIngestion))

	users := result.Kind(types.KindUser)
	gt.Equal(t, users.Failed, 1)
	gt.Equal(t, users.Skipped, 2)
	gt.Equal(t, users.Batches, 1)

	groups := result.Kind(types.KindGroup)
	gt.Equal(t, groups.Succeeded, 1)
	gt.Equal(t, groups.Skipped, 0)
	gt.False(t, result.Success)
}

func TestRunWithoutFailFastContinues(t *testing.T) {
	catalog := &datahub.Mock{
		MockIngest: func(ctx context.Context, envelopes []*model.Envelope) error {
			return goerr.Wrap(types.ErrPermanentDelivery, "rejected")
		},
	}

	cfg := accessControlConfig()
	cfg.BatchSize = 1

	uc := newUseCase(usersWarehouse(userRows(3)), catalog)
	result := gt.R1(uc.Run(context.Background(), cfg)).NoError(t)

	users := result.Kind(types.KindUser)
	gt.Equal(t, users.Failed, 3)
	gt.Equal(t, users.Skipped, 0)
	gt.Equal(t, users.Batches, 3)
}

func TestRunCatalogUnreachable(t *testing.T) {
	calls := 0
	catalog := &datahub.Mock{
		MockHealth: func(ctx context.Context) error {
			return goerr.Wrap(types.ErrConnection, "connection refused")
		},
		MockIngest: func(ctx context.Context, envelopes []*model.Envelope) error {
			calls++
			return goerr.Wrap(errors.Join(types.ErrTransientDelivery, types.ErrConnection), "connection refused")
		},
	}

	cfg := accessControlConfig()
	cfg.BatchSize = 2
	cfg.MaxRetries = 1

	uc := newUseCase(usersWarehouse(userRows(4), "ANALYST"), catalog)
	result := gt.R1(uc.Run(context.Background(), cfg)).NoError(t)

	// first batch exhausts retries, then everything else in the category is skipped
	gt.Equal(t, calls, 2)
	gt.Equal(t, result.Kind(types.KindUser).Failed, 2)
	gt.Equal(t, result.Kind(types.KindUser).Skipped, 2)
	gt.Equal(t, result.Kind(types.KindGroup).Skipped, 1)
	_, ok := result.Categories[types.CategoryAccessControl]
	gt.True(t, ok)
	gt.False(t, result.Success)
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	catalog := &datahub.Mock{}
	wh := usersWarehouse(userRows(3))
	uc := newUseCase(wh, catalog)
	result, err := uc.Run(ctx, accessControlConfig())

	gt.Error(t, err)
	gt.True(t, errors.Is(err, context.Canceled))
	gt.True(t, result.Cancelled)
	gt.False(t, result.Success)
	gt.Equal(t, wh.CloseCount(), 1)
	gt.Equal(t, catalog.CloseCount(), catalog.OpenCount())
}

// upsertStore is an in-memory catalog keeping the latest aspect of each entity.
type upsertStore struct {
	mutex   sync.Mutex
	aspects map[string]string
}

func (x *upsertStore) ingest(ctx context.Context, envelopes []*model.Envelope) error {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	for _, e := range envelopes {
		x.aspects[string(e.EntityURN)+"/"+e.AspectName] = e.Aspect.Value
	}
	return nil
}

func (x *upsertStore) snapshot() map[string]string {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	out := make(map[string]string, len(x.aspects))
	for k, v := range x.aspects {
		out[k] = v
	}
	return out
}

func structuralWarehouse() *sqlwh.Mock {
	return &sqlwh.Mock{
		MockDatabases: func(ctx context.Context) ([]model.Row, error) {
			return []model.Row{{"NAME": "SALES"}}, nil
		},
		MockSchemas: func(ctx context.Context, database string) ([]model.Row, error) {
			return []model.Row{{"NAME": "PUBLIC"}}, nil
		},
		MockTables: func(ctx context.Context, database, schema string) ([]model.Row, error) {
			return []model.Row{
				{"TABLE_NAME": "ORDERS", "TABLE_TYPE": "BASE TABLE", "ROW_COUNT": int64(10)},
				{"TABLE_NAME": "CUSTOMERS", "TABLE_TYPE": "BASE TABLE"},
			}, nil
		},
		MockColumns: func(ctx context.Context, database, schema string) ([]model.Row, error) {
			return []model.Row{
				{"TABLE_NAME": "ORDERS", "COLUMN_NAME": "ID", "DATA_TYPE": "NUMBER", "ORDINAL_POSITION": int64(1)},
				{"TABLE_NAME": "ORDERS", "COLUMN_NAME": "CUSTOMER_ID", "DATA_TYPE": "NUMBER", "ORDINAL_POSITION": int64(2)},
				{"TABLE_NAME": "CUSTOMERS", "COLUMN_NAME": "ID", "DATA_TYPE": "NUMBER", "ORDINAL_POSITION": int64(1)},
			}, nil
		},
	}
}

func TestRunIdempotentUpsert(t *testing.T) {
	store := &upsertStore{aspects: map[string]string{}}
	catalog := &datahub.Mock{MockIngest: store.ingest}

	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	ctx := utils.CtxWithTime(context.Background(), func() time.Time { return now })

	cfg := model.NewRunConfig("snowflake")
	cfg.AccessControl = false

	uc := newUseCase(structuralWarehouse(), catalog)
	gt.R1(uc.Run(ctx, cfg)).NoError(t)
	first := store.snapshot()
	gt.True(t, len(first) > 0)

	gt.R1(uc.Run(ctx, cfg)).NoError(t)
	gt.Equal(t, store.snapshot(), first)
}

func TestRunStructural(t *testing.T) {
	store := &upsertStore{aspects: map[string]string{}}
	catalog := &datahub.Mock{MockIngest: store.ingest}

	cfg := model.NewRunConfig("snowflake")
	cfg.AccessControl = false

	uc := newUseCase(structuralWarehouse(), catalog)
	result := gt.R1(uc.Run(context.Background(), cfg)).NoError(t)

	// database and schema containers
	gt.Equal(t, result.Kind(types.KindSchema).Succeeded, 2)
	gt.Equal(t, result.Kind(types.KindDataset).Succeeded, 2)
	gt.Equal(t, result.Extracted[types.CategoryStructural], 4)
	gt.True(t, result.Success)

	found := false
	for key := range store.snapshot() {
		if key == "urn:li:dataset:(urn:li:dataPlatform:snowflake,SALES.PUBLIC.ORDERS,PROD)/schemaMetadata" {
			found = true
		}
	}
	gt.True(t, found)
}

func TestRunNotification(t *testing.T) {
	ps := pubsub.NewMock()
	clients := infra.New(
		infra.WithWarehouse(usersWarehouse(userRows(2))),
		infra.WithCatalog(&datahub.Mock{}),
		infra.WithPubSub(ps),
	)
	uc := usecase.New(clients, usecase.WithBackoff(noBackoff))
	result := gt.R1(uc.Run(context.Background(), accessControlConfig())).NoError(t)

	gt.A(t, ps.Results).Length(1)
	var notification model.RunNotification
	gt.NoError(t, json.Unmarshal(ps.Results[0].Data, &notification))
	gt.Equal(t, notification.RunID, result.RunID)
	gt.True(t, notification.Success)
	gt.Equal(t, notification.Kinds[types.KindUser].Succeeded, 2)
	gt.Equal(t, ps.Results[0].Attributes["run_id"], result.RunID.String())
	gt.Equal(t, ps.Results[0].Attributes["success"], "true")
}

func TestRunNotificationFailureDoesNotFailRun(t *testing.T) {
	ps := &pubsub.Mock{
		MockPublish: func(ctx context.Context, data []byte, attrs map[string]string) (types.PubSubMessageID, error) {
			return "", goerr.New("publish failed")
		},
	}
	clients := infra.New(
		infra.WithWarehouse(usersWarehouse(userRows(1))),
		infra.WithCatalog(&datahub.Mock{}),
		infra.WithPubSub(ps),
	)
	uc := usecase.New(clients)
	result := gt.R1(uc.Run(context.Background(), accessControlConfig())).NoError(t)
	gt.True(t, result.Success)
}
