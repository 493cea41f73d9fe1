package datahub

import (
	"context"
	"sync"

	"github.com/secmon-lab/catalogsync/pkg/domain/interfaces"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
)

// Mock is a catalog and its session. Unset functions succeed without doing anything.
type Mock struct {
	MockOpen         func(ctx context.Context) (interfaces.CatalogSession, error)
	MockHealth       func(ctx context.Context) error
	MockConfig       func(ctx context.Context) (map[string]any, error)
	MockIngest       func(ctx context.Context, envelopes []*model.Envelope) error
	MockGetEntity    func(ctx context.Context, urn types.URN) (map[string]any, error)
	MockDeleteEntity func(ctx context.Context, urn types.URN) error

	mutex      sync.Mutex
	openCount  int
	closeCount int
	calls      int
}

func (x *Mock) Open(ctx context.Context) (interfaces.CatalogSession, error) {
	x.mutex.Lock()
	x.openCount++
	x.mutex.Unlock()

	if x.MockOpen != nil {
		return x.MockOpen(ctx)
	}
	return x, nil
}

func (x *Mock) called() {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	x.calls++
}

func (x *Mock) Health(ctx context.Context) error {
	x.called()
	if x.MockHealth != nil {
		return x.MockHealth(ctx)
	}
	return nil
}

func (x *Mock) Config(ctx context.Context) (map[string]any, error) {
	x.called()
	if x.MockConfig != nil {
		return x.MockConfig(ctx)
	}
	return map[string]any{}, nil
}

func (x *Mock) Ingest(ctx context.Context, envelopes []*model.Envelope) error {
	x.called()
	if x.MockIngest != nil {
		return x.MockIngest(ctx, envelopes)
	}
	return nil
}

func (x *Mock) GetEntity(ctx context.Context, urn types.URN) (map[string]any, error) {
	x.called()
	if x.MockGetEntity != nil {
		return x.MockGetEntity(ctx, urn)
	}
	return nil, nil
}

func (x *Mock) DeleteEntity(ctx context.Context, urn types.URN) error {
	x.called()
	if x.MockDeleteEntity != nil {
		return x.MockDeleteEntity(ctx, urn)
	}
	return nil
}

func (x *Mock) Close() error {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	x.closeCount++
	return nil
}

// Calls returns number of requests to the catalog service, excluding Open and Close.
func (x *Mock) Calls() int {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	return x.calls
}

func (x *Mock) OpenCount() int {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	return x.openCount
}

func (x *Mock) CloseCount() int {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	return x.closeCount
}

var (
	_ interfaces.Catalog        = &Mock{}
	_ interfaces.CatalogSession = &Mock{}
)
