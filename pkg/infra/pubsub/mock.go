package pubsub

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/secmon-lab/catalogsync/pkg/domain/interfaces"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
)

// Mock records published messages. If MockPublish is set, it is called instead.
type Mock struct {
	MockPublish func(ctx context.Context, data []byte, attrs map[string]string) (types.PubSubMessageID, error)

	Results []*MockResult
	mutex   sync.Mutex
}

type MockResult struct {
	ID         types.PubSubMessageID
	Data       []byte
	Attributes map[string]string
}

func NewMock() *Mock {
	return &Mock{}
}

func (x *Mock) Publish(ctx context.Context, data []byte, attrs map[string]string) (types.PubSubMessageID, error) {
	if x.MockPublish != nil {
		return x.MockPublish(ctx, data, attrs)
	}

	x.mutex.Lock()
	defer x.mutex.Unlock()
	result := &MockResult{
		ID:         types.PubSubMessageID(uuid.NewString()),
		Data:       data,
		Attributes: attrs,
	}
	x.Results = append(x.Results, result)
	return result.ID, nil
}

var _ interfaces.PubSub = &Mock{}
