package firestore

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/interfaces"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
)

// Memory is an in-process state store with the same semantics as Client. It is used when Firestore is not configured and in tests.
type Memory struct {
	states map[string]model.State
	mutex  sync.Mutex
}

func NewMemory() *Memory {
	return &Memory{states: map[string]model.State{}}
}

func memoryKey(msgType types.MsgType, id string) string {
	return string(msgType) + "/" + id
}

func (x *Memory) GetOrCreateState(ctx context.Context, msgType types.MsgType, input *model.State) (*model.State, bool, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	key := memoryKey(msgType, input.ID)
	var prev *model.State
	if existed, ok := x.states[key]; ok {
		if !existed.CanTakeOver(input.CreatedAt) {
			return &existed, false, nil
		}
		prev = &existed
	}

	next := input.TakeOver(prev)
	x.states[key] = *next
	return next, true, nil
}

func (x *Memory) GetState(ctx context.Context, msgType types.MsgType, id string) (*model.State, error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	state, ok := x.states[memoryKey(msgType, id)]
	if !ok {
		return nil, goerr.Wrap(types.ErrStateNotFound, "state not found", goerr.V("id", id))
	}
	return &state, nil
}

func (x *Memory) UpdateState(ctx context.Context, msgType types.MsgType, id string, state types.MsgState, now time.Time) error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	key := memoryKey(msgType, id)
	current := x.states[key]
	current.ID = id
	current.State = state
	current.UpdatedAt = now
	x.states[key] = current
	return nil
}

var _ interfaces.Database = &Memory{}
