package usecase

import (
	"context"

	"github.com/secmon-lab/catalogsync/pkg/domain/interfaces"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
)

type Mock struct {
	MockRun              func(ctx context.Context, cfg *model.RunConfig) (*model.IngestionResult, error)
	MockRunConfig        func() *model.RunConfig
	MockAuthorize        func(ctx context.Context, input *model.AuthPolicyInput) error
	MockGetOrCreateState func(ctx context.Context, msgType types.MsgType, id string) (*model.State, bool, error)
	MockUpdateState      func(ctx context.Context, msgType types.MsgType, id string, state types.MsgState) error
}

var _ interfaces.UseCase = &Mock{}

func (x *Mock) Run(ctx context.Context, cfg *model.RunConfig) (*model.IngestionResult, error) {
	if x.MockRun != nil {
		return x.MockRun(ctx, cfg)
	}
	return &model.IngestionResult{Success: true}, nil
}

func (x *Mock) RunConfig() *model.RunConfig {
	if x.MockRunConfig != nil {
		return x.MockRunConfig()
	}
	return nil
}

func (x *Mock) Authorize(ctx context.Context, input *model.AuthPolicyInput) error {
	if x.MockAuthorize != nil {
		return x.MockAuthorize(ctx, input)
	}
	return nil
}

func (x *Mock) GetOrCreateState(ctx context.Context, msgType types.MsgType, id string) (*model.State, bool, error) {
	if x.MockGetOrCreateState == nil {
		return &model.State{}, true, nil
	}
	return x.MockGetOrCreateState(ctx, msgType, id)
}

func (x *Mock) UpdateState(ctx context.Context, msgType types.MsgType, id string, state types.MsgState) error {
	if x.MockUpdateState == nil {
		return nil
	}
	return x.MockUpdateState(ctx, msgType, id, state)
}
