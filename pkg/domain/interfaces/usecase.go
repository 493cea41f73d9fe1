package interfaces

import (
	"context"

	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
)

type UseCase interface {
	Run(ctx context.Context, cfg *model.RunConfig) (*model.IngestionResult, error)
	RunConfig() *model.RunConfig
	Authorize(ctx context.Context, input *model.AuthPolicyInput) error

	GetOrCreateState(ctx context.Context, msgType types.MsgType, id string) (*model.State, bool, error)
	UpdateState(ctx context.Context, msgType types.MsgType, id string, state types.MsgState) error
}
