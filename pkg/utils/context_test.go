package utils_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/catalogsync/pkg/utils"
)

func TestCtxRunID(t *testing.T) {
	ctx := context.Background()

	id1, ctx := utils.CtxRunID(ctx)
	id2, _ := utils.CtxRunID(ctx)
	gt.Equal(t, id1, id2)

	id3, _ := utils.CtxRunID(context.Background())
	gt.True(t, id1 != id3)
}

func TestCtxLogger(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	ctx := utils.CtxWithLogger(context.Background(), logger)
	gt.Equal(t, utils.CtxLogger(ctx), logger)
	gt.True(t, utils.CtxLogger(context.Background()) != nil)
}
