package usecase

import (
	"context"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/utils"
)

// notify publishes the run notification if Pub/Sub is configured.
func (x *UseCase) notify(ctx context.Context, result *model.IngestionResult) error {
	if x.clients.PubSub() == nil {
		return nil
	}

	notification := model.NewRunNotification(result)
	raw, err := json.Marshal(notification)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal run notification", goerr.V("run_id", result.RunID))
	}

	msgID, err := x.clients.PubSub().Publish(ctx, raw, notification.Attributes())
	if err != nil {
		return goerr.Wrap(err, "failed to publish run notification", goerr.V("run_id", result.RunID))
	}

	utils.CtxLogger(ctx).Info("run notification is published", "message_id", msgID)
	return nil
}
