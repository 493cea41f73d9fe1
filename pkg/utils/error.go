package utils

import (
	"context"
	"errors"
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
)

// errorKinds are sentinel errors reported as "error.kind" tag of Sentry event.
var errorKinds = []error{
	types.ErrConnection,
	types.ErrExtraction,
	types.ErrTransform,
	types.ErrIngestion,
	types.ErrTransientDelivery,
	types.ErrPermanentDelivery,
	types.ErrInvalidOption,
	types.ErrInvalidRequest,
}

// HandleError logs err and sends it to Sentry. Cancellation is only logged.
func HandleError(ctx context.Context, msg string, err error) {
	if errors.Is(err, context.Canceled) {
		CtxLogger(ctx).Warn(msg, ErrLog(err))
		return
	}

	hub := sentry.CurrentHub().Clone()
	hub.ConfigureScope(func(scope *sentry.Scope) {
		for k, v := range goerr.Values(err) {
			scope.SetExtra(fmt.Sprintf("%v", k), v)
		}
		if runID, ok := ctx.Value(ctxRunIDKey{}).(types.RunID); ok {
			scope.SetTag("run_id", runID.String())
		}
		for _, kind := range errorKinds {
			if errors.Is(err, kind) {
				scope.SetTag("error.kind", kind.Error())
				break
			}
		}
	})
	evID := hub.CaptureException(err)

	CtxLogger(ctx).Error(msg, ErrLog(err), "sentry.EventID", evID)
}
