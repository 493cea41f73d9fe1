package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/infra/policy"
	"github.com/secmon-lab/catalogsync/pkg/utils"
)

// Authorize evaluates data.auth policy for an HTTP request. Requests are allowed if no policy is configured.
func (x *UseCase) Authorize(ctx context.Context, input *model.AuthPolicyInput) error {
	client := x.clients.Policy()
	if client == nil {
		return nil
	}

	var output model.AuthPolicyOutput

	var p policy.RegoPrint = func(file string, row int, msg string) error {
		utils.CtxLogger(ctx).Info(msg, slog.Group("rego",
			"file", file,
			"row", row,
		))
		return nil
	}

	if err := client.Query(ctx, "data.auth", input, &output, policy.WithRegoPrint(p)); err != nil {
		if !errors.Is(err, types.ErrNoPolicyResult) {
			return goerr.Wrap(err, "failed to evaluate policy", goerr.V("path", input.Path))
		}
	}

	utils.CtxLogger(ctx).Debug("authorization result",
		"method", input.Method,
		"path", input.Path,
		"output", output,
	)

	if output.Deny {
		return goerr.Wrap(types.ErrUnauthorized, "denied by policy", goerr.V("path", input.Path))
	}

	return nil
}
