package usecase

import (
	"context"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/interfaces"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/domain/urn"
	"github.com/secmon-lab/catalogsync/pkg/utils"
)

func (x *UseCase) openCatalog(ctx context.Context) (interfaces.CatalogSession, error) {
	catalog := x.clients.Catalog()
	if catalog == nil {
		return nil, goerr.Wrap(types.ErrInvalidOption, "catalog service is not configured")
	}

	session, err := catalog.Open(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open catalog session")
	}
	return session, nil
}

// GetEntity fetches the entity from the catalog service. It returns nil if the entity does not exist.
func (x *UseCase) GetEntity(ctx context.Context, target types.URN) (map[string]any, error) {
	if !strings.HasPrefix(target.String(), "urn:li:") {
		return nil, goerr.Wrap(types.ErrInvalidOption, "invalid URN", goerr.V("urn", target))
	}

	session, err := x.openCatalog(ctx)
	if err != nil {
		return nil, err
	}
	defer utils.SafeClose(ctx, session)

	return session.GetEntity(ctx, target)
}

// DeleteEntity removes the entity from the catalog service. Only entity kinds synchronized by this tool can be deleted.
func (x *UseCase) DeleteEntity(ctx context.Context, target types.URN) error {
	kind, ok := urn.KindOf(target)
	if !ok {
		return goerr.Wrap(types.ErrInvalidOption, "URN is not an entity kind managed by "+types.AppName, goerr.V("urn", target))
	}

	session, err := x.openCatalog(ctx)
	if err != nil {
		return err
	}
	defer utils.SafeClose(ctx, session)

	if err := session.DeleteEntity(ctx, target); err != nil {
		return goerr.Wrap(err, "failed to delete entity", goerr.V("urn", target), goerr.V("kind", kind))
	}

	utils.CtxLogger(ctx).Info("entity deleted", "urn", target, "kind", kind)
	return nil
}
