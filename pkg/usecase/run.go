package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/interfaces"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/domain/urn"
	"github.com/secmon-lab/catalogsync/pkg/utils"
)

// runContext is created once per run and is read-only after creation.
type runContext struct {
	id         types.RunID
	cfg        *model.RunConfig
	logger     *slog.Logger
	urn        *urn.Builder
	normalizer *Normalizer
	envelopes  *envelopeBuilder
}

func newRunContext(ctx context.Context, cfg *model.RunConfig) (context.Context, *runContext, error) {
	builder, err := urn.New(cfg.Platform, cfg.Env)
	if err != nil {
		return ctx, nil, err
	}

	runID, ctx := utils.CtxRunID(ctx)
	logger := utils.CtxLogger(ctx).With("run_id", runID, "platform", cfg.Platform)
	ctx = utils.CtxWithLogger(ctx, logger)

	return ctx, &runContext{
		id:         runID,
		cfg:        cfg,
		logger:     logger,
		urn:        builder,
		normalizer: NewNormalizer(builder, nil),
		envelopes: &envelopeBuilder{
			urn:   builder,
			actor: cfg.Actor,
			now:   func() time.Time { return utils.CtxTime(ctx) },
		},
	}, nil
}

// Run extracts catalog metadata from the warehouse and upserts it to the catalog service. The result is returned even if the run fails. The returned error is not nil only if the run is aborted, cancelled or stopped by fail-fast.
func (x *UseCase) Run(ctx context.Context, cfg *model.RunConfig) (*model.IngestionResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, rc, err := newRunContext(ctx, cfg)
	if err != nil {
		return nil, err
	}
	result := model.NewIngestionResult(rc.id, cfg.Platform, utils.CtxTime(ctx))
	rc.logger.Info("run started", "config", cfg)

	runErr := x.run(ctx, rc, result)
	if runErr != nil {
		result.SetRunError(runErr)
	}
	if ctx.Err() != nil {
		result.MarkCancelled()
	}
	result.Finish(utils.CtxTime(ctx))

	x.report(ctx, result)

	switch {
	case runErr != nil:
		return result, goerr.Wrap(types.ErrRun, "run is aborted", goerr.V("run_id", rc.id), goerr.V("error", runErr.Error()))
	case result.Cancelled:
		cause := ctx.Err()
		if cause == nil {
			cause = context.Canceled
		}
		return result, goerr.Wrap(cause, "run is cancelled", goerr.V("run_id", rc.id))
	case len(result.FailFast) > 0:
		return result, goerr.Wrap(types.ErrIngestion, "run is stopped by fail-fast", goerr.V("run_id", rc.id), goerr.V("kinds", result.FailFast))
	}
	return result, nil
}

// run returns an error only if nothing could be delivered. Other failures are recorded in result.
func (x *UseCase) run(ctx context.Context, rc *runContext, result *model.IngestionResult) error {
	warehouse := x.clients.Warehouse()
	if warehouse == nil {
		return goerr.Wrap(types.ErrInvalidOption, "warehouse is not configured")
	}
	catalog := x.clients.Catalog()
	if catalog == nil {
		return goerr.Wrap(types.ErrInvalidOption, "catalog is not configured")
	}

	conn, err := warehouse.Connect(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to connect to warehouse")
	}
	defer utils.SafeClose(ctx, conn)

	if err := conn.Ping(ctx); err != nil {
		return goerr.Wrap(err, "warehouse is not reachable")
	}

	session, err := catalog.Open(ctx)
	if err != nil {
		return goerr.Wrap(err, "failed to open catalog session")
	}
	defer utils.SafeClose(ctx, session)

	if err := session.Health(ctx); err != nil {
		rc.logger.Warn("catalog service is not healthy, continue anyway", utils.ErrLog(err))
	}

	for _, category := range rc.cfg.Categories() {
		if ctx.Err() != nil {
			break
		}

		catResult := model.NewIngestionResult(rc.id, rc.cfg.Platform, utils.CtxTime(ctx))
		x.runCategory(ctx, rc, conn, session, category, catResult)
		result.Merge(catResult)
	}

	return nil
}

func (x *UseCase) runCategory(ctx context.Context, rc *runContext, conn interfaces.WarehouseConn, session interfaces.CatalogSession, category types.Category, result *model.IngestionResult) {
	logger := rc.logger.With("category", category)
	ctx = utils.CtxWithLogger(ctx, logger)
	logger.Info("extracting metadata")

	byKind := map[types.EntityKind][]model.Entity{}
	seen := map[types.URN]bool{}
	var extractErr *multierror.Error
	var fatal error
	count := 0

	for rec, err := range Extract(ctx, conn, rc.cfg.Filter, category) {
		if err != nil {
			if isFatal(err) {
				fatal = err
				break
			}
			extractErr = multierror.Append(extractErr, err)
			result.RecordExtractionError(err)
			continue
		}

		count++
		entity, errs := rc.normalizer.Normalize(rec)
		for _, e := range errs {
			logger.Warn("record is dropped", "record", rec.Name(), utils.ErrLog(e))
			result.RecordDropped(rec.Name(), e)
		}
		if entity == nil {
			continue
		}
		if seen[entity.EntityURN()] {
			result.RecordDropped(rec.Name(), goerr.Wrap(types.ErrTransform, "duplicated entity", goerr.V("urn", entity.EntityURN())))
			continue
		}
		seen[entity.EntityURN()] = true
		byKind[entity.Kind()] = append(byKind[entity.Kind()], entity)
	}
	result.RecordExtracted(category, count)

	if err := extractErr.ErrorOrNil(); err != nil {
		logger.Warn("some metadata could not be extracted", "errors", len(extractErr.Errors), utils.ErrLog(err))
	}

	if fatal != nil {
		logger.Error("extraction is aborted", utils.ErrLog(fatal))
		for _, kind := range category.Kinds() {
			result.RecordSkipped(kind, byKind[kind], "extraction aborted")
		}
		if !errors.Is(fatal, context.Canceled) && !errors.Is(fatal, context.DeadlineExceeded) {
			result.RecordCategoryError(category, fatal)
		} else {
			result.MarkCancelled()
		}
		return
	}

	ing := &ingester{
		session:     session,
		envelopes:   rc.envelopes,
		backoff:     x.backoff,
		batchSize:   rc.cfg.BatchSize,
		maxRetries:  rc.cfg.MaxRetries,
		failFast:    rc.cfg.FailFast,
		concurrency: x.ingestConcurrency,
		result:      result,
	}
	if err := ing.ingest(ctx, category, byKind); err != nil {
		if errors.Is(err, types.ErrConnection) {
			logger.Error("catalog service is not reachable, category is aborted", utils.ErrLog(err))
			result.RecordCategoryError(category, err)
		} else {
			result.MarkCancelled()
		}
	}
}

// report writes the run log and publishes the notification. Failures of them do not change the result.
func (x *UseCase) report(ctx context.Context, result *model.IngestionResult) {
	ctx = context.WithoutCancel(ctx)
	logger := utils.CtxLogger(ctx)

	if err := x.writeRunLog(ctx, result); err != nil {
		utils.HandleError(ctx, "failed to write run log", err)
	}
	if err := x.notify(ctx, result); err != nil {
		utils.HandleError(ctx, "failed to publish run notification", err)
	}

	attrs := []any{"summary", result.Summary(), "success", result.Success}
	if result.Success {
		logger.Info("run finished", attrs...)
	} else {
		logger.Warn("run finished with failures", append(attrs, "failures", len(result.Failures), "run_error", result.RunError)...)
	}
}
