package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/interfaces"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/utils"
	"golang.org/x/sync/errgroup"
)

// batch is a set of entities delivered in one ingest request.
type batch struct {
	kind      types.EntityKind
	index     int
	entities  []model.Entity
	envelopes []*model.Envelope
	state     types.BatchState
	attempts  int
}

func (x *batch) transit(ctx context.Context, to types.BatchState) {
	utils.CtxLogger(ctx).Debug("batch state changed",
		"kind", x.kind,
		"batch", x.index,
		"from", x.state,
		"to", to,
		"attempts", x.attempts,
	)
	x.state = to
}

// ingester delivers entities of one category to the catalog service.
type ingester struct {
	session     interfaces.CatalogSession
	envelopes   *envelopeBuilder
	backoff     BackoffStrategy
	batchSize   int
	maxRetries  int
	failFast    bool
	concurrency int
	result      *model.IngestionResult
}

// chunk splits entities into batches of at most size entities. Entities that cannot be encoded are recorded as failures and excluded.
func (x *ingester) chunk(ctx context.Context, kind types.EntityKind, entities []model.Entity) []*batch {
	var batches []*batch
	var current *batch

	for _, entity := range entities {
		envelopes, err := x.envelopes.Build(entity)
		if err != nil {
			utils.CtxLogger(ctx).Warn("failed to build envelopes", "urn", entity.EntityURN(), utils.ErrLog(err))
			x.result.RecordFailure(kind, entity, err)
			continue
		}

		if current == nil || len(current.entities) >= x.batchSize {
			current = &batch{kind: kind, index: len(batches), state: types.BatchPending}
			batches = append(batches, current)
		}
		current.entities = append(current.entities, entity)
		current.envelopes = append(current.envelopes, envelopes...)
	}

	return batches
}

// send runs the state machine of the batch until SUCCEEDED or FAILED. It returns the number of retries and the final error.
func (x *ingester) send(ctx context.Context, b *batch) (int, error) {
	backoff := x.backoff()
	retries := 0

	for {
		b.attempts++
		b.transit(ctx, types.BatchSending)

		// A request in flight is not interrupted by cancellation. The HTTP client timeout bounds it.
		err := x.session.Ingest(context.WithoutCancel(ctx), b.envelopes)
		if err == nil {
			b.transit(ctx, types.BatchSucceeded)
			return retries, nil
		}

		if !errors.Is(err, types.ErrTransientDelivery) {
			b.transit(ctx, types.BatchFailed)
			return retries, goerr.Wrap(types.ErrIngestion, "batch is rejected", goerr.V("kind", b.kind), goerr.V("batch", b.index), goerr.V("error", err.Error()))
		}
		if b.attempts > x.maxRetries {
			b.transit(ctx, types.BatchFailed)
			return retries, goerr.Wrap(err, "retry budget is exhausted", goerr.V("kind", b.kind), goerr.V("batch", b.index), goerr.V("attempts", b.attempts))
		}

		b.transit(ctx, types.BatchRetrying)
		utils.CtxLogger(ctx).Info("retrying batch", "kind", b.kind, "batch", b.index, "attempt", b.attempts, utils.ErrLog(err))
		if err := sleep(ctx, backoff.Pause()); err != nil {
			b.transit(ctx, types.BatchFailed)
			return retries, goerr.Wrap(err, "batch retry is cancelled", goerr.V("kind", b.kind), goerr.V("batch", b.index))
		}
		retries++
	}
}

// stopper holds the reason to skip remaining batches.
type stopper struct {
	mutex  sync.Mutex
	reason error
}

func (x *stopper) stop(err error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	if x.reason == nil {
		x.reason = err
	}
}

func (x *stopper) stopped() error {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	return x.reason
}

// isFatal returns true if the error makes remaining batches of the category pointless.
func isFatal(err error) bool {
	return errors.Is(err, types.ErrConnection) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ingestKind delivers batches of one kind. It returns a fatal error if the category must be aborted.
func (x *ingester) ingestKind(ctx context.Context, kind types.EntityKind, entities []model.Entity) error {
	batches := x.chunk(ctx, kind, entities)
	if len(batches) == 0 {
		return nil
	}

	var fatal, failFast stopper
	var eg errgroup.Group
	eg.SetLimit(x.concurrency)

	for _, b := range batches {
		eg.Go(func() error {
			if err := fatal.stopped(); err != nil {
				x.result.RecordSkipped(kind, b.entities, err.Error())
				return nil
			}
			if err := failFast.stopped(); err != nil {
				x.result.RecordSkipped(kind, b.entities, "fail-fast: "+err.Error())
				return nil
			}
			if err := ctx.Err(); err != nil {
				fatal.stop(err)
				x.result.RecordSkipped(kind, b.entities, err.Error())
				return nil
			}

			retries, err := x.send(ctx, b)
			x.result.RecordBatch(kind, b.entities, err == nil, retries, err)
			if err == nil {
				return nil
			}

			utils.CtxLogger(ctx).Warn("batch delivery failed", "kind", kind, "batch", b.index, "entities", len(b.entities), utils.ErrLog(err))
			switch {
			case isFatal(err):
				fatal.stop(err)
			case x.failFast:
				if failFast.stopped() == nil {
					x.result.RecordFailFast(kind, err)
				}
				failFast.stop(err)
			}
			return nil
		})
	}

	_ = eg.Wait()
	return fatal.stopped()
}

// ingest delivers entities in the fixed kind order of the category. It returns a fatal error after skipping the remaining kinds.
func (x *ingester) ingest(ctx context.Context, category types.Category, byKind map[types.EntityKind][]model.Entity) error {
	var fatal error
	for _, kind := range category.Kinds() {
		entities := byKind[kind]
		if fatal != nil {
			x.result.RecordSkipped(kind, entities, fatal.Error())
			continue
		}

		utils.CtxLogger(ctx).Info("ingesting entities", "kind", kind, "count", len(entities))
		fatal = x.ingestKind(ctx, kind, entities)
	}
	return fatal
}
