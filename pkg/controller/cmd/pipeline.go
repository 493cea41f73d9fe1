package cmd

import (
	"context"
	"io"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/controller/cmd/config"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/infra"
	"github.com/secmon-lab/catalogsync/pkg/infra/dump"
	"github.com/secmon-lab/catalogsync/pkg/infra/pubsub"
	"github.com/secmon-lab/catalogsync/pkg/usecase"
	"github.com/secmon-lab/catalogsync/pkg/utils"
	"github.com/urfave/cli/v2"
)

// pipeline is a set of configurations to build the ingestion use case.
type pipeline struct {
	warehouse config.Warehouse
	catalog   config.Catalog
	filter    config.Filter
	ingest    config.Ingest
	metadata  config.Metadata
	notify    config.Notify
	output    config.Output
	sentry    config.Sentry
}

func (x *pipeline) Flags() []cli.Flag {
	return mergeFlags(
		x.warehouse.Flags(),
		x.catalog.Flags(),
		x.filter.Flags(),
		x.ingest.Flags(),
		x.metadata.Flags(),
		x.notify.Flags(),
		x.output.Flags(),
		x.sentry.Flags(),
	)
}

func (x *pipeline) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("warehouse", &x.warehouse),
		slog.Any("catalog", &x.catalog),
		slog.Any("filter", &x.filter),
		slog.Any("ingest", &x.ingest),
		slog.Any("metadata", &x.metadata),
		slog.Any("notify", &x.notify),
		slog.Any("output", &x.output),
	)
}

// runConfig returns validated run configuration without creating any client.
func (x *pipeline) runConfig() (*model.RunConfig, error) {
	filter, err := x.filter.Configure()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to configure filter")
	}
	cfg, err := x.ingest.Configure(x.warehouse.Type(), filter)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to configure ingest")
	}
	return cfg, nil
}

// validate checks every concern of the pipeline without connecting to external services.
func (x *pipeline) validate() error {
	if _, err := x.runConfig(); err != nil {
		return err
	}
	if _, err := x.warehouse.Configure(); err != nil {
		return goerr.Wrap(err, "failed to configure warehouse")
	}
	if !x.output.DryRun() {
		if _, err := x.catalog.Configure(); err != nil {
			return goerr.Wrap(err, "failed to configure catalog")
		}
	}
	if _, err := x.metadata.Configure(); err != nil {
		return goerr.Wrap(err, "failed to configure run log")
	}
	if err := x.notify.Validate(); err != nil {
		return goerr.Wrap(err, "failed to configure notification")
	}
	return nil
}

// build creates clients and the use case. extraInfra and extraUC are appended to options built from the configuration. Returned closers must be closed by the caller.
func (x *pipeline) build(ctx context.Context, extraInfra []infra.Option, extraUC ...usecase.Option) (*usecase.UseCase, *model.RunConfig, []io.Closer, error) {
	var closers []io.Closer

	if err := x.sentry.Configure(); err != nil {
		return nil, nil, nil, err
	}

	cfg, err := x.runConfig()
	if err != nil {
		return nil, nil, nil, err
	}

	warehouse, err := x.warehouse.Configure()
	if err != nil {
		return nil, nil, nil, goerr.Wrap(err, "failed to configure warehouse")
	}
	infraOptions := []infra.Option{infra.WithWarehouse(warehouse)}

	meta, err := x.metadata.Configure()
	if err != nil {
		return nil, nil, nil, goerr.Wrap(err, "failed to configure run log")
	}
	ucOptions := append(x.ingest.UseCaseOptions(), usecase.WithRunConfig(cfg))
	if meta != nil {
		ucOptions = append(ucOptions, usecase.WithMetadata(meta))
	}

	if x.output.DryRun() {
		catalog, err := x.output.Configure(ctx)
		if err != nil {
			return nil, nil, nil, goerr.Wrap(err, "failed to configure dry-run output")
		}
		utils.Logger().Info("dry-run mode, entities are written to output", "output", &x.output)

		infraOptions = append(infraOptions,
			infra.WithCatalog(catalog),
			infra.WithBigQuery(dump.New(x.output.Dir())),
			infra.WithPubSub(pubsub.NewDumper(x.output.Dir())),
		)
	} else {
		catalog, err := x.catalog.Configure()
		if err != nil {
			return nil, nil, nil, goerr.Wrap(err, "failed to configure catalog")
		}
		infraOptions = append(infraOptions, infra.WithCatalog(catalog))

		if meta != nil {
			bqClient, err := x.metadata.NewClient(ctx)
			if err != nil {
				return nil, nil, closers, goerr.Wrap(err, "failed to configure BigQuery client")
			}
			if bqClient != nil {
				closers = append(closers, bqClient)
				infraOptions = append(infraOptions, infra.WithBigQuery(bqClient))
			}
		}

		psClient, err := x.notify.Configure(ctx)
		if err != nil {
			return nil, nil, closers, goerr.Wrap(err, "failed to configure Pub/Sub client")
		}
		if psClient != nil {
			closers = append(closers, psClient)
			infraOptions = append(infraOptions, infra.WithPubSub(psClient))
		}
	}

	infraOptions = append(infraOptions, extraInfra...)
	ucOptions = append(ucOptions, extraUC...)
	return usecase.New(infra.New(infraOptions...), ucOptions...), cfg, closers, nil
}

func closeAll(ctx context.Context, closers []io.Closer) {
	for _, c := range closers {
		utils.SafeClose(ctx, c)
	}
}
