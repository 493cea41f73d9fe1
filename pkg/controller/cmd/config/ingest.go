package config

import (
	"log/slog"
	"time"

	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/usecase"
	"github.com/urfave/cli/v2"
)

// Ingest is parameters of a pipeline run.
type Ingest struct {
	platform      string
	env           string
	actor         string
	structural    bool
	accessControl bool
	batchSize     int
	maxRetries    int
	failFast      bool
	concurrency   int
	retryInitial  time.Duration
	retryMax      time.Duration
}

func (x *Ingest) Flags() []cli.Flag {
	category := "Ingest"
	return []cli.Flag{
		&cli.StringFlag{
			Category:    category,
			Name:        "platform",
			Usage:       "Data platform name in URN. Warehouse type is used if empty",
			EnvVars:     []string{"CATALOGSYNC_PLATFORM"},
			Destination: &x.platform,
		},
		&cli.StringFlag{
			Category:    category,
			Name:        "env",
			Usage:       "Fabric type of dataset URN",
			EnvVars:     []string{"CATALOGSYNC_ENV"},
			Destination: &x.env,
			Value:       string(types.DefaultEnv),
		},
		&cli.StringFlag{
			Category:    category,
			Name:        "actor",
			Usage:       "Actor URN in audit header of each change",
			EnvVars:     []string{"CATALOGSYNC_ACTOR"},
			Destination: &x.actor,
			Value:       model.DefaultActor,
		},
		&cli.BoolFlag{
			Category:    category,
			Name:        "extract-structural",
			Usage:       "Extract databases, schemas, tables and columns",
			EnvVars:     []string{"CATALOGSYNC_EXTRACT_STRUCTURAL"},
			Destination: &x.structural,
			Value:       true,
		},
		&cli.BoolFlag{
			Category:    category,
			Name:        "extract-access-control",
			Usage:       "Extract users and roles",
			EnvVars:     []string{"CATALOGSYNC_EXTRACT_ACCESS_CONTROL"},
			Destination: &x.accessControl,
			Value:       true,
		},
		&cli.IntFlag{
			Category:    category,
			Name:        "batch-size",
			Usage:       "Number of entities in one ingest request",
			EnvVars:     []string{"CATALOGSYNC_BATCH_SIZE"},
			Destination: &x.batchSize,
			Value:       model.DefaultBatchSize,
		},
		&cli.IntFlag{
			Category:    category,
			Name:        "max-retries",
			Usage:       "Max retries of a batch on transient failure",
			EnvVars:     []string{"CATALOGSYNC_MAX_RETRIES"},
			Destination: &x.maxRetries,
			Value:       model.DefaultMaxRetries,
		},
		&cli.BoolFlag{
			Category:    category,
			Name:        "fail-fast",
			Usage:       "Stop sending remaining batches of an entity kind after the first failed batch",
			EnvVars:     []string{"CATALOGSYNC_FAIL_FAST"},
			Destination: &x.failFast,
		},
		&cli.IntFlag{
			Category:    category,
			Name:        "ingest-concurrency",
			Usage:       "Number of batches sent in parallel",
			EnvVars:     []string{"CATALOGSYNC_INGEST_CONCURRENCY"},
			Destination: &x.concurrency,
			Value:       1,
		},
		&cli.DurationFlag{
			Category:    category,
			Name:        "retry-initial-interval",
			Usage:       "Initial wait before retrying a batch",
			EnvVars:     []string{"CATALOGSYNC_RETRY_INITIAL_INTERVAL"},
			Destination: &x.retryInitial,
			Value:       time.Second,
		},
		&cli.DurationFlag{
			Category:    category,
			Name:        "retry-max-interval",
			Usage:       "Max wait between retries of a batch",
			EnvVars:     []string{"CATALOGSYNC_RETRY_MAX_INTERVAL"},
			Destination: &x.retryMax,
			Value:       30 * time.Second,
		},
	}
}

// Configure builds a validated run configuration. whType is used as the platform if --platform is not set.
func (x *Ingest) Configure(whType types.WarehouseType, filter *model.Filter) (*model.RunConfig, error) {
	platform := types.Platform(x.platform)
	if platform == "" {
		platform = types.Platform(whType)
	}

	cfg := model.NewRunConfig(platform)
	cfg.Env = types.Env(x.env)
	cfg.Actor = x.actor
	cfg.Structural = x.structural
	cfg.AccessControl = x.accessControl
	cfg.Filter = filter
	cfg.BatchSize = x.batchSize
	cfg.MaxRetries = x.maxRetries
	cfg.FailFast = x.failFast

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// UseCaseOptions returns delivery options of the use case.
func (x *Ingest) UseCaseOptions() []usecase.Option {
	return []usecase.Option{
		usecase.WithIngestConcurrency(x.concurrency),
		usecase.WithBackoff(usecase.ExponentialBackoff(x.retryInitial, x.retryMax)),
	}
}

func (x *Ingest) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("platform", x.platform),
		slog.String("env", x.env),
		slog.String("actor", x.actor),
		slog.Bool("structural", x.structural),
		slog.Bool("access_control", x.accessControl),
		slog.Int("batch_size", x.batchSize),
		slog.Int("max_retries", x.maxRetries),
		slog.Bool("fail_fast", x.failFast),
		slog.Int("concurrency", x.concurrency),
		slog.Duration("retry_initial_interval", x.retryInitial),
		slog.Duration("retry_max_interval", x.retryMax),
	)
}
