package model

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
)

type MetadataConfig struct {
	dataset types.BQDatasetID
	table   types.BQTableID
}

func NewMetadataConfig(dataset types.BQDatasetID, table types.BQTableID) *MetadataConfig {
	return &MetadataConfig{dataset: dataset, table: table}
}
func (x *MetadataConfig) Dataset() types.BQDatasetID { return x.dataset }
func (x *MetadataConfig) Table() types.BQTableID     { return x.table }

const (
	DefaultBatchSize  = 100
	DefaultMaxRetries = 3
	DefaultActor      = "urn:li:corpuser:" + types.AppName
)

// RunConfig is a validated set of parameters of one pipeline run.
type RunConfig struct {
	Platform      types.Platform
	Env           types.Env
	Actor         string
	Structural    bool
	AccessControl bool
	Filter        *Filter
	BatchSize     int
	MaxRetries    int
	FailFast      bool
}

// NewRunConfig returns RunConfig with default values. Both categories are enabled.
func NewRunConfig(platform types.Platform) *RunConfig {
	return &RunConfig{
		Platform:      platform,
		Env:           types.DefaultEnv,
		Actor:         DefaultActor,
		Structural:    true,
		AccessControl: true,
		BatchSize:     DefaultBatchSize,
		MaxRetries:    DefaultMaxRetries,
	}
}

func (x *RunConfig) Validate() error {
	if x == nil {
		return goerr.Wrap(types.ErrInvalidOption, "run config is required")
	}
	if err := x.Platform.Validate(); err != nil {
		return err
	}
	if err := x.Env.Validate(); err != nil {
		return err
	}
	if x.Actor == "" {
		return goerr.Wrap(types.ErrInvalidOption, "actor is required")
	}
	if x.BatchSize < 1 {
		return goerr.Wrap(types.ErrInvalidOption, "batch size must be positive", goerr.V("batch_size", x.BatchSize))
	}
	if x.MaxRetries < 0 {
		return goerr.Wrap(types.ErrInvalidOption, "max retries must not be negative", goerr.V("max_retries", x.MaxRetries))
	}
	if !x.Structural && !x.AccessControl {
		return goerr.Wrap(types.ErrInvalidOption, "at least one metadata category must be enabled")
	}
	return nil
}

// Categories returns enabled categories in execution order.
func (x *RunConfig) Categories() []types.Category {
	var categories []types.Category
	if x.Structural {
		categories = append(categories, types.CategoryStructural)
	}
	if x.AccessControl {
		categories = append(categories, types.CategoryAccessControl)
	}
	return categories
}

func (x *RunConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("platform", x.Platform.String()),
		slog.String("env", string(x.Env)),
		slog.String("actor", x.Actor),
		slog.Bool("structural", x.Structural),
		slog.Bool("access_control", x.AccessControl),
		slog.Any("filter", x.Filter),
		slog.Int("batch_size", x.BatchSize),
		slog.Int("max_retries", x.MaxRetries),
		slog.Bool("fail_fast", x.FailFast),
	)
}
