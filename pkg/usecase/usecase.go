package usecase

import (
	"time"

	"github.com/secmon-lab/catalogsync/pkg/domain/interfaces"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/infra"
)

type UseCase struct {
	clients   *infra.Clients
	metadata  *model.MetadataConfig
	runConfig *model.RunConfig

	backoff           BackoffStrategy
	ingestConcurrency int
	stateTimeout      time.Duration
	stateTTL          time.Duration
}

const (
	defaultIngestConcurrency = 1
	defaultStateTimeout      = 30 * time.Minute
	defaultStateTTL          = 7 * 24 * time.Hour

	defaultBackoffInitial = time.Second
	defaultBackoffMax     = 30 * time.Second
)

var _ interfaces.UseCase = &UseCase{}

func New(clients *infra.Clients, options ...Option) *UseCase {
	uc := &UseCase{
		clients:           clients,
		backoff:           ExponentialBackoff(defaultBackoffInitial, defaultBackoffMax),
		ingestConcurrency: defaultIngestConcurrency,
		stateTimeout:      defaultStateTimeout,
		stateTTL:          defaultStateTTL,
	}

	for _, option := range options {
		option(uc)
	}

	return uc
}

type Option func(*UseCase)

// WithMetadata enables writing run logs to the BigQuery table.
func WithMetadata(metadata *model.MetadataConfig) Option {
	return func(uc *UseCase) {
		uc.metadata = metadata
	}
}

// WithRunConfig sets the base run configuration used by triggered runs.
func WithRunConfig(cfg *model.RunConfig) Option {
	return func(uc *UseCase) {
		uc.runConfig = cfg
	}
}

func WithBackoff(backoff BackoffStrategy) Option {
	return func(uc *UseCase) {
		uc.backoff = backoff
	}
}

func WithIngestConcurrency(n int) Option {
	if n < 1 {
		n = 1
	}
	return func(uc *UseCase) {
		uc.ingestConcurrency = n
	}
}

// WithStateTimeout sets how long a running trigger state blocks redelivered messages.
func WithStateTimeout(d time.Duration) Option {
	return func(uc *UseCase) {
		uc.stateTimeout = d
	}
}

func WithStateTTL(d time.Duration) Option {
	return func(uc *UseCase) {
		uc.stateTTL = d
	}
}

// RunConfig returns a copy of the base run configuration. It returns nil if not configured.
func (x *UseCase) RunConfig() *model.RunConfig {
	if x.runConfig == nil {
		return nil
	}
	cfg := *x.runConfig
	return &cfg
}
