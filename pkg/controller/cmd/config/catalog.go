package config

import (
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/infra/datahub"
	"github.com/urfave/cli/v2"
)

// Catalog is configuration of the DataHub metadata service.
type Catalog struct {
	endpoint  string
	token     string
	timeout   time.Duration
	rateLimit float64
}

func (x *Catalog) Flags() []cli.Flag {
	category := "Catalog"
	return []cli.Flag{
		&cli.StringFlag{
			Category:    category,
			Name:        "catalog-endpoint",
			Usage:       "Base URL of DataHub GMS, e.g. http://localhost:8080",
			EnvVars:     []string{"CATALOGSYNC_CATALOG_ENDPOINT"},
			Destination: &x.endpoint,
		},
		&cli.StringFlag{
			Category:    category,
			Name:        "catalog-token",
			Usage:       "Personal access token of DataHub",
			EnvVars:     []string{"CATALOGSYNC_CATALOG_TOKEN"},
			Destination: &x.token,
		},
		&cli.DurationFlag{
			Category:    category,
			Name:        "catalog-timeout",
			Usage:       "Timeout of each request to DataHub",
			EnvVars:     []string{"CATALOGSYNC_CATALOG_TIMEOUT"},
			Destination: &x.timeout,
			Value:       datahub.DefaultTimeout,
		},
		&cli.Float64Flag{
			Category:    category,
			Name:        "catalog-rate-limit",
			Usage:       "Max requests per second to DataHub. 0 disables the limit",
			EnvVars:     []string{"CATALOGSYNC_CATALOG_RATE_LIMIT"},
			Destination: &x.rateLimit,
			Value:       datahub.DefaultRateLimit,
		},
	}
}

func (x *Catalog) Configure() (*datahub.Client, error) {
	if x.endpoint == "" {
		return nil, goerr.Wrap(types.ErrInvalidOption, "catalog-endpoint is required")
	}

	options := []datahub.Option{
		datahub.WithTimeout(x.timeout),
		datahub.WithRateLimit(x.rateLimit),
	}
	if x.token != "" {
		options = append(options, datahub.WithToken(types.Secret(x.token)))
	}

	return datahub.New(x.endpoint, options...)
}

func (x *Catalog) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("endpoint", x.endpoint),
		slog.Bool("token", x.token != ""),
		slog.Duration("timeout", x.timeout),
		slog.Float64("rate_limit", x.rateLimit),
	)
}
