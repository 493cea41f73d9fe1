package config

import (
	"log/slog"

	"github.com/secmon-lab/catalogsync/pkg/infra/policy"
	"github.com/urfave/cli/v2"
)

type Policy struct {
	paths cli.StringSlice
}

func (x *Policy) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:        "policy",
			Aliases:     []string{"p"},
			Usage:       "Policy file or directory for HTTP authorization. All requests are allowed if not set",
			EnvVars:     []string{"CATALOGSYNC_POLICY"},
			Destination: &x.paths,
		},
	}
}

// Configure returns nil if no policy path is given.
func (x *Policy) Configure() (*policy.Client, error) {
	if len(x.paths.Value()) == 0 {
		return nil, nil
	}

	var options []policy.Option
	for _, path := range x.paths.Value() {
		options = append(options, policy.WithFile(path))
	}

	return policy.New(options...)
}

func (x *Policy) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Any("paths", x.paths.Value()),
	)
}
