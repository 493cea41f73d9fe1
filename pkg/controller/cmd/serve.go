package cmd

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/controller/cmd/config"
	"github.com/secmon-lab/catalogsync/pkg/controller/server"
	"github.com/secmon-lab/catalogsync/pkg/infra"
	"github.com/secmon-lab/catalogsync/pkg/usecase"
	"github.com/secmon-lab/catalogsync/pkg/utils"
	"github.com/urfave/cli/v2"
)

func serveCommand() *cli.Command {
	var (
		addr         string
		stateTimeout time.Duration
		stateTTL     time.Duration
		memoryLimit  string

		p         pipeline
		policy    config.Policy
		firestore config.Firestore
	)

	return &cli.Command{
		Name:   "serve",
		Usage:  "Start HTTP server to run the pipeline by request or Pub/Sub push",
		Before: applyConfigFile,
		Flags: mergeFlags([]cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Aliases:     []string{"a"},
				EnvVars:     []string{"CATALOGSYNC_ADDR"},
				Usage:       "Address to listen",
				Destination: &addr,
				Value:       "localhost:8080",
			},
			&cli.DurationFlag{
				Name:        "state-timeout",
				EnvVars:     []string{"CATALOGSYNC_STATE_TIMEOUT"},
				Usage:       "Duration to block redelivered trigger messages while the run is in progress",
				Destination: &stateTimeout,
				Value:       30 * time.Minute,
			},
			&cli.DurationFlag{
				Name:        "state-ttl",
				EnvVars:     []string{"CATALOGSYNC_STATE_TTL"},
				Usage:       "TTL duration to keep trigger state",
				Destination: &stateTTL,
				Value:       7 * 24 * time.Hour,
			},
			&cli.StringFlag{
				Name:        "memory-limit",
				EnvVars:     []string{"CATALOGSYNC_MEMORY_LIMIT"},
				Usage:       "Memory limit of the process. If it exceeds the limit, the server returns 429 too many requests error. (e.g. 1GiB)",
				Destination: &memoryLimit,
			},
		}, p.Flags(), policy.Flags(), firestore.Flags()),
		Action: func(c *cli.Context) error {
			ctx := c.Context

			utils.Logger().Info("starting server",
				slog.Group("config",
					"addr", addr,
					"state-timeout", stateTimeout.String(),
					"state-ttl", stateTTL.String(),
					"memory-limit", memoryLimit,

					"pipeline", &p,
					"policy", &policy,
					"firestore", &firestore,
				),
			)

			var infraOptions []infra.Option

			policyClient, err := policy.Configure()
			if err != nil {
				return goerr.Wrap(err, "failed to configure policy client")
			}
			if policyClient != nil {
				infraOptions = append(infraOptions, infra.WithPolicy(policyClient))
			} else {
				utils.Logger().Warn("policy is not configured, all requests are allowed")
			}

			db, err := firestore.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to configure Firestore client")
			}
			if closer, ok := db.(io.Closer); ok {
				defer utils.SafeClose(ctx, closer)
			}
			infraOptions = append(infraOptions, infra.WithDatabase(db))

			uc, _, closers, err := p.build(ctx, infraOptions,
				usecase.WithStateTimeout(stateTimeout),
				usecase.WithStateTTL(stateTTL),
			)
			defer closeAll(ctx, closers)
			if err != nil {
				return err
			}

			var serverOptions []server.Option
			if memoryLimit != "" {
				limit, err := humanize.ParseBytes(memoryLimit)
				if err != nil {
					return goerr.Wrap(err, "invalid memory limit option", goerr.V("memory-limit", memoryLimit))
				}
				serverOptions = append(serverOptions, server.WithMemoryLimit(limit))
			}

			srv := server.New(uc, serverOptions...)

			// Listen srv on addr
			httpServer := &http.Server{
				Addr:              addr,
				ReadHeaderTimeout: 3 * time.Second,
				Handler:           srv,
			}

			errCh := make(chan error, 1)
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

			go func() {
				defer close(errCh)
				utils.Logger().Info("starting server", "addr", addr)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- goerr.Wrap(err, "failed to listen")
				}
			}()

			select {
			case sig := <-sigCh:
				utils.Logger().Info("received signal and shutting down", "signal", sig)
				if err := httpServer.Shutdown(c.Context); err != nil {
					return goerr.Wrap(err, "failed to shutdown server")
				}

			case err := <-errCh:
				return err
			}

			return nil
		},
	}
}
