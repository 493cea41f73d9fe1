package cmd

import (
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/utils"
	"github.com/urfave/cli/v2"
)

func clientCommand() *cli.Command {
	return &cli.Command{
		Name:  "client",
		Usage: "Client of catalogsync server",
		Subcommands: []*cli.Command{
			clientHealthCheck(),
		},
	}
}

func clientHealthCheck() *cli.Command {
	var (
		url     string
		timeout time.Duration
	)

	return &cli.Command{
		Name:  "health",
		Usage: "Check health of catalogsync server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "server-url",
				Aliases:     []string{"u"},
				EnvVars:     []string{"CATALOGSYNC_SERVER_URL"},
				Usage:       "URL of health endpoint",
				Destination: &url,
				Value:       "http://localhost:8080/health",
			},
			&cli.DurationFlag{
				Name:        "timeout",
				EnvVars:     []string{"CATALOGSYNC_CLIENT_TIMEOUT"},
				Usage:       "Timeout of the request",
				Destination: &timeout,
				Value:       10 * time.Second,
			},
		},
		Action: func(c *cli.Context) error {
			req, err := http.NewRequestWithContext(c.Context, http.MethodGet, url, nil)
			if err != nil {
				return goerr.Wrap(err, "failed to create request", goerr.V("url", url))
			}
			req.Header.Set("User-Agent", types.AppName+"/"+types.AppVersion)

			client := &http.Client{Timeout: timeout}
			resp, err := client.Do(req)
			if err != nil {
				return goerr.Wrap(err, "failed to send request", goerr.V("url", url))
			}
			defer utils.SafeClose(c.Context, resp.Body)

			if resp.StatusCode != http.StatusOK {
				return goerr.New("server is not healthy", goerr.V("status", resp.Status))
			}

			utils.Logger().Info("Server is healthy", "url", url)

			return nil
		},
	}
}
