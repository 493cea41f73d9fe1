package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/controller/cmd/config"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/infra"
	"github.com/secmon-lab/catalogsync/pkg/usecase"
	"github.com/urfave/cli/v2"
)

func entityCommand() *cli.Command {
	return &cli.Command{
		Name:  "entity",
		Usage: "Fetch or delete an entity in DataHub",
		Subcommands: []*cli.Command{
			entityGetCommand(),
			entityDeleteCommand(),
		},
	}
}

func urnFlag(dst *string) cli.Flag {
	return &cli.StringFlag{
		Name:        "urn",
		Aliases:     []string{"u"},
		Usage:       "URN of the entity, e.g. urn:li:dataset:(urn:li:dataPlatform:snowflake,DB.SCHEMA.TABLE,PROD)",
		Destination: dst,
		Required:    true,
	}
}

func newCatalogUseCase(catalog *config.Catalog) (*usecase.UseCase, error) {
	client, err := catalog.Configure()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to configure catalog")
	}
	return usecase.New(infra.New(infra.WithCatalog(client))), nil
}

func entityGetCommand() *cli.Command {
	var (
		catalog config.Catalog
		urn     string
	)

	return &cli.Command{
		Name:   "get",
		Usage:  "Fetch an entity by URN",
		Before: applyConfigFile,
		Flags:  mergeFlags([]cli.Flag{urnFlag(&urn)}, catalog.Flags()),
		Action: func(c *cli.Context) error {
			uc, err := newCatalogUseCase(&catalog)
			if err != nil {
				return err
			}

			entity, err := uc.GetEntity(c.Context, types.URN(urn))
			if err != nil {
				return err
			}
			if entity == nil {
				return goerr.Wrap(types.ErrInvalidRequest, "entity not found", goerr.V("urn", urn))
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(entity); err != nil {
				return goerr.Wrap(err, "failed to encode entity")
			}
			return nil
		},
	}
}

func entityDeleteCommand() *cli.Command {
	var (
		catalog config.Catalog
		urn     string
	)

	return &cli.Command{
		Name:   "delete",
		Usage:  "Delete an entity by URN",
		Before: applyConfigFile,
		Flags:  mergeFlags([]cli.Flag{urnFlag(&urn)}, catalog.Flags()),
		Action: func(c *cli.Context) error {
			uc, err := newCatalogUseCase(&catalog)
			if err != nil {
				return err
			}

			if err := uc.DeleteEntity(c.Context, types.URN(urn)); err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "deleted %s\n", urn)
			return nil
		},
	}
}
