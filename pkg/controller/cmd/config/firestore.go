package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/interfaces"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/infra/firestore"
	"github.com/secmon-lab/catalogsync/pkg/utils"
	"github.com/urfave/cli/v2"
)

// Firestore is configuration of trigger state store.
type Firestore struct {
	projectID  string
	databaseID string
	prefix     string
}

func (x *Firestore) Flags() []cli.Flag {
	category := "Firestore"
	return []cli.Flag{
		&cli.StringFlag{
			Category:    category,
			Name:        "firestore-project-id",
			Usage:       "Google Cloud project ID of Firestore for trigger state",
			EnvVars:     []string{"CATALOGSYNC_FIRESTORE_PROJECT_ID"},
			Destination: &x.projectID,
		},
		&cli.StringFlag{
			Category:    category,
			Name:        "firestore-database-id",
			Usage:       "Firestore database ID",
			EnvVars:     []string{"CATALOGSYNC_FIRESTORE_DATABASE_ID"},
			Destination: &x.databaseID,
			Value:       "(default)",
		},
		&cli.StringFlag{
			Category:    category,
			Name:        "firestore-collection-prefix",
			Usage:       "Prefix of Firestore collection names",
			EnvVars:     []string{"CATALOGSYNC_FIRESTORE_COLLECTION_PREFIX"},
			Destination: &x.prefix,
			Value:       types.AppName + "_",
		},
	}
}

func (x *Firestore) Validate() error {
	if x.projectID != "" && x.databaseID == "" {
		return goerr.Wrap(types.ErrInvalidOption, "firestore-database-id is required")
	}
	return nil
}

// Configure returns Firestore client. If project ID is not set, it returns in-memory state store that works only in a single process.
func (x *Firestore) Configure(ctx context.Context) (interfaces.Database, error) {
	if x.projectID == "" {
		utils.Logger().Warn("firestore is not configured, trigger state is kept in memory")
		return firestore.NewMemory(), nil
	}
	if err := x.Validate(); err != nil {
		return nil, err
	}

	return firestore.New(ctx, x.projectID, x.databaseID, firestore.WithCollectionPrefix(x.prefix))
}

func (x *Firestore) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("project_id", x.projectID),
		slog.String("database_id", x.databaseID),
		slog.String("prefix", x.prefix),
	)
}
