package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/infra/pubsub"
	"github.com/urfave/cli/v2"
)

// Notify is configuration of Pub/Sub topic that receives run results.
type Notify struct {
	projectID types.GoogleProjectID
	topicID   types.PubSubTopicID
}

func (x *Notify) Flags() []cli.Flag {
	category := "Notification"
	return []cli.Flag{
		&cli.StringFlag{
			Category:    category,
			Name:        "notify-pubsub-project-id",
			Usage:       "Google Cloud project ID of Pub/Sub topic for run results",
			EnvVars:     []string{"CATALOGSYNC_NOTIFY_PUBSUB_PROJECT_ID"},
			Destination: (*string)(&x.projectID),
		},
		&cli.StringFlag{
			Category:    category,
			Name:        "notify-pubsub-topic-id",
			Usage:       "Pub/Sub topic ID for run results",
			EnvVars:     []string{"CATALOGSYNC_NOTIFY_PUBSUB_TOPIC_ID"},
			Destination: (*string)(&x.topicID),
		},
	}
}

func (x *Notify) Enabled() bool {
	return x.projectID != "" || x.topicID != ""
}

func (x *Notify) Validate() error {
	if !x.Enabled() {
		return nil
	}
	if x.projectID == "" {
		return goerr.Wrap(types.ErrInvalidOption, "notify-pubsub-project-id is required")
	}
	if x.topicID == "" {
		return goerr.Wrap(types.ErrInvalidOption, "notify-pubsub-topic-id is required")
	}
	return nil
}

// Configure returns nil without error if notification is not configured.
func (x *Notify) Configure(ctx context.Context) (*pubsub.Client, error) {
	if !x.Enabled() {
		return nil, nil
	}
	if err := x.Validate(); err != nil {
		return nil, err
	}

	return pubsub.New(ctx, x.projectID, x.topicID)
}

func (x *Notify) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("project_id", x.projectID.String()),
		slog.String("topic_id", x.topicID.String()),
	)
}
