package pubsub

import (
	"context"

	"cloud.google.com/go/pubsub/v2"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/interfaces"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
)

// Client publishes run notifications to a Pub/Sub topic.
type Client struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	topicID   types.PubSubTopicID
}

func New(ctx context.Context, projectID types.GoogleProjectID, topicID types.PubSubTopicID) (*Client, error) {
	client, err := pubsub.NewClient(ctx, projectID.String())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create pubsub client", goerr.V("project_id", projectID))
	}

	publisher := client.Publisher(topicID.String())
	// One notification is published per run. Batching only delays it.
	publisher.PublishSettings.CountThreshold = 1

	return &Client{
		client:    client,
		publisher: publisher,
		topicID:   topicID,
	}, nil
}

func (x *Client) Publish(ctx context.Context, data []byte, attrs map[string]string) (types.PubSubMessageID, error) {
	msgID, err := x.publisher.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	}).Get(ctx)
	if err != nil {
		return "", goerr.Wrap(err, "failed to publish message", goerr.V("topic_id", x.topicID))
	}
	return types.PubSubMessageID(msgID), nil
}

func (x *Client) Close() error {
	x.publisher.Stop()
	if err := x.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close pubsub client")
	}
	return nil
}

var _ interfaces.PubSub = &Client{}
