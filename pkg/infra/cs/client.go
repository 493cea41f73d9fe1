package cs

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/interfaces"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
)

type Client struct {
	client *storage.Client
}

func New(ctx context.Context) (*Client, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &Client{
		client: client,
	}, nil
}

func (x *Client) NewWriter(ctx context.Context, bucket types.CSBucket, object types.CSObjectID) io.WriteCloser {
	w := x.client.Bucket(bucket.String()).Object(object.String()).NewWriter(ctx)
	w.ContentType = "application/x-ndjson"
	return w
}

var _ interfaces.CloudStorage = &Client{}
