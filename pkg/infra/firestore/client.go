package firestore

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/interfaces"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Client struct {
	client     *firestore.Client
	projectID  string
	databaseID string
	prefix     string
}

type Option func(*Client)

// WithCollectionPrefix sets prefix of collection names. It allows sharing one Firestore database with other services.
func WithCollectionPrefix(prefix string) Option {
	return func(c *Client) {
		c.prefix = prefix
	}
}

func (x *Client) collection(msgType types.MsgType) *firestore.CollectionRef {
	return x.client.Collection(x.prefix + string(msgType))
}

// GetOrCreateState returns the state of message processing. If the state is not found or can be taken over, it stores input and returns it with acquired = true. Otherwise it returns the existing state with acquired = false.
func (x *Client) GetOrCreateState(ctx context.Context, msgType types.MsgType, input *model.State) (*model.State, bool, error) {
	var result *model.State
	var acquired bool

	ref := x.collection(msgType).Doc(input.ID)
	if err := x.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var prev *model.State
		if resp, err := tx.Get(ref); err != nil {
			if status.Code(err) != codes.NotFound {
				return goerr.Wrap(err, "failed to get state from firestore", goerr.V("id", input.ID))
			}
		} else {
			var existed model.State
			if err := resp.DataTo(&existed); err != nil {
				return goerr.Wrap(err, "failed to unmarshal state", goerr.V("id", input.ID))
			}

			if !existed.CanTakeOver(input.CreatedAt) {
				result = &existed
				acquired = false
				return nil
			}
			prev = &existed
		}

		next := input.TakeOver(prev)
		if err := tx.Set(ref, next); err != nil {
			return goerr.Wrap(err, "failed to create new state", goerr.V("id", input.ID))
		}
		result = next
		acquired = true

		return nil
	}); err != nil {
		return nil, false, goerr.Wrap(err, "failed firestore transaction", goerr.V("msg_type", msgType))
	}

	return result, acquired, nil
}

// GetState returns the state of message processing.
func (x *Client) GetState(ctx context.Context, msgType types.MsgType, id string) (*model.State, error) {
	doc, err := x.collection(msgType).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(types.ErrStateNotFound, "state not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get state", goerr.V("id", id))
	}

	var state model.State
	if err := doc.DataTo(&state); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal state", goerr.V("id", id))
	}

	return &state, nil
}

// UpdateState updates the state of message processing.
func (x *Client) UpdateState(ctx context.Context, msgType types.MsgType, id string, state types.MsgState, now time.Time) error {
	if _, err := x.collection(msgType).Doc(id).Set(ctx, map[string]any{
		"state":      state,
		"updated_at": now,
	}, firestore.MergeAll); err != nil {
		return goerr.Wrap(err, "failed to update state", goerr.V("id", id), goerr.V("state", state))
	}
	return nil
}

func New(ctx context.Context, projectID string, databaseID string, options ...Option) (*Client, error) {
	client, err := firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize firestore client", goerr.V("project_id", projectID), goerr.V("database_id", databaseID))
	}

	c := &Client{
		client:     client,
		projectID:  projectID,
		databaseID: databaseID,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

func (x *Client) Close() error {
	if err := x.client.Close(); err != nil {
		return goerr.Wrap(err, "failed to close firestore client")
	}
	return nil
}

var _ interfaces.Database = &Client{}
