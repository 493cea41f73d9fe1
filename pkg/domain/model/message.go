package model

import (
	"encoding/base64"
	"encoding/json"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
)

type PubSubBody struct {
	Message      PubSubMessage `json:"message"`
	Subscription string        `json:"subscription"`
}

type PubSubMessage struct {
	Attributes  map[string]string `json:"attributes"`
	Data        string            `json:"data"`
	MessageID   string            `json:"message_id"`
	PublishTime string            `json:"publish_time"`
}

// RunTrigger is an optional payload of run request. Zero values keep the server side configuration.
type RunTrigger struct {
	Categories []types.Category `json:"categories,omitempty"`
	FailFast   *bool            `json:"fail_fast,omitempty"`
	BatchSize  int              `json:"batch_size,omitempty"`
	MaxRetries *int             `json:"max_retries,omitempty"`
}

// DecodeTrigger decodes base64 encoded data of Pub/Sub message. Empty data returns an empty trigger.
func (x *PubSubMessage) DecodeTrigger() (*RunTrigger, error) {
	if x.Data == "" {
		return &RunTrigger{}, nil
	}

	raw, err := base64.StdEncoding.DecodeString(x.Data)
	if err != nil {
		return nil, goerr.Wrap(types.ErrInvalidRequest, "failed to decode pubsub data", goerr.V("message_id", x.MessageID), goerr.V("error", err.Error()))
	}

	var trigger RunTrigger
	if len(raw) == 0 {
		return &trigger, nil
	}
	if err := json.Unmarshal(raw, &trigger); err != nil {
		return nil, goerr.Wrap(types.ErrInvalidRequest, "failed to unmarshal run trigger", goerr.V("message_id", x.MessageID), goerr.V("error", err.Error()))
	}

	return &trigger, nil
}

// Apply returns a copy of base overridden by the trigger.
func (x *RunTrigger) Apply(base *RunConfig) (*RunConfig, error) {
	cfg := *base
	if x == nil {
		return &cfg, nil
	}

	if len(x.Categories) > 0 {
		cfg.Structural = false
		cfg.AccessControl = false
		for _, c := range x.Categories {
			switch c {
			case types.CategoryStructural:
				cfg.Structural = true
			case types.CategoryAccessControl:
				cfg.AccessControl = true
			default:
				return nil, goerr.Wrap(types.ErrInvalidRequest, "unknown category", goerr.V("category", c))
			}
		}
	}
	if x.FailFast != nil {
		cfg.FailFast = *x.FailFast
	}
	if x.BatchSize > 0 {
		cfg.BatchSize = x.BatchSize
	}
	if x.MaxRetries != nil {
		cfg.MaxRetries = *x.MaxRetries
	}

	if err := cfg.Validate(); err != nil {
		return nil, goerr.Wrap(types.ErrInvalidRequest, "invalid run trigger", goerr.V("error", err.Error()))
	}
	return &cfg, nil
}
