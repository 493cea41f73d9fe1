package types

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

const AppName = "catalogsync"

// AppVersion is overwritten by -ldflags at release build
var AppVersion = "dev"

// RequestID is a unique identifier for each HTTP request
type RequestID string

func NewRequestID() RequestID      { return RequestID(uuid.NewString()) }
func (x RequestID) Empty() bool    { return x == "" }
func (x RequestID) String() string { return string(x) }

// RunID is a unique identifier of one pipeline execution
type RunID string

func NewRunID() RunID          { return RunID(uuid.NewString()) }
func (x RunID) String() string { return string(x) }

// URN is a platform-namespaced stable identifier of a catalog entity
type URN string

func (x URN) String() string { return string(x) }

// Platform is the data platform name embedded in every URN, e.g. "snowflake"
type Platform string

var platformPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.\-]*$`)

func (x Platform) String() string { return string(x) }

// Validate checks that the platform name can be embedded in URN without ambiguity.
func (x Platform) Validate() error {
	if !platformPattern.MatchString(string(x)) {
		return goerr.Wrap(ErrInvalidOption, "platform name must match "+platformPattern.String(), goerr.V("platform", x))
	}
	return nil
}

// Env is the fabric type of dataset URN
type Env string

const DefaultEnv Env = "PROD"

func (x Env) Validate() error {
	if x == "" || strings.ContainsAny(string(x), ",()") {
		return goerr.Wrap(ErrInvalidOption, "invalid env", goerr.V("env", x))
	}
	return nil
}

// EntityKind is a kind of canonical entity delivered to the catalog service.
type EntityKind string

const (
	KindSchema  EntityKind = "schema"
	KindDataset EntityKind = "dataset"
	KindUser    EntityKind = "user"
	KindGroup   EntityKind = "group"
)

// EntityKinds is the fixed delivery order of entity kinds.
var EntityKinds = []EntityKind{KindSchema, KindDataset, KindUser, KindGroup}

func (x EntityKind) String() string { return string(x) }

// Category is a group of metadata extracted together from the warehouse.
type Category string

const (
	CategoryStructural    Category = "structural"
	CategoryAccessControl Category = "access_control"
)

func (x Category) String() string { return string(x) }

// Kinds returns entity kinds produced by the category.
func (x Category) Kinds() []EntityKind {
	switch x {
	case CategoryStructural:
		return []EntityKind{KindSchema, KindDataset}
	case CategoryAccessControl:
		return []EntityKind{KindUser, KindGroup}
	default:
		return nil
	}
}

// BatchState is a state of batch delivery
type BatchState string

const (
	BatchPending   BatchState = "PENDING"
	BatchSending   BatchState = "SENDING"
	BatchRetrying  BatchState = "RETRYING"
	BatchSucceeded BatchState = "SUCCEEDED"
	BatchFailed    BatchState = "FAILED"
)

// TableKind is a kind of dataset
type TableKind string

const (
	TableKindTable TableKind = "table"
	TableKindView  TableKind = "view"
)

// WarehouseType is a type of source warehouse
type WarehouseType string

const (
	WarehouseSnowflake WarehouseType = "snowflake"
	WarehousePostgres  WarehouseType = "postgres"
	WarehouseRedshift  WarehouseType = "redshift"
	WarehouseSQLite    WarehouseType = "sqlite"
	WarehouseBigQuery  WarehouseType = "bigquery"
)

// Secret is a string value that must not appear in logs
type Secret string

func (x Secret) Unsafe() string { return string(x) }

// Google Cloud Platform
type GoogleProjectID string

func (x GoogleProjectID) String() string { return string(x) }

type BQDatasetID string
type BQTableID string

func (x BQDatasetID) String() string { return string(x) }
func (x BQTableID) String() string   { return string(x) }

type CSBucket string
type CSObjectID string
type CSUrl string

func (x CSBucket) String() string   { return string(x) }
func (x CSObjectID) String() string { return string(x) }
func (x CSUrl) String() string      { return string(x) }

func (x CSUrl) Parse() (CSBucket, CSObjectID, error) {
	// convert gs://bucket/object to (bucket, object)

	if !strings.HasPrefix(string(x), "gs://") {
		return "", "", goerr.Wrap(ErrInvalidOption, "CSUrl has invalid prefix", goerr.V("url", x))
	}

	parts := strings.Split(string(x), "/")
	if len(parts) < 4 {
		return "", "", goerr.Wrap(ErrInvalidOption, "CSUrl is invalid", goerr.V("url", x))
	}

	if parts[0] != "gs:" || parts[1] != "" {
		return "", "", goerr.Wrap(ErrInvalidOption, "CSUrl is invalid", goerr.V("url", x))
	}

	if parts[2] == "" {
		return "", "", goerr.Wrap(ErrInvalidOption, "CSUrl has empty bucket", goerr.V("url", x))
	}

	bucket := CSBucket(parts[2])
	object := CSObjectID(strings.Join(parts[3:], "/"))

	return bucket, object, nil
}

type PubSubTopicID string
type PubSubMessageID string

func (x PubSubTopicID) String() string   { return string(x) }
func (x PubSubMessageID) String() string { return string(x) }

// MsgType is a collection name of trigger state
type MsgType string

const (
	MsgPubSub MsgType = "pubsub"
)

// MsgState is a processing state of a trigger message
type MsgState string

const (
	MsgRunning   MsgState = "running"
	MsgCompleted MsgState = "completed"
	MsgFailed    MsgState = "failed"
)
