package bq

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/bigquery/storage/apiv1/storagepb"
	mw "cloud.google.com/go/bigquery/storage/managedwriter"
	"cloud.google.com/go/bigquery/storage/managedwriter/adapt"
	"github.com/googleapis/gax-go/v2"
	"github.com/googleapis/gax-go/v2/apierror"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/interfaces"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/utils"
	"google.golang.org/api/googleapi"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Client writes run logs to BigQuery.
type Client struct {
	mwClient  *mw.Client
	bqClient  *bigquery.Client
	projectID types.GoogleProjectID
}

var _ interfaces.BigQuery = &Client{}

func New(ctx context.Context, projectID types.GoogleProjectID) (*Client, error) {
	mwClient, err := mw.NewClient(ctx, projectID.String())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create managed writer client", goerr.V("project_id", projectID))
	}

	bqClient, err := bigquery.NewClient(ctx, projectID.String())
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create bigquery client", goerr.V("project_id", projectID))
	}

	return &Client{
		mwClient:  mwClient,
		bqClient:  bqClient,
		projectID: projectID,
	}, nil
}

func (x *Client) Close() error {
	if err := x.mwClient.Close(); err != nil {
		return goerr.Wrap(err, "failed to close managed writer client")
	}
	if err := x.bqClient.Close(); err != nil {
		return goerr.Wrap(err, "failed to close bigquery client")
	}
	return nil
}

// retry calls callback until done with exponential backoff.
func retry(ctx context.Context, callback func(n int) (done bool, err error)) error {
	bo := gax.Backoff{
		Initial:    20 * time.Millisecond,
		Max:        30 * time.Second,
		Multiplier: 2,
	}

	for i := 0; ; i++ {
		done, err := callback(i)
		if done {
			return err
		}

		if err := gax.Sleep(ctx, bo.Pause()); err != nil {
			return goerr.Wrap(err, "context is canceled while retrying")
		}
	}
}

func encodeRows(schema bigquery.Schema, data []any) (*descriptorRows, error) {
	convertedSchema, err := adapt.BQSchemaToStorageTableSchema(schema)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to convert schema")
	}

	descriptor, err := adapt.StorageSchemaToProto2Descriptor(convertedSchema, "root")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to convert schema to descriptor")
	}
	messageDescriptor, ok := descriptor.(protoreflect.MessageDescriptor)
	if !ok {
		return nil, goerr.New("adapted descriptor is not a message descriptor")
	}
	descriptorProto, err := adapt.NormalizeDescriptor(messageDescriptor)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to normalize descriptor")
	}

	out := &descriptorRows{descriptor: descriptorProto}
	for _, v := range data {
		message := dynamicpb.NewMessage(messageDescriptor)

		raw, err := json.Marshal(v)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to marshal json message", goerr.V("v", v))
		}

		// First, json->proto message
		if err := protojson.Unmarshal(raw, message); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal json message", goerr.V("raw", string(raw)))
		}
		// Then, proto message -> bytes.
		b, err := proto.Marshal(message)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to marshal proto message")
		}

		out.rows = append(out.rows, b)
	}

	return out, nil
}

// Insert appends data to the table through the Storage Write API. Timestamps in data must be int64 micro seconds.
func (x *Client) Insert(ctx context.Context, datasetID types.BQDatasetID, tableID types.BQTableID, schema bigquery.Schema, data []any) error {
	encoded, err := encodeRows(schema, data)
	if err != nil {
		return err
	}

	// A schema update takes several minutes to be visible to the Storage Write API.
	ctx, cancel := context.WithTimeout(ctx, 15*time.Minute)
	defer cancel()

	return retry(ctx, func(n int) (bool, error) {
		ms, err := x.mwClient.NewManagedStream(ctx,
			mw.WithDestinationTable(
				mw.TableParentFromParts(
					x.projectID.String(),
					datasetID.String(),
					tableID.String(),
				),
			),
			mw.WithSchemaDescriptor(encoded.descriptor),
		)
		if err != nil {
			return true, goerr.Wrap(err, "failed to create managed stream")
		}
		defer utils.SafeClose(ctx, ms)

		arResult, err := ms.AppendRows(ctx, encoded.rows)
		if err != nil {
			return true, goerr.Wrap(err, "failed to append rows")
		}

		if _, err := arResult.FullResponse(ctx); err != nil {
			if apiErr, ok := apierror.FromError(err); ok {
				storageErr := &storagepb.StorageError{}
				if e := apiErr.Details().ExtractProtoMessage(storageErr); e == nil && storageErr.Code == storagepb.StorageError_SCHEMA_MISMATCH_EXTRA_FIELDS {
					utils.CtxLogger(ctx).Debug("retrying to append rows", "attempt", n)
					return false, nil
				}
			}
			return true, goerr.Wrap(err, "failed to get append result")
		}

		return true, nil
	})
}

// GetMetadata implements interfaces.BigQuery. If the table does not exist, it returns nil.
func (x *Client) GetMetadata(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID) (*bigquery.TableMetadata, error) {
	md, err := x.bqClient.Dataset(dataset.String()).Table(table.String()).Metadata(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to get table metadata", goerr.V("dataset", dataset), goerr.V("table", table))
	}

	return md, nil
}

// UpdateTable implements interfaces.BigQuery.
func (x *Client) UpdateTable(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID, md bigquery.TableMetadataToUpdate, eTag string) error {
	if _, err := x.bqClient.Dataset(dataset.String()).Table(table.String()).Update(ctx, md, eTag); err != nil {
		return goerr.Wrap(err, "failed to update table schema", goerr.V("dataset", dataset), goerr.V("table", table))
	}

	return nil
}

// CreateTable implements interfaces.BigQuery.
func (x *Client) CreateTable(ctx context.Context, dataset types.BQDatasetID, table types.BQTableID, md *bigquery.TableMetadata) error {
	if err := x.bqClient.Dataset(dataset.String()).Table(table.String()).Create(ctx, md); err != nil {
		return goerr.Wrap(err, "failed to create table", goerr.V("dataset", dataset), goerr.V("table", table))
	}

	return nil
}

type descriptorRows struct {
	descriptor *descriptorpb.DescriptorProto
	rows       [][]byte
}

func isNotFound(err error) bool {
	var gErr *googleapi.Error
	return errors.As(err, &gErr) && gErr.Code == http.StatusNotFound
}
