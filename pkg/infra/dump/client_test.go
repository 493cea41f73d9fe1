package dump_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/infra/cs"
	"github.com/secmon-lab/catalogsync/pkg/infra/dump"
)

func TestClient_Insert(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()

	client := dump.New(tmpDir)

	data := []any{
		map[string]any{"name": "Alice", "age": 25},
		map[string]any{"name": "Bob", "age": 30},
	}

	gt.NoError(t, client.Insert(ctx, types.BQDatasetID("my_dataset"), types.BQTableID("my_table"), nil, data))

	fd, err := os.Open(filepath.Join(tmpDir, "my_dataset.my_table.jsonl"))
	gt.NoError(t, err)
	defer fd.Close()

	decoder := json.NewDecoder(fd)
	var records []any
	for decoder.More() {
		var record any
		gt.NoError(t, decoder.Decode(&record))
		records = append(records, record)
	}

	expectedRecords := []any{
		map[string]any{"name": "Alice", "age": float64(25)},
		map[string]any{"name": "Bob", "age": float64(30)},
	}

	gt.Equal(t, records, expectedRecords)
}

func sampleEnvelopes() []*model.Envelope {
	return []*model.Envelope{
		{
			EntityType: "dataset",
			EntityURN:  "urn:li:dataset:(urn:li:dataPlatform:sqlite,main.main.orders,PROD)",
			ChangeType: model.ChangeTypeUpsert,
			AspectName: "datasetProperties",
			Aspect:     model.AspectPayload{Value: `{"name":"orders"}`, ContentType: "application/json"},
		},
		{
			EntityType: "dataset",
			EntityURN:  "urn:li:dataset:(urn:li:dataPlatform:sqlite,main.main.orders,PROD)",
			ChangeType: model.ChangeTypeUpsert,
			AspectName: "subTypes",
			Aspect:     model.AspectPayload{Value: `{"typeNames":["Table"]}`, ContentType: "application/json"},
		},
	}
}

func countLines(t *testing.T, data []byte) int {
	t.Helper()
	scanner := bufio.NewScanner(bytes.NewReader(data))
	n := 0
	for scanner.Scan() {
		var env model.Envelope
		gt.NoError(t, json.Unmarshal(scanner.Bytes(), &env))
		gt.Equal(t, env.ChangeType, model.ChangeTypeUpsert)
		n++
	}
	return n
}

func fixedClock() time.Time {
	return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
}

func TestCatalog_Local(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "out")

	catalog, err := dump.NewCatalog(dir, nil, dump.WithClock(fixedClock))
	gt.NoError(t, err)

	session, err := catalog.Open(ctx)
	gt.NoError(t, err)
	gt.NoError(t, session.Health(ctx))
	gt.NoError(t, session.Ingest(ctx, sampleEnvelopes()))
	gt.NoError(t, session.Close())

	loc := session.(*dump.CatalogSession).Location()
	gt.Equal(t, filepath.Base(loc), "envelopes_20240501T100000.000000000.jsonl")

	raw, err := os.ReadFile(loc)
	gt.NoError(t, err)
	gt.Equal(t, countLines(t, raw), 2)
}

func TestCatalog_CloudStorage(t *testing.T) {
	ctx := context.Background()
	mock := cs.NewMock()

	catalog, err := dump.NewCatalog("gs://my-bucket/dry/run", mock, dump.WithClock(fixedClock))
	gt.NoError(t, err)

	session, err := catalog.Open(ctx)
	gt.NoError(t, err)
	gt.NoError(t, session.Ingest(ctx, sampleEnvelopes()))
	gt.NoError(t, session.Close())

	data, ok := mock.Object("my-bucket", "dry/run/envelopes_20240501T100000.000000000.jsonl")
	gt.True(t, ok)
	gt.Equal(t, countLines(t, data), 2)
}

func TestCatalog_Invalid(t *testing.T) {
	_, err := dump.NewCatalog("gs://bucket/prefix", nil)
	gt.Error(t, err)

	_, err = dump.NewCatalog("", nil)
	gt.Error(t, err)

	_, err = dump.NewCatalog("gs://bucket", cs.NewMock())
	gt.NoError(t, err)
}

func TestClient_CreateTable(t *testing.T) {
	ctx := context.Background()
	tmpDir := t.TempDir()
	client := dump.New(tmpDir)

	schema := bigquery.Schema{
		{Name: "id", Type: bigquery.StringFieldType, Required: true},
		{Name: "started_at", Type: bigquery.TimestampFieldType},
	}
	gt.NoError(t, client.CreateTable(ctx, "meta", "runs", &bigquery.TableMetadata{Schema: schema}))

	raw, err := os.ReadFile(filepath.Join(tmpDir, "meta.runs.schema.json"))
	gt.NoError(t, err)

	var fields []map[string]any
	gt.NoError(t, json.Unmarshal(raw, &fields))
	gt.A(t, fields).Length(2)
	gt.Equal(t, fields[0]["name"], any("id"))
	gt.Equal(t, fields[1]["type"], any("TIMESTAMP"))
}
