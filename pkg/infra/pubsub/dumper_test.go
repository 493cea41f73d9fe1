package pubsub_test

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/catalogsync/pkg/infra/pubsub"
)

func TestDumper(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "out")
	dumper := pubsub.NewDumper(dir)

	id1 := gt.R1(dumper.Publish(ctx, []byte(`{"run_id":"r1"}`), map[string]string{"run_id": "r1", "success": "true"})).NoError(t)
	id2 := gt.R1(dumper.Publish(ctx, []byte("not json"), nil)).NoError(t)

	fd, err := os.Open(filepath.Join(dir, pubsub.DumpFileName))
	gt.NoError(t, err)
	defer fd.Close()

	var msgs []pubsub.DumpedMessage
	scanner := bufio.NewScanner(fd)
	for scanner.Scan() {
		var msg pubsub.DumpedMessage
		gt.NoError(t, json.Unmarshal(scanner.Bytes(), &msg))
		msgs = append(msgs, msg)
	}
	gt.NoError(t, scanner.Err())

	gt.A(t, msgs).Length(2)
	gt.Equal(t, msgs[0].ID, id1)
	gt.Equal(t, msgs[0].Attributes["success"], "true")
	gt.Equal(t, string(msgs[0].Data), `{"run_id":"r1"}`)
	gt.Equal(t, msgs[1].ID, id2)
	gt.Equal(t, string(msgs[1].Data), `"not json"`)
}
