package pubsub

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/interfaces"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
	"github.com/secmon-lab/catalogsync/pkg/utils"
)

// DumpFileName is the file in the output directory where Dumper appends messages.
const DumpFileName = "notifications.jsonl"

// DumpedMessage is one line of DumpFileName.
type DumpedMessage struct {
	ID         types.PubSubMessageID `json:"id"`
	Attributes map[string]string     `json:"attributes,omitempty"`
	Data       json.RawMessage       `json:"data"`
}

// Dumper appends messages to a local JSON lines file instead of publishing them. It is used by dry run.
type Dumper struct {
	outDir string
	mutex  sync.Mutex
}

func NewDumper(outDir string) *Dumper {
	return &Dumper{outDir: filepath.Clean(outDir)}
}

func (x *Dumper) Publish(ctx context.Context, data []byte, attrs map[string]string) (types.PubSubMessageID, error) {
	msg := DumpedMessage{
		ID:         types.PubSubMessageID(uuid.NewString()),
		Attributes: attrs,
		Data:       data,
	}
	if !json.Valid(data) {
		raw, err := json.Marshal(string(data))
		if err != nil {
			return "", goerr.Wrap(err, "failed to encode message data")
		}
		msg.Data = raw
	}

	line, err := json.Marshal(msg)
	if err != nil {
		return "", goerr.Wrap(err, "failed to encode message", goerr.V("id", msg.ID))
	}

	x.mutex.Lock()
	defer x.mutex.Unlock()

	if err := os.MkdirAll(x.outDir, 0755); err != nil {
		return "", goerr.Wrap(err, "failed to create directory", goerr.V("dir", x.outDir))
	}

	path := filepath.Join(x.outDir, DumpFileName)
	fd, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return "", goerr.Wrap(err, "failed to open dump file", goerr.V("path", path))
	}
	defer utils.SafeClose(ctx, fd)

	if _, err := fd.Write(append(line, '\n')); err != nil {
		return "", goerr.Wrap(err, "failed to write message", goerr.V("path", path))
	}

	return msg.ID, nil
}

var _ interfaces.PubSub = &Dumper{}
