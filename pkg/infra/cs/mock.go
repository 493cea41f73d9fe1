package cs

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/secmon-lab/catalogsync/pkg/domain/interfaces"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
)

// Mock keeps written objects in memory.
type Mock struct {
	MockNewWriter func(ctx context.Context, bucket types.CSBucket, object types.CSObjectID) io.WriteCloser

	objects map[string]*bytes.Buffer
	mutex   sync.Mutex
}

func NewMock() *Mock {
	return &Mock{objects: map[string]*bytes.Buffer{}}
}

type mockWriter struct {
	buf   bytes.Buffer
	close func(data []byte)
}

func (x *mockWriter) Write(p []byte) (int, error) { return x.buf.Write(p) }
func (x *mockWriter) Close() error {
	x.close(x.buf.Bytes())
	return nil
}

func (x *Mock) NewWriter(ctx context.Context, bucket types.CSBucket, object types.CSObjectID) io.WriteCloser {
	if x.MockNewWriter != nil {
		return x.MockNewWriter(ctx, bucket, object)
	}

	key := bucket.String() + "/" + object.String()
	return &mockWriter{
		close: func(data []byte) {
			x.mutex.Lock()
			defer x.mutex.Unlock()
			x.objects[key] = bytes.NewBuffer(data)
		},
	}
}

// Object returns data of a closed object.
func (x *Mock) Object(bucket types.CSBucket, object types.CSObjectID) ([]byte, bool) {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	buf, ok := x.objects[bucket.String()+"/"+object.String()]
	if !ok {
		return nil, false
	}
	return buf.Bytes(), true
}

var _ interfaces.CloudStorage = &Mock{}
