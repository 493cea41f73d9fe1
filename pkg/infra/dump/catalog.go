package dump

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/interfaces"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
)

// Catalog is a dry-run catalog. Each session writes envelopes as JSON lines to a local directory or a Cloud Storage prefix.
type Catalog struct {
	dir    string
	bucket types.CSBucket
	prefix string
	cs     interfaces.CloudStorage
	now    func() time.Time
}

type CatalogOption func(*Catalog)

// WithClock replaces time source of output file names.
func WithClock(now func() time.Time) CatalogOption {
	return func(c *Catalog) {
		c.now = now
	}
}

// NewCatalog creates a dry-run catalog. output is a local directory or "gs://bucket/prefix". cs is required only for gs:// output.
func NewCatalog(output string, cs interfaces.CloudStorage, options ...CatalogOption) (*Catalog, error) {
	c := &Catalog{now: time.Now}
	for _, opt := range options {
		opt(c)
	}

	if strings.HasPrefix(output, "gs://") {
		if cs == nil {
			return nil, goerr.Wrap(types.ErrInvalidOption, "cloud storage client is required for gs:// output", goerr.V("output", output))
		}
		// Allow "gs://bucket" without object prefix
		raw := output
		if strings.Count(strings.TrimPrefix(raw, "gs://"), "/") == 0 {
			raw += "/"
		}
		bucket, prefix, err := types.CSUrl(raw).Parse()
		if err != nil {
			return nil, err
		}
		c.bucket = bucket
		c.prefix = strings.Trim(prefix.String(), "/")
		c.cs = cs
		return c, nil
	}

	if output == "" {
		return nil, goerr.Wrap(types.ErrInvalidOption, "dry-run output is required")
	}
	c.dir = filepath.Clean(output)
	return c, nil
}

func (x *Catalog) fileName() string {
	return "envelopes_" + x.now().UTC().Format("20060102T150405.000000000") + ".jsonl"
}

func (x *Catalog) Open(ctx context.Context) (interfaces.CatalogSession, error) {
	name := x.fileName()

	if x.cs != nil {
		object := types.CSObjectID(path.Join(x.prefix, name))
		return &CatalogSession{
			w:        x.cs.NewWriter(ctx, x.bucket, object),
			location: "gs://" + x.bucket.String() + "/" + object.String(),
		}, nil
	}

	if err := os.MkdirAll(x.dir, 0755); err != nil {
		return nil, goerr.Wrap(err, "failed to create output directory", goerr.V("dir", x.dir))
	}
	fpath := filepath.Join(x.dir, name)
	fd, err := os.Create(filepath.Clean(fpath))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create output file", goerr.V("file", fpath))
	}

	return &CatalogSession{w: fd, location: fpath}, nil
}

var _ interfaces.Catalog = &Catalog{}

type CatalogSession struct {
	w        io.WriteCloser
	location string
	count    int
	mutex    sync.Mutex
}

// Location returns path or URL of the output.
func (x *CatalogSession) Location() string { return x.location }

func (x *CatalogSession) Health(ctx context.Context) error { return nil }

func (x *CatalogSession) Config(ctx context.Context) (map[string]any, error) {
	return map[string]any{
		"dry_run": true,
		"output":  x.location,
	}, nil
}

func (x *CatalogSession) Ingest(ctx context.Context, envelopes []*model.Envelope) error {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	encoder := json.NewEncoder(x.w)
	for _, env := range envelopes {
		if err := encoder.Encode(env); err != nil {
			return goerr.Wrap(types.ErrPermanentDelivery, "failed to write envelope", goerr.V("urn", env.EntityURN), goerr.V("error", err.Error()))
		}
		x.count++
	}
	return nil
}

// GetEntity always returns nil because dry-run output is write only.
func (x *CatalogSession) GetEntity(ctx context.Context, urn types.URN) (map[string]any, error) {
	return nil, nil
}

func (x *CatalogSession) DeleteEntity(ctx context.Context, urn types.URN) error {
	return goerr.Wrap(types.ErrUnsupported, "dry-run catalog does not support delete", goerr.V("urn", urn))
}

// Count returns number of written envelopes.
func (x *CatalogSession) Count() int {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	return x.count
}

func (x *CatalogSession) Close() error {
	if err := x.w.Close(); err != nil {
		return goerr.Wrap(err, "failed to close dry-run output", goerr.V("location", x.location))
	}
	return nil
}

var _ interfaces.CatalogSession = &CatalogSession{}
