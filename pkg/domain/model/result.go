package model

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/secmon-lab/catalogsync/pkg/domain/types"
)

// KindResult is delivery counters of one entity kind.
type KindResult struct {
	Attempted int `json:"attempted"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	// Skipped is the number of entities never sent because fail-fast or a connection error aborted the remaining batches.
	Skipped int `json:"skipped"`
	Retries int `json:"retries"`
	Batches int `json:"batches"`
}

func (x *KindResult) add(other *KindResult) {
	x.Attempted += other.Attempted
	x.Succeeded += other.Succeeded
	x.Failed += other.Failed
	x.Skipped += other.Skipped
	x.Retries += other.Retries
	x.Batches += other.Batches
}

// Failure is an entity that could not be delivered.
type Failure struct {
	Kind  types.EntityKind `json:"kind"`
	URN   types.URN        `json:"urn"`
	Error string           `json:"error"`
}

// Dropped is a raw record rejected by normalization.
type Dropped struct {
	Record string `json:"record"`
	Error  string `json:"error"`
}

// IngestionResult is the aggregate outcome of a run or of one category.
type IngestionResult struct {
	RunID      types.RunID                      `json:"run_id"`
	Platform   types.Platform                   `json:"platform"`
	Kinds      map[types.EntityKind]*KindResult `json:"kinds"`
	Failures   []*Failure                       `json:"failures,omitempty"`
	Dropped    []*Dropped                       `json:"dropped,omitempty"`
	Extraction []string                         `json:"extraction_errors,omitempty"`
	Categories map[types.Category]string        `json:"category_errors,omitempty"`
	Extracted  map[types.Category]int           `json:"extracted,omitempty"`
	StartedAt  time.Time                        `json:"started_at"`
	FinishedAt time.Time                        `json:"finished_at"`
	Elapsed    time.Duration                    `json:"elapsed"`
	Success    bool                             `json:"success"`
	RunError   string                           `json:"run_error,omitempty"`
	Cancelled  bool                             `json:"cancelled,omitempty"`
	FailFast   map[types.EntityKind]string      `json:"fail_fast,omitempty"`

	mutex sync.Mutex
}

func NewIngestionResult(runID types.RunID, platform types.Platform, startedAt time.Time) *IngestionResult {
	return &IngestionResult{
		RunID:      runID,
		Platform:   platform,
		Kinds:      map[types.EntityKind]*KindResult{},
		Categories: map[types.Category]string{},
		Extracted:  map[types.Category]int{},
		FailFast:   map[types.EntityKind]string{},
		StartedAt:  startedAt,
	}
}

func (x *IngestionResult) kind(kind types.EntityKind) *KindResult {
	r, ok := x.Kinds[kind]
	if !ok {
		r = &KindResult{}
		x.Kinds[kind] = r
	}
	return r
}

// Kind returns a copy of counters of the kind.
func (x *IngestionResult) Kind(kind types.EntityKind) KindResult {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	return *x.kind(kind)
}

// RecordBatch updates counters by outcome of one delivered batch.
func (x *IngestionResult) RecordBatch(kind types.EntityKind, entities []Entity, succeeded bool, retries int, err error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	r := x.kind(kind)
	r.Batches++
	r.Attempted += len(entities)
	r.Retries += retries
	if succeeded {
		r.Succeeded += len(entities)
		return
	}

	r.Failed += len(entities)
	for _, e := range entities {
		x.Failures = append(x.Failures, &Failure{Kind: kind, URN: e.EntityURN(), Error: errString(err)})
	}
}

// RecordFailure records an entity that failed before it was put into a batch, e.g. its aspects could not be encoded.
func (x *IngestionResult) RecordFailure(kind types.EntityKind, entity Entity, err error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	r := x.kind(kind)
	r.Attempted++
	r.Failed++
	x.Failures = append(x.Failures, &Failure{Kind: kind, URN: entity.EntityURN(), Error: errString(err)})
}

// RecordSkipped records entities that are never sent.
func (x *IngestionResult) RecordSkipped(kind types.EntityKind, entities []Entity, reason string) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	r := x.kind(kind)
	r.Skipped += len(entities)
	for _, e := range entities {
		x.Failures = append(x.Failures, &Failure{Kind: kind, URN: e.EntityURN(), Error: "skipped: " + reason})
	}
}

func (x *IngestionResult) RecordDropped(record string, err error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	x.Dropped = append(x.Dropped, &Dropped{Record: record, Error: errString(err)})
}

func (x *IngestionResult) RecordExtractionError(err error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	x.Extraction = append(x.Extraction, errString(err))
}

func (x *IngestionResult) RecordCategoryError(category types.Category, err error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	x.Categories[category] = errString(err)
}

func (x *IngestionResult) RecordFailFast(kind types.EntityKind, err error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	x.FailFast[kind] = errString(err)
}

func (x *IngestionResult) SetRunError(err error) {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	x.RunError = errString(err)
}

func (x *IngestionResult) MarkCancelled() {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	x.Cancelled = true
}

func (x *IngestionResult) RecordExtracted(category types.Category, n int) {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	x.Extracted[category] += n
}

// Merge adds counters and errors of other into x. other must not be used concurrently.
func (x *IngestionResult) Merge(other *IngestionResult) {
	if other == nil {
		return
	}

	x.mutex.Lock()
	defer x.mutex.Unlock()

	for kind, r := range other.Kinds {
		x.kind(kind).add(r)
	}
	x.Failures = append(x.Failures, other.Failures...)
	x.Dropped = append(x.Dropped, other.Dropped...)
	x.Extraction = append(x.Extraction, other.Extraction...)
	for c, e := range other.Categories {
		x.Categories[c] = e
	}
	for c, n := range other.Extracted {
		x.Extracted[c] += n
	}
	for k, e := range other.FailFast {
		x.FailFast[k] = e
	}
	x.Cancelled = x.Cancelled || other.Cancelled
}

// Finish fixes elapsed time and success flag.
func (x *IngestionResult) Finish(now time.Time) {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	x.FinishedAt = now
	x.Elapsed = now.Sub(x.StartedAt)
	x.Success = x.succeeded()
}

func (x *IngestionResult) succeeded() bool {
	if x.RunError != "" || x.Cancelled {
		return false
	}
	if len(x.Categories) > 0 || len(x.Extraction) > 0 {
		return false
	}
	for _, r := range x.Kinds {
		if r.Failed > 0 || r.Skipped > 0 {
			return false
		}
	}
	return true
}

// Summary returns one line description of the result.
func (x *IngestionResult) Summary() string {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	status := "succeeded"
	switch {
	case x.RunError != "":
		status = "aborted"
	case x.Cancelled:
		status = "cancelled"
	case !x.succeeded():
		status = "failed"
	}

	kinds := make([]string, 0, len(x.Kinds))
	for kind := range x.Kinds {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)

	var parts []string
	for _, kind := range kinds {
		r := x.Kinds[types.EntityKind(kind)]
		parts = append(parts, fmt.Sprintf("%s=%d/%d", kind, r.Succeeded, r.Attempted+r.Skipped))
	}

	return fmt.Sprintf("run %s %s in %s (%s), failures=%d dropped=%d extraction_errors=%d",
		x.RunID, status, x.Elapsed.Round(time.Millisecond), strings.Join(parts, " "),
		len(x.Failures), len(x.Dropped), len(x.Extraction))
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
