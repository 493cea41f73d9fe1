package model

import (
	"sort"
	"strconv"
	"time"

	"github.com/secmon-lab/catalogsync/pkg/domain/types"
)

// RunLog is a row of run history table in BigQuery.
type RunLog struct {
	ID         types.RunID `json:"id" bigquery:"id"`
	Platform   string      `json:"platform" bigquery:"platform"`
	StartedAt  time.Time   `json:"started_at" bigquery:"started_at"`
	FinishedAt time.Time   `json:"finished_at" bigquery:"finished_at"`
	Success    bool        `json:"success" bigquery:"success"`
	Kinds      []*KindLog  `json:"kinds" bigquery:"kinds"`
	Failures   int         `json:"failures" bigquery:"failures"`
	Dropped    int         `json:"dropped" bigquery:"dropped"`
	Extraction int         `json:"extraction_errors" bigquery:"extraction_errors"`
	RunError   string      `json:"run_error" bigquery:"run_error"`
	Summary    string      `json:"summary" bigquery:"summary"`
}

type KindLog struct {
	Kind      string `json:"kind" bigquery:"kind"`
	Attempted int    `json:"attempted" bigquery:"attempted"`
	Succeeded int    `json:"succeeded" bigquery:"succeeded"`
	Failed    int    `json:"failed" bigquery:"failed"`
	Skipped   int    `json:"skipped" bigquery:"skipped"`
	Retries   int    `json:"retries" bigquery:"retries"`
	Batches   int    `json:"batches" bigquery:"batches"`
}

// RunLogRaw is replaced RunLog with timestamps from time.Time to int64 micro seconds. BigQuery Storage Write API requires converting data to protocol buffer, and adapt.StorageSchemaToProto2Descriptor does not support time.Time.
type RunLogRaw struct {
	RunLog
	StartedAt  int64 `json:"started_at"`
	FinishedAt int64 `json:"finished_at"`
}

func (x *RunLog) Raw() *RunLogRaw {
	return &RunLogRaw{
		RunLog:     *x,
		StartedAt:  x.StartedAt.UnixMicro(),
		FinishedAt: x.FinishedAt.UnixMicro(),
	}
}

// NewRunLog converts a finished result to a run log row.
func NewRunLog(result *IngestionResult) *RunLog {
	summary := result.Summary()

	result.mutex.Lock()
	defer result.mutex.Unlock()

	log := &RunLog{
		ID:         result.RunID,
		Platform:   result.Platform.String(),
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		Success:    result.Success,
		Failures:   len(result.Failures),
		Dropped:    len(result.Dropped),
		Extraction: len(result.Extraction),
		RunError:   result.RunError,
		Summary:    summary,
	}

	for kind, r := range result.Kinds {
		log.Kinds = append(log.Kinds, &KindLog{
			Kind:      string(kind),
			Attempted: r.Attempted,
			Succeeded: r.Succeeded,
			Failed:    r.Failed,
			Skipped:   r.Skipped,
			Retries:   r.Retries,
			Batches:   r.Batches,
		})
	}
	sort.Slice(log.Kinds, func(i, j int) bool { return log.Kinds[i].Kind < log.Kinds[j].Kind })

	return log
}

// RunNotification is published to Pub/Sub when a run finishes.
type RunNotification struct {
	RunID      types.RunID                     `json:"run_id"`
	Platform   types.Platform                  `json:"platform"`
	Success    bool                            `json:"success"`
	Summary    string                          `json:"summary"`
	Kinds      map[types.EntityKind]KindResult `json:"kinds"`
	RunError   string                          `json:"run_error,omitempty"`
	StartedAt  time.Time                       `json:"started_at"`
	FinishedAt time.Time                       `json:"finished_at"`
}

// Attributes returns Pub/Sub message attributes of the notification.
func (x *RunNotification) Attributes() map[string]string {
	return map[string]string{
		"run_id":   x.RunID.String(),
		"platform": x.Platform.String(),
		"success":  strconv.FormatBool(x.Success),
	}
}

func NewRunNotification(result *IngestionResult) *RunNotification {
	summary := result.Summary()

	result.mutex.Lock()
	defer result.mutex.Unlock()

	kinds := make(map[types.EntityKind]KindResult, len(result.Kinds))
	for k, r := range result.Kinds {
		kinds[k] = *r
	}

	return &RunNotification{
		RunID:      result.RunID,
		Platform:   result.Platform,
		Success:    result.Success,
		Summary:    summary,
		Kinds:      kinds,
		RunError:   result.RunError,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
	}
}
