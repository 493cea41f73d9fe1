package model_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
)

func datasets(names ...string) []model.Entity {
	var entities []model.Entity
	for _, name := range names {
		entities = append(entities, &model.DatasetMetadata{
			URN:           types.URN("urn:li:dataset:(urn:li:dataPlatform:test," + name + ",PROD)"),
			QualifiedName: name,
		})
	}
	return entities
}

func TestIngestionResultRecordBatch(t *testing.T) {
	now := time.Now()
	result := model.NewIngestionResult("run-1", "test", now)

	result.RecordBatch(types.KindDataset, datasets("a", "b"), true, 1, nil)
	result.RecordBatch(types.KindDataset, datasets("c"), false, 3, errors.New("boom"))
	result.RecordSkipped(types.KindDataset, datasets("d", "e"), "fail-fast")

	r := result.Kind(types.KindDataset)
	gt.Equal(t, r.Attempted, 3)
	gt.Equal(t, r.Succeeded, 2)
	gt.Equal(t, r.Failed, 1)
	gt.Equal(t, r.Skipped, 2)
	gt.Equal(t, r.Retries, 4)
	gt.Equal(t, r.Batches, 2)
	gt.A(t, result.Failures).Length(3)
	gt.Equal(t, result.Failures[0].Error, "boom")

	result.Finish(now.Add(time.Second))
	gt.False(t, result.Success)
	gt.Equal(t, result.Elapsed, time.Second)
}

func TestIngestionResultSuccess(t *testing.T) {
	now := time.Now()

	t.Run("all delivered", func(t *testing.T) {
		result := model.NewIngestionResult("run-1", "test", now)
		result.RecordBatch(types.KindDataset, datasets("a"), true, 0, nil)
		result.RecordDropped("table:x", errors.New("bad row"))
		result.Finish(now)
		gt.True(t, result.Success)
	})

	t.Run("extraction error", func(t *testing.T) {
		result := model.NewIngestionResult("run-1", "test", now)
		result.RecordExtractionError(errors.New("denied"))
		result.Finish(now)
		gt.False(t, result.Success)
	})

	t.Run("run error", func(t *testing.T) {
		result := model.NewIngestionResult("run-1", "test", now)
		result.SetRunError(errors.New("unreachable"))
		result.Finish(now)
		gt.False(t, result.Success)
		gt.True(t, strings.Contains(result.Summary(), "aborted"))
	})

	t.Run("cancelled", func(t *testing.T) {
		result := model.NewIngestionResult("run-1", "test", now)
		result.MarkCancelled()
		result.Finish(now)
		gt.False(t, result.Success)
		gt.True(t, strings.Contains(result.Summary(), "cancelled"))
	})
}

func TestIngestionResultMerge(t *testing.T) {
	now := time.Now()
	total := model.NewIngestionResult("run-1", "test", now)

	structural := model.NewIngestionResult("run-1", "test", now)
	structural.RecordBatch(types.KindDataset, datasets("a", "b"), true, 0, nil)
	structural.RecordExtracted(types.CategoryStructural, 3)
	structural.RecordDropped("table:c", errors.New("bad"))

	access := model.NewIngestionResult("run-1", "test", now)
	access.RecordCategoryError(types.CategoryAccessControl, errors.New("refused"))

	total.Merge(structural)
	total.Merge(access)
	total.Merge(nil)

	gt.Equal(t, total.Kind(types.KindDataset).Succeeded, 2)
	gt.Equal(t, total.Extracted[types.CategoryStructural], 3)
	gt.A(t, total.Dropped).Length(1)
	gt.Equal(t, total.Categories[types.CategoryAccessControl], "refused")

	total.Finish(now)
	gt.False(t, total.Success)
}

func TestRunLog(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	result := model.NewIngestionResult("run-1", "test", now)
	result.RecordBatch(types.KindUser, nil, true, 0, nil)
	result.RecordBatch(types.KindDataset, datasets("a"), true, 0, nil)
	result.Finish(now.Add(time.Minute))

	log := model.NewRunLog(result)
	gt.Equal(t, log.ID, types.RunID("run-1"))
	gt.A(t, log.Kinds).Length(2)
	gt.Equal(t, log.Kinds[0].Kind, "dataset")
	gt.True(t, log.Success)

	raw := log.Raw()
	gt.Equal(t, raw.StartedAt, now.UnixMicro())
	gt.Equal(t, raw.FinishedAt, now.Add(time.Minute).UnixMicro())
}
