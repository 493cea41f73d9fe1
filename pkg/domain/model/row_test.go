package model_test

import (
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
)

func TestNewRow(t *testing.T) {
	row := model.NewRow(
		[]string{"name", "Comment", "bytes"},
		[]any{[]byte("ORDERS"), nil, int64(10)},
	)

	gt.Equal(t, row.String("NAME"), "ORDERS")
	gt.Equal(t, row.String("name"), "ORDERS")
	gt.False(t, row.Has("COMMENT"))
	gt.Equal(t, row.String("COMMENT"), "")
	gt.Equal(t, *row.Int64("BYTES"), int64(10))
}

func TestRowRename(t *testing.T) {
	row := model.Row{"CREATED_ON": "2024-01-02", "NAME": "DB"}
	renamed := row.Rename(map[string]string{"CREATED_ON": "CREATED"})

	gt.True(t, renamed.Has("CREATED"))
	gt.False(t, renamed.Has("CREATED_ON"))
	gt.Equal(t, renamed.String("NAME"), "DB")
	gt.True(t, row.Has("CREATED_ON"))
}

func TestRowInt64(t *testing.T) {
	row := model.Row{"A": "42", "B": 3.0, "C": "n/a", "D": nil}
	gt.Equal(t, *row.Int64("A"), int64(42))
	gt.Equal(t, *row.Int64("B"), int64(3))
	gt.True(t, row.Int64("C") == nil)
	gt.True(t, row.Int64("D") == nil)
	gt.True(t, row.Int64("MISSING") == nil)
}

func TestRowBool(t *testing.T) {
	row := model.Row{"A": "YES", "B": "no", "C": true, "D": int64(0), "E": "t"}
	gt.True(t, row.Bool("A"))
	gt.False(t, row.Bool("B"))
	gt.True(t, row.Bool("C"))
	gt.False(t, row.Bool("D"))
	gt.True(t, row.Bool("E"))
	gt.False(t, row.Bool("MISSING"))
}

func TestRowTime(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	row := model.Row{
		"NATIVE": ts,
		"TEXT":   "2024-03-01T12:00:00Z",
		"EPOCH":  ts.Unix(),
		"BAD":    "yesterday",
		"ZERO":   time.Time{},
	}

	gt.True(t, row.Time("NATIVE").Equal(ts))
	gt.True(t, row.Time("TEXT").Equal(ts))
	gt.True(t, row.Time("EPOCH").Equal(ts))
	gt.True(t, row.Time("BAD") == nil)
	gt.True(t, row.Time("ZERO") == nil)
}
