package model_test

import (
	"errors"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/catalogsync/pkg/domain/model"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
)

func TestPatternSet(t *testing.T) {
	testCases := map[string]struct {
		include []string
		exclude []string
		names   []string
		expect  bool
	}{
		"empty allows all": {
			names:  []string{"ANALYTICS"},
			expect: true,
		},
		"include matches": {
			include: []string{"analytics*"},
			names:   []string{"ANALYTICS_DEV"},
			expect:  true,
		},
		"include does not match": {
			include: []string{"analytics*"},
			names:   []string{"SALES"},
			expect:  false,
		},
		"exclude wins over include": {
			include: []string{"*"},
			exclude: []string{"*_tmp"},
			names:   []string{"orders_tmp"},
			expect:  false,
		},
		"any name matches": {
			include: []string{"db.public"},
			names:   []string{"PUBLIC", "DB.PUBLIC"},
			expect:  true,
		},
		"blank pattern is ignored": {
			include: []string{" "},
			names:   []string{"x"},
			expect:  true,
		},
	}

	for title, tc := range testCases {
		t.Run(title, func(t *testing.T) {
			ps, err := model.NewPatternSet(tc.include, tc.exclude)
			gt.NoError(t, err)
			gt.Equal(t, ps.Allow(tc.names...), tc.expect)
		})
	}
}

func TestPatternSetInvalid(t *testing.T) {
	_, err := model.NewPatternSet([]string{"[a-"}, nil)
	gt.Error(t, err)
	gt.True(t, errors.Is(err, types.ErrInvalidOption))
}

func TestFilter(t *testing.T) {
	schemas, err := model.NewPatternSet(nil, []string{"INFORMATION_SCHEMA"})
	gt.NoError(t, err)
	tables, err := model.NewPatternSet([]string{"prod.sales.*", "users"}, nil)
	gt.NoError(t, err)

	filter := &model.Filter{Schemas: schemas, Tables: tables}

	t.Run("database allowed by empty set", func(t *testing.T) {
		gt.True(t, filter.Database("PROD"))
	})

	t.Run("schema excluded case-insensitively", func(t *testing.T) {
		gt.False(t, filter.Schema("PROD", "information_schema"))
		gt.True(t, filter.Schema("PROD", "SALES"))
	})

	t.Run("table matched by qualified name", func(t *testing.T) {
		gt.True(t, filter.Table("PROD", "SALES", "ORDERS"))
		gt.False(t, filter.Table("DEV", "SALES", "ORDERS"))
	})

	t.Run("table matched by bare name", func(t *testing.T) {
		gt.True(t, filter.Table("DEV", "PUBLIC", "USERS"))
	})

	t.Run("nil filter allows everything", func(t *testing.T) {
		var f *model.Filter
		gt.True(t, f.Database("x"))
		gt.True(t, f.Schema("x", "y"))
		gt.True(t, f.Table("x", "y", "z"))
	})
}
