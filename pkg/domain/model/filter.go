package model

import (
	"log/slog"
	"strings"

	"github.com/gobwas/glob"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/catalogsync/pkg/domain/types"
)

type pattern struct {
	raw string
	g   glob.Glob
}

// PatternSet is a pair of include and exclude glob patterns. Matching is case-insensitive.
type PatternSet struct {
	include []pattern
	exclude []pattern
}

func compilePatterns(src []string) ([]pattern, error) {
	var patterns []pattern
	for _, s := range src {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		g, err := glob.Compile(strings.ToLower(s))
		if err != nil {
			return nil, goerr.Wrap(types.ErrInvalidOption, "invalid filter pattern", goerr.V("pattern", s), goerr.V("error", err.Error()))
		}
		patterns = append(patterns, pattern{raw: s, g: g})
	}
	return patterns, nil
}

func NewPatternSet(include, exclude []string) (PatternSet, error) {
	inc, err := compilePatterns(include)
	if err != nil {
		return PatternSet{}, err
	}
	exc, err := compilePatterns(exclude)
	if err != nil {
		return PatternSet{}, err
	}
	return PatternSet{include: inc, exclude: exc}, nil
}

func matchAny(patterns []pattern, names []string) bool {
	for _, p := range patterns {
		for _, name := range names {
			if p.g.Match(strings.ToLower(name)) {
				return true
			}
		}
	}
	return false
}

// Allow returns true if any of names matches no exclude pattern and (include is empty or any name matches include). Exclude wins on conflict.
func (x PatternSet) Allow(names ...string) bool {
	if matchAny(x.exclude, names) {
		return false
	}
	if len(x.include) == 0 {
		return true
	}
	return matchAny(x.include, names)
}

func (x PatternSet) raw() (include, exclude []string) {
	for _, p := range x.include {
		include = append(include, p.raw)
	}
	for _, p := range x.exclude {
		exclude = append(exclude, p.raw)
	}
	return
}

func (x PatternSet) LogValue() slog.Value {
	include, exclude := x.raw()
	return slog.GroupValue(
		slog.Any("include", include),
		slog.Any("exclude", exclude),
	)
}

// Filter decides which databases, schemas and tables are extracted.
type Filter struct {
	Databases PatternSet
	Schemas   PatternSet
	Tables    PatternSet
}

// Database returns true if the database should be extracted. Nil filter allows everything.
func (x *Filter) Database(name string) bool {
	if x == nil {
		return true
	}
	return x.Databases.Allow(name)
}

// Schema matches schema patterns against both "schema" and "database.schema".
func (x *Filter) Schema(database, schema string) bool {
	if x == nil {
		return true
	}
	return x.Schemas.Allow(schema, QualifiedName(database, schema))
}

// Table matches table patterns against both "table" and "database.schema.table".
func (x *Filter) Table(database, schema, table string) bool {
	if x == nil {
		return true
	}
	return x.Tables.Allow(table, QualifiedName(database, schema, table))
}

func (x *Filter) LogValue() slog.Value {
	if x == nil {
		return slog.StringValue("none")
	}
	return slog.GroupValue(
		slog.Any("databases", x.Databases),
		slog.Any("schemas", x.Schemas),
		slog.Any("tables", x.Tables),
	)
}
