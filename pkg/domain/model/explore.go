package model

import (
	"time"
)

// ExploreRequest selects a level of the warehouse catalog to list. Database and Schema narrow the level: empty Database lists databases, empty Schema lists schemas of Database.
type ExploreRequest struct {
	Database string
	Schema   string
	Limit    int
}

const DefaultExploreLimit = 100

type ExploreLevel string

const (
	ExploreDatabases ExploreLevel = "database"
	ExploreSchemas   ExploreLevel = "schema"
	ExploreTables    ExploreLevel = "table"
)

func (x *ExploreRequest) Level() ExploreLevel {
	switch {
	case x.Database == "":
		return ExploreDatabases
	case x.Schema == "":
		return ExploreSchemas
	default:
		return ExploreTables
	}
}

type ExploreItem struct {
	Name      string     `json:"name"`
	Type      string     `json:"type,omitempty"`
	Comment   string     `json:"comment,omitempty"`
	RowCount  *int64     `json:"row_count,omitempty"`
	Bytes     *int64     `json:"bytes,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

type ExploreResult struct {
	Level ExploreLevel   `json:"level"`
	Items []*ExploreItem `json:"items"`
	// Total is the number of items before Limit is applied.
	Total int `json:"total"`
}
