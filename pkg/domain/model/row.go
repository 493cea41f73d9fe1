package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Row is one result row of a warehouse catalog query. Keys are upper-case column names.
type Row map[string]any

// NewRow creates Row with upper-cased keys. []byte values are converted to string.
func NewRow(columns []string, values []any) Row {
	row := make(Row, len(columns))
	for i, col := range columns {
		if i >= len(values) {
			break
		}
		v := values[i]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		row[strings.ToUpper(col)] = v
	}
	return row
}

// Rename returns a copy of the row with keys renamed by mapping. Keys are compared in upper case.
func (x Row) Rename(mapping map[string]string) Row {
	if len(mapping) == 0 {
		return x
	}

	renamed := make(Row, len(x))
	for k, v := range x {
		if to, ok := mapping[k]; ok {
			k = strings.ToUpper(to)
		}
		renamed[k] = v
	}
	return renamed
}

// Has returns true if the column exists and is not NULL.
func (x Row) Has(key string) bool {
	v, ok := x[strings.ToUpper(key)]
	return ok && v != nil
}

// String returns the column value as string. NULL or missing column is "".
func (x Row) String(key string) string {
	v, ok := x[strings.ToUpper(key)]
	if !ok || v == nil {
		return ""
	}

	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	case time.Time:
		return s.Format(time.RFC3339)
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Int64 returns the column value as int64. It returns nil for NULL, missing or unparsable value.
func (x Row) Int64(key string) *int64 {
	v, ok := x[strings.ToUpper(key)]
	if !ok || v == nil {
		return nil
	}

	var n int64
	switch i := v.(type) {
	case int64:
		n = i
	case int:
		n = int64(i)
	case int32:
		n = int64(i)
	case uint64:
		n = int64(i)
	case float64:
		n = int64(i)
	case float32:
		n = int64(i)
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(i), 64)
		if err != nil {
			return nil
		}
		n = int64(p)
	case []byte:
		p, err := strconv.ParseFloat(strings.TrimSpace(string(i)), 64)
		if err != nil {
			return nil
		}
		n = int64(p)
	default:
		return nil
	}
	return &n
}

// Bool returns the column value as bool. "YES", "Y", "TRUE", "T" and "1" are true.
func (x Row) Bool(key string) bool {
	v, ok := x[strings.ToUpper(key)]
	if !ok || v == nil {
		return false
	}

	switch b := v.(type) {
	case bool:
		return b
	case int64:
		return b != 0
	case int:
		return b != 0
	case float64:
		return b != 0
	default:
		switch strings.ToUpper(strings.TrimSpace(x.String(key))) {
		case "YES", "Y", "TRUE", "T", "1":
			return true
		}
		return false
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999 -0700",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// Time returns the column value as time. It returns nil for NULL, missing or unparsable value.
func (x Row) Time(key string) *time.Time {
	v, ok := x[strings.ToUpper(key)]
	if !ok || v == nil {
		return nil
	}

	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return nil
		}
		return &t
	case *time.Time:
		return t
	case int64:
		ts := time.Unix(t, 0).UTC()
		return &ts
	case float64:
		ts := time.Unix(int64(t), 0).UTC()
		return &ts
	}

	s := strings.TrimSpace(x.String(key))
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return &ts
		}
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		ts := time.Unix(int64(n), 0).UTC()
		return &ts
	}

	return nil
}
