package docstore

import (
	"slices"
	"strings"
)

type Op int

const (
	OpEqual Op = iota
	OpArrayContains
)

type Filter struct {
	Field string
	Op    Op
	Value any
}

// Query selects documents of one collection.
type Query struct {
	Collection Path
	Filters    []Filter
	OrderBy    string
	Desc       bool
}

// From starts a query over collection c.
func From(c Path) Query { return Query{Collection: c} }

// Where adds an equality filter.
func (q Query) Where(field string, value any) Query {
	v, _ := normalizeValue(value)
	q.Filters = append(slices.Clone(q.Filters), Filter{Field: field, Op: OpEqual, Value: v})
	return q
}

// WhereContains keeps documents whose array field contains value.
func (q Query) WhereContains(field string, value string) Query {
	q.Filters = append(slices.Clone(q.Filters), Filter{Field: field, Op: OpArrayContains, Value: value})
	return q
}

// Order sorts by field ascending; ties break on document id.
func (q Query) Order(field string) Query {
	q.OrderBy, q.Desc = field, false
	return q
}

// OrderDesc sorts by field descending.
func (q Query) OrderDesc(field string) Query {
	q.OrderBy, q.Desc = field, true
	return q
}

func (q Query) matches(d Doc) bool {
	if d.Path.Parent() != q.Collection {
		return false
	}
	for _, f := range q.Filters {
		v, ok := d.Fields[f.Field]
		switch f.Op {
		case OpEqual:
			if !ok || !equalValues(v, f.Value) {
				return false
			}
		case OpArrayContains:
			arr, _ := v.([]string)
			s, _ := f.Value.(string)
			if !slices.Contains(arr, s) {
				return false
			}
		}
	}
	return true
}

// apply filters and sorts docs in place and returns the kept slice.
func (q Query) apply(docs []Doc) []Doc {
	out := docs[:0]
	for _, d := range docs {
		if q.matches(d) {
			out = append(out, d)
		}
	}
	slices.SortStableFunc(out, func(a, b Doc) int {
		if q.OrderBy != "" {
			c := compareValues(a.Fields[q.OrderBy], b.Fields[q.OrderBy])
			if q.Desc {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return strings.Compare(a.ID(), b.ID())
	})
	return out
}
