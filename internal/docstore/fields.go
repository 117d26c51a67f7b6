package docstore

import (
	"fmt"
	"slices"
	"time"
)

// Fields is the content of a document. Values are string, bool, int64,
// float64, time.Time, []string or nil; int and float32 are widened on write.
type Fields map[string]any

// Doc is a stored document.
type Doc struct {
	Path       Path
	Fields     Fields
	Version    int64
	CreateTime time.Time
	UpdateTime time.Time
}

func (d Doc) ID() string { return d.Path.ID() }

func (d Doc) String(field string) string {
	s, _ := d.Fields[field].(string)
	return s
}

func (d Doc) Bool(field string) bool {
	b, _ := d.Fields[field].(bool)
	return b
}

func (d Doc) Time(field string) time.Time {
	t, _ := d.Fields[field].(time.Time)
	return t
}

func (d Doc) Strings(field string) []string {
	s, _ := d.Fields[field].([]string)
	return s
}

// transform is applied against the current field value during a write.
type transform interface {
	apply(current any, now func() time.Time) any
}

type arrayUnion []string

func (u arrayUnion) apply(current any, _ func() time.Time) any {
	cur, _ := current.([]string)
	out := slices.Clone(cur)
	for _, v := range u {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

type arrayRemove []string

func (r arrayRemove) apply(current any, _ func() time.Time) any {
	cur, _ := current.([]string)
	out := make([]string, 0, len(cur))
	for _, v := range cur {
		if !slices.Contains(r, v) {
			out = append(out, v)
		}
	}
	return out
}

type serverTimestamp struct{}

func (serverTimestamp) apply(_ any, now func() time.Time) any { return now() }

// ArrayUnion adds each value to an array field unless already present.
func ArrayUnion(values ...string) any { return arrayUnion(values) }

// ArrayRemove removes every occurrence of the values from an array field.
func ArrayRemove(values ...string) any { return arrayRemove(values) }

// ServerTimestamp is replaced by the store's commit time. Timestamps handed
// out by one store are strictly increasing.
var ServerTimestamp any = serverTimestamp{}

func normalizeValue(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, bool, int64, float64, transform:
		return v, nil
	case time.Time:
		return x.UTC(), nil
	case int:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case float32:
		return float64(x), nil
	case []string:
		return slices.Clone(x), nil
	}
	return nil, fmt.Errorf("docstore: unsupported field type %T", v)
}

// merge applies update on top of base and returns a new map.
func merge(base, update Fields, now func() time.Time) (Fields, error) {
	out := base.clone()
	if out == nil {
		out = Fields{}
	}
	for k, v := range update {
		nv, err := normalizeValue(v)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", k, err)
		}
		if t, ok := nv.(transform); ok {
			nv = t.apply(out[k], now)
		}
		out[k] = nv
	}
	return out, nil
}

func (f Fields) clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		if s, ok := v.([]string); ok {
			v = slices.Clone(s)
		}
		out[k] = v
	}
	return out
}

// compareValues orders values of the same type; mixed types order by type rank.
func compareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch x := a.(type) {
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		}
		return 1
	case int64:
		return cmpOrdered(float64(x), toFloat(b))
	case float64:
		return cmpOrdered(x, toFloat(b))
	case string:
		return cmpOrdered(x, b.(string))
	case time.Time:
		return x.Compare(b.(time.Time))
	}
	return 0
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case int64:
		return float64(x)
	case float64:
		return x
	}
	return 0
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case int64, float64:
		return 2
	case time.Time:
		return 3
	case string:
		return 4
	}
	return 5
}

func cmpOrdered[T int64 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func equalValues(a, b any) bool {
	if rank(a) != rank(b) || rank(a) == 5 {
		return false
	}
	return compareValues(a, b) == 0
}
