package memory

import (
	"fmt"
	"slices"

	"github.com/couchcryptid/flood-detection-service/internal/raster"
)

// matchFilter evaluates a metadata predicate. Scenes missing the property
// never match.
func matchFilter(f raster.Filter, props map[string]any) bool {
	v, ok := props[f.Property]
	if !ok {
		return false
	}
	switch f.Kind {
	case raster.FilterEq:
		return equalValues(v, f.Value)
	case raster.FilterNeq:
		return !equalValues(v, f.Value)
	case raster.FilterLt, raster.FilterLte, raster.FilterGt, raster.FilterGte:
		x, ok1 := toFloat(v)
		y, ok2 := toFloat(f.Value)
		if !ok1 || !ok2 {
			return false
		}
		switch f.Kind {
		case raster.FilterLt:
			return x < y
		case raster.FilterLte:
			return x <= y
		case raster.FilterGt:
			return x > y
		default:
			return x >= y
		}
	case raster.FilterListContains:
		return slices.ContainsFunc(toList(v), func(item any) bool { return equalValues(item, f.Value) })
	case raster.FilterIn:
		return slices.ContainsFunc(f.Values, func(item any) bool { return equalValues(v, item) })
	}
	return false
}

func equalValues(a, b any) bool {
	x, ok1 := toFloat(a)
	y, ok2 := toFloat(b)
	if ok1 && ok2 {
		return x == y
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func toList(v any) []any {
	switch l := v.(type) {
	case []any:
		return l
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out
	}
	return nil
}
