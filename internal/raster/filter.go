package raster

// FilterKind is a metadata predicate applied to collection scenes.
type FilterKind string

const (
	FilterEq           FilterKind = "eq"
	FilterNeq          FilterKind = "neq"
	FilterLt           FilterKind = "lt"
	FilterLte          FilterKind = "lte"
	FilterGt           FilterKind = "gt"
	FilterGte          FilterKind = "gte"
	FilterListContains FilterKind = "listContains"
	FilterIn           FilterKind = "in"
)

// Filter compares a named scene property against Value (a string or a
// number) or, for FilterIn, against a set of Values.
type Filter struct {
	Kind     FilterKind `json:"kind"`
	Property string     `json:"property"`
	Value    any        `json:"value,omitempty"`
	Values   []any      `json:"values,omitempty"`
}

// Eq matches scenes whose property equals v.
func Eq(property string, v any) Filter {
	return Filter{Kind: FilterEq, Property: property, Value: v}
}

// Neq matches scenes whose property differs from v.
func Neq(property string, v any) Filter {
	return Filter{Kind: FilterNeq, Property: property, Value: v}
}

// Lt matches scenes whose numeric property is below v.
func Lt(property string, v float64) Filter {
	return Filter{Kind: FilterLt, Property: property, Value: v}
}

// Lte matches scenes whose numeric property is at most v.
func Lte(property string, v float64) Filter {
	return Filter{Kind: FilterLte, Property: property, Value: v}
}

// Gt matches scenes whose numeric property is above v.
func Gt(property string, v float64) Filter {
	return Filter{Kind: FilterGt, Property: property, Value: v}
}

// Gte matches scenes whose numeric property is at least v.
func Gte(property string, v float64) Filter {
	return Filter{Kind: FilterGte, Property: property, Value: v}
}

// ListContains matches scenes whose list-valued property contains v.
func ListContains(property string, v any) Filter {
	return Filter{Kind: FilterListContains, Property: property, Value: v}
}

// In matches scenes whose property equals any of values.
func In(property string, values ...any) Filter {
	return Filter{Kind: FilterIn, Property: property, Values: values}
}
