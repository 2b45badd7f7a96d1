package store

// Op is a comparison operator understood by every driver.
type Op string

const (
	// OpEq matches rows whose column equals the value. A nil value matches NULL.
	OpEq Op = "eq"
	// OpNeq matches rows whose column differs from the value.
	OpNeq Op = "neq"
	// OpContains matches array columns holding every listed element.
	OpContains Op = "cs"
)

// Condition is one predicate on a column, or, when Any is non-empty, a
// disjunction of predicates.
type Condition struct {
	Field string
	Op    Op
	Value any
	Any   []Condition
}

// Eq builds a field = value condition.
func Eq(field string, value any) Condition {
	return Condition{Field: field, Op: OpEq, Value: value}
}

// Neq builds a field <> value condition.
func Neq(field string, value any) Condition {
	return Condition{Field: field, Op: OpNeq, Value: value}
}

// Contains builds an array containment condition (field @> elements).
func Contains(field string, elements ...string) Condition {
	return Condition{Field: field, Op: OpContains, Value: elements}
}

// Or groups conditions so that a row matching any of them matches the group.
func Or(conds ...Condition) Condition {
	return Condition{Any: conds}
}

// IsGroup reports whether c is an Or group.
func (c Condition) IsGroup() bool {
	return len(c.Any) > 0
}

// Filters is a conjunction of conditions. The zero value matches every row.
type Filters []Condition

// Where builds a Filters value.
func Where(conds ...Condition) Filters {
	return Filters(conds)
}

// And returns a copy of f with conds appended.
func (f Filters) And(conds ...Condition) Filters {
	out := make(Filters, 0, len(f)+len(conds))
	out = append(out, f...)
	return append(out, conds...)
}

// fields lists every column referenced by f, including inside Or groups.
func (f Filters) fields() []string {
	var names []string
	var walk func([]Condition)
	walk = func(conds []Condition) {
		for _, c := range conds {
			if c.IsGroup() {
				walk(c.Any)
				continue
			}
			names = append(names, c.Field)
		}
	}
	walk(f)
	return names
}

// Change is one column assignment.
type Change struct {
	Field string
	Value any
}

// Changes is an ordered set of column assignments. Setting a field twice keeps
// the last value.
type Changes []Change

// Set starts a Changes value.
func Set(field string, value any) Changes {
	return Changes{{Field: field, Value: value}}
}

// Set returns a copy of c with field assigned to value.
func (c Changes) Set(field string, value any) Changes {
	out := make(Changes, 0, len(c)+1)
	for _, ch := range c {
		if ch.Field != field {
			out = append(out, ch)
		}
	}
	return append(out, Change{Field: field, Value: value})
}

// Map flattens the changes into a column → value map.
func (c Changes) Map() map[string]any {
	m := make(map[string]any, len(c))
	for _, ch := range c {
		m[ch.Field] = ch.Value
	}
	return m
}

// DefaultPageSize is the window size used when an offset is given without a limit.
const DefaultPageSize = 10

// QueryOptions controls ordering and windowing of a read. The zero value
// returns every row in store order.
type QueryOptions struct {
	OrderBy    string
	Descending bool
	Limit      int
	Offset     int
}

// window resolves the options into (offset, limit); limit 0 means unbounded.
// An offset without a limit selects rows [offset, offset+DefaultPageSize-1].
func (o QueryOptions) window() (offset, limit int) {
	if o.Offset > 0 {
		limit = o.Limit
		if limit <= 0 {
			limit = DefaultPageSize
		}
		return o.Offset, limit
	}
	if o.Limit > 0 {
		return 0, o.Limit
	}
	return 0, 0
}

// Query is the read request handed to a driver.
type Query struct {
	Table   string
	Filters Filters
	Options QueryOptions
}
