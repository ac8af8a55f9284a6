package transport

import (
	"fmt"
	"regexp"
)

// Filter is an equality predicate on one column.
type Filter struct {
	Column string
	Value  any
}

// Order sorts results by one column.
type Order struct {
	Column string
	Desc   bool
}

// Query describes a read. The zero value selects every column of every row
// in storage order.
type Query struct {
	Columns []string // empty means all columns
	Filters []Filter
	Order   []Order
	Limit   int // 0 means no limit
}

// Eq returns a copy of q with an additional equality filter.
func (q Query) Eq(column string, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Column: column, Value: value})
	return q
}

// OrderBy returns a copy of q with an additional sort key.
func (q Query) OrderBy(column string, desc bool) Query {
	q.Order = append(append([]Order(nil), q.Order...), Order{Column: column, Desc: desc})
	return q
}

// WithLimit returns a copy of q limited to n rows.
func (q Query) WithLimit(n int) Query {
	q.Limit = n
	return q
}

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidIdentifier reports whether name is a plain lower-case SQL identifier.
// Both transports refuse anything else so table and column names can never
// carry syntax into a query string or URL.
func ValidIdentifier(name string) bool {
	return identPattern.MatchString(name)
}

// Validate checks every identifier referenced by q.
func (q Query) Validate() error {
	for _, c := range q.Columns {
		if !ValidIdentifier(c) {
			return fmt.Errorf("transport: invalid column %q", c)
		}
	}
	for _, f := range q.Filters {
		if !ValidIdentifier(f.Column) {
			return fmt.Errorf("transport: invalid filter column %q", f.Column)
		}
	}
	for _, o := range q.Order {
		if !ValidIdentifier(o.Column) {
			return fmt.Errorf("transport: invalid order column %q", o.Column)
		}
	}
	if q.Limit < 0 {
		return fmt.Errorf("transport: negative limit %d", q.Limit)
	}
	return nil
}
