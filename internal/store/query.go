package store

import (
	"fmt"
	"strings"

	"github.com/natours/api/internal/apifeatures"
)

// column describes how one API field maps onto SQL.
type column struct {
	// name is used in WHERE and ORDER BY.
	name string
	// expr is selected in place of name when set.
	expr string
	// array columns match when any element satisfies the comparison.
	array bool
}

func (c column) selectExpr() string {
	if c.expr != "" {
		return c.expr
	}
	return c.name
}

// resource is the field whitelist of one listable table. Fields outside
// it are ignored when filtering, sorting and projecting.
type resource struct {
	from    string
	fields  []string
	columns map[string]column
}

// predicate is an equality constraint added by the caller, such as the
// parent id of a nested listing.
type predicate struct {
	column string
	value  any
}

var sqlOperators = map[apifeatures.Operator]string{
	apifeatures.OpEqual:          "=",
	apifeatures.OpGreaterThan:    ">",
	apifeatures.OpGreaterOrEqual: ">=",
	apifeatures.OpLessThan:       "<",
	apifeatures.OpLessOrEqual:    "<=",
}

// mirrored turns "elem op $n" into "$n op' ANY(col)".
var mirrored = map[string]string{
	"=":  "=",
	">":  "<",
	">=": "<=",
	"<":  ">",
	"<=": ">=",
}

// selectStatement is a translated list query. fields lists the API fields
// in the order of the selected columns.
type selectStatement struct {
	sql    string
	args   []any
	fields []string
}

// buildSelect translates q into a parameterised SELECT over res.
func buildSelect(res resource, q apifeatures.Query, preds ...predicate) selectStatement {
	var (
		args  []any
		where []string
	)
	placeholder := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	for _, p := range preds {
		where = append(where, fmt.Sprintf("%s = %s", p.column, placeholder(p.value)))
	}
	for _, field := range q.Filter.Fields() {
		col, ok := res.columns[field]
		if !ok {
			continue
		}
		for _, cmp := range q.Filter[field] {
			op, ok := sqlOperators[cmp.Op]
			if !ok {
				continue
			}
			if col.array {
				where = append(where, fmt.Sprintf("%s %s ANY(%s)", placeholder(cmp.Value), mirrored[op], col.name))
				continue
			}
			where = append(where, fmt.Sprintf("%s %s %s", col.name, op, placeholder(cmp.Value)))
		}
	}

	fields := projectFields(res, q.Projection)
	exprs := make([]string, len(fields))
	for i, field := range fields {
		exprs[i] = res.columns[field].selectExpr()
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(exprs, ", "))
	b.WriteString(" FROM ")
	b.WriteString(res.from)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY ")
	b.WriteString(strings.Join(orderBy(res, q.Sort), ", "))

	if limit := q.Page.Limit(); limit > 0 {
		fmt.Fprintf(&b, " LIMIT %s OFFSET %s", placeholder(limit), placeholder(q.Page.Skip()))
	}

	return selectStatement{sql: b.String(), args: args, fields: fields}
}

// projectFields keeps the whitelisted fields the projection admits. The
// id is always returned.
func projectFields(res resource, p apifeatures.Projection) []string {
	fields := []string{"id"}
	for _, field := range res.fields {
		if field == "id" {
			continue
		}
		if p.Includes(field) {
			fields = append(fields, field)
		}
	}
	return fields
}

func orderBy(res resource, sort apifeatures.SortSpec) []string {
	var terms []string
	for _, sf := range sort {
		col, ok := res.columns[sf.Field]
		if !ok || col.array {
			continue
		}
		dir := "ASC"
		if sf.Desc {
			dir = "DESC"
		}
		terms = append(terms, col.name+" "+dir)
	}
	if len(terms) == 0 {
		terms = append(terms, res.columns[apifeatures.DefaultSortField].name+" ASC")
	}
	// Stable pages need a unique tiebreaker.
	return append(terms, res.columns["id"].name+" ASC")
}
