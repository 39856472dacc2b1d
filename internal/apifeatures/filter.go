package apifeatures

import "sort"

// Operator tags a comparison inside a Filter.
type Operator string

const (
	OpEqual          Operator = "eq"
	OpGreaterThan    Operator = "gt"
	OpGreaterOrEqual Operator = "gte"
	OpLessThan       Operator = "lt"
	OpLessOrEqual    Operator = "lte"
)

var suffixOperators = map[string]Operator{
	"gt":  OpGreaterThan,
	"gte": OpGreaterOrEqual,
	"lt":  OpLessThan,
	"lte": OpLessOrEqual,
}

// Comparison is one operator-tagged condition on a field.
type Comparison struct {
	Op    Operator
	Value string
}

// Filter maps a field name to the conditions it must satisfy. All
// conditions are combined with AND.
type Filter map[string][]Comparison

// Fields returns the filtered field names in lexical order.
func (f Filter) Fields() []string {
	fields := make([]string, 0, len(f))
	for field := range f {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// ParseFilter builds a Filter from params, dropping the reserved keys.
// Bracket suffixes lt, lte, gt and gte become comparisons; other suffixes
// are ignored. params is left untouched.
func ParseFilter(params Params) Filter {
	filter := make(Filter)
	for field, p := range params {
		if _, reserved := reservedParams[field]; reserved {
			continue
		}

		var comparisons []Comparison
		if p.HasValue {
			comparisons = append(comparisons, Comparison{Op: OpEqual, Value: p.Value})
		}
		for suffix, value := range p.Ops {
			op, ok := suffixOperators[suffix]
			if !ok {
				continue
			}
			comparisons = append(comparisons, Comparison{Op: op, Value: value})
		}
		if len(comparisons) == 0 {
			continue
		}
		sort.Slice(comparisons, func(i, j int) bool {
			return comparisons[i].Op < comparisons[j].Op
		})
		filter[field] = comparisons
	}
	return filter
}
