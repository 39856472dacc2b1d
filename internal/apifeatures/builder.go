package apifeatures

import "net/url"

// Query is a complete, not yet executed listing request.
type Query struct {
	Filter     Filter
	Sort       SortSpec
	Projection Projection
	Page       PageSpec
}

// Builder accumulates a Query stage by stage. Each stage touches a different
// part of the Query, so stages can be applied in any order.
type Builder struct {
	params Params
	query  Query
}

// New starts a Builder over already decoded params.
func New(params Params) *Builder {
	return &Builder{params: params}
}

// FromValues starts a Builder over a raw query string.
func FromValues(values url.Values) *Builder {
	return New(ParseParams(values))
}

func (b *Builder) Filter() *Builder {
	b.query.Filter = ParseFilter(b.params)
	return b
}

func (b *Builder) Sort() *Builder {
	b.query.Sort = ParseSort(b.params.Get(ParamSort))
	return b
}

func (b *Builder) LimitFields() *Builder {
	b.query.Projection = ParseFields(b.params.Get(ParamFields))
	return b
}

func (b *Builder) Paginate() *Builder {
	b.query.Page = ParsePage(b.params.Get(ParamPage), b.params.Get(ParamLimit))
	return b
}

// Query returns the description built so far.
func (b *Builder) Query() Query {
	return b.query
}

// Build applies all four stages to values.
func Build(values url.Values) Query {
	return FromValues(values).Filter().Sort().LimitFields().Paginate().Query()
}
