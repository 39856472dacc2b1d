package apifeatures

import (
	"math"
	"strconv"
	"strings"
)

const (
	// DefaultSortField orders listings oldest first when no sort is given.
	DefaultSortField = "createdAt"

	// VersionField is the internal revision counter hidden from default
	// projections.
	VersionField = "version"

	DefaultPage     = 1
	DefaultPageSize = 100
)

// SortField is one ordering key.
type SortField struct {
	Field string
	Desc  bool
}

// SortSpec is an ordered list of sort keys, most significant first.
type SortSpec []SortField

// DefaultSort is createdAt ascending.
func DefaultSort() SortSpec {
	return SortSpec{{Field: DefaultSortField}}
}

// ParseSort reads a comma separated list such as "-price,name". A leading
// '-' sorts that field descending.
func ParseSort(raw string) SortSpec {
	var spec SortSpec
	for _, token := range splitList(raw) {
		desc := strings.HasPrefix(token, "-")
		field := strings.TrimSpace(strings.TrimPrefix(token, "-"))
		if field == "" {
			continue
		}
		spec = append(spec, SortField{Field: field, Desc: desc})
	}
	if len(spec) == 0 {
		return DefaultSort()
	}
	return spec
}

// Projection selects which fields a listing returns. With Fields set only
// those are returned; otherwise everything except Exclude.
type Projection struct {
	Fields  []string
	Exclude []string
}

// Includes reports whether field is part of the projection.
func (p Projection) Includes(field string) bool {
	if len(p.Fields) > 0 {
		return contains(p.Fields, field)
	}
	return !contains(p.Exclude, field)
}

// ParseFields reads a comma separated field list. Without any listed field
// the projection is every field except VersionField. Fields prefixed with
// '-' are excluded; they are only honoured when no field is included.
func ParseFields(raw string) Projection {
	var include, exclude []string
	for _, token := range splitList(raw) {
		if strings.HasPrefix(token, "-") {
			if field := strings.TrimSpace(token[1:]); field != "" {
				exclude = append(exclude, field)
			}
			continue
		}
		include = append(include, token)
	}
	if len(include) > 0 {
		return Projection{Fields: include}
	}
	if !contains(exclude, VersionField) {
		exclude = append(exclude, VersionField)
	}
	return Projection{Exclude: exclude}
}

// PageSpec is a 1-based page of Size items.
type PageSpec struct {
	Page int
	Size int
}

// Skip is the number of items before the page. It saturates at
// math.MaxInt, which simply yields an empty page.
func (p PageSpec) Skip() int {
	if p.Page < 1 || p.Size < 1 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Size {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Size
}

// Limit is the maximum number of items on the page, zero meaning unbounded.
func (p PageSpec) Limit() int {
	if p.Size < 1 {
		return 0
	}
	return p.Size
}

// ParsePage reads the page and limit parameters. Missing, non-numeric and
// non-positive values fall back to page 1 and 100 items. There is no upper
// bound on the page size.
func ParsePage(page, limit string) PageSpec {
	return PageSpec{
		Page: parsePositive(page, DefaultPage),
		Size: parsePositive(limit, DefaultPageSize),
	}
}

func parsePositive(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value < 1 {
		return fallback
	}
	return value
}

func splitList(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		if item := strings.TrimSpace(part); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func contains(items []string, value string) bool {
	for _, item := range items {
		if item == value {
			return true
		}
	}
	return false
}
