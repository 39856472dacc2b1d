package apifeatures

import (
	"net/url"
	"strings"
)

// Reserved query parameters that drive sorting, projection and pagination
// rather than filtering.
const (
	ParamPage   = "page"
	ParamSort   = "sort"
	ParamLimit  = "limit"
	ParamFields = "fields"
)

var reservedParams = map[string]struct{}{
	ParamPage:   {},
	ParamSort:   {},
	ParamLimit:  {},
	ParamFields: {},
}

// Param is a single decoded query parameter. A plain key (difficulty=easy)
// sets Value; bracketed keys (price[gte]=500) collect into Ops keyed by the
// bracket suffix.
type Param struct {
	Value    string
	HasValue bool
	Ops      map[string]string
}

// Params is a query string decoded with bracket nesting.
type Params map[string]Param

// ParseParams decodes url.Values. Only the first value of a repeated key is
// kept.
func ParseParams(values url.Values) Params {
	params := make(Params, len(values))
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		name, suffix, nested := splitBracketKey(key)
		if name == "" {
			continue
		}
		p := params[name]
		if nested {
			if p.Ops == nil {
				p.Ops = make(map[string]string)
			}
			p.Ops[suffix] = vals[0]
		} else {
			p.Value = vals[0]
			p.HasValue = true
		}
		params[name] = p
	}
	return params
}

// Get returns the plain value of key, or "" when unset.
func (p Params) Get(key string) string {
	return p[key].Value
}

func splitBracketKey(key string) (name, suffix string, nested bool) {
	key = strings.TrimSpace(key)
	open := strings.IndexByte(key, '[')
	if open < 0 || !strings.HasSuffix(key, "]") {
		return key, "", false
	}
	suffix = key[open+1 : len(key)-1]
	if suffix == "" || strings.ContainsAny(suffix, "[]") {
		return "", "", false
	}
	return key[:open], suffix, true
}
