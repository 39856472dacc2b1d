package apifeatures

import "net/url"

// Defaults injected by AliasTopTours.
const (
	TopToursLimit  = "5"
	TopToursSort   = "-ratingsAverage,price"
	TopToursFields = "name,price,ratingsAverage,summary,difficulty"
)

// AliasTopTours returns a copy of values with the "top 5 cheap tours"
// defaults filled in. Parameters the caller already set are kept.
func AliasTopTours(values url.Values) url.Values {
	aliased := make(url.Values, len(values)+3)
	for key, vals := range values {
		aliased[key] = append([]string(nil), vals...)
	}
	setDefault(aliased, ParamLimit, TopToursLimit)
	setDefault(aliased, ParamSort, TopToursSort)
	setDefault(aliased, ParamFields, TopToursFields)
	return aliased
}

func setDefault(values url.Values, key, value string) {
	if values.Has(key) {
		return
	}
	values.Set(key, value)
}
