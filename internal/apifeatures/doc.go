// Package apifeatures turns list-endpoint query strings into a query
// description: a filter, a sort order, a field projection and a page.
//
// The description is data only. Executing it is the store's job, which maps
// the API field names onto columns it knows and ignores everything else.
//
//	q := apifeatures.FromValues(r.URL.Query()).
//		Filter().
//		Sort().
//		LimitFields().
//		Paginate().
//		Query()
//
// Comparison operators use bracket syntax: ?price[gte]=500&duration[lt]=7.
package apifeatures
