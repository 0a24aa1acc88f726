package odata

import (
	"net/url"
	"strconv"
	"strings"
)

// Query is the set of system query options sent with a list request.
type Query struct {
	Top     int
	Skip    int
	Filter  string
	OrderBy string
	Count   bool
}

// Values returns the options as url.Values. Zero Top/Skip and empty strings
// are omitted.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.Top > 0 {
		v.Set("$top", strconv.Itoa(q.Top))
	}
	if q.Skip > 0 {
		v.Set("$skip", strconv.Itoa(q.Skip))
	}
	if q.Filter != "" {
		v.Set("$filter", q.Filter)
	}
	if q.OrderBy != "" {
		v.Set("$orderby", q.OrderBy)
	}
	if q.Count {
		v.Set("$count", "true")
	}
	return v
}

// Encode renders the query string in a fixed option order, keeping the "$"
// prefixes literal and encoding spaces as %20.
func (q Query) Encode() string {
	v := q.Values()
	var b strings.Builder
	for _, k := range []string{"$top", "$skip", "$filter", "$orderby", "$count"} {
		val := v.Get(k)
		if val == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strings.ReplaceAll(url.QueryEscape(val), "+", "%20"))
	}
	return b.String()
}

// Endpoint appends the encoded query to path.
func (q Query) Endpoint(path string) string {
	enc := q.Encode()
	if enc == "" {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + enc
}
