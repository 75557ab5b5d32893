package query

import "net/url"

// Query is everything a note listing needs besides the owner.
type Query struct {
	Filter Filter
	Sort   Sort
	Page   Page
}

// ParseSearch reads a search request: filters, an optional sort/order pair
// and pagination. Without a sort parameter results keep insertion order.
func ParseSearch(values url.Values) (Query, error) {
	filter, err := ParseFilter(values)
	if err != nil {
		return Query{}, err
	}

	var sort Sort
	if mode := values.Get("sort"); mode != "" {
		if sort, err = ParseSort(mode, values.Get("order")); err != nil {
			return Query{}, err
		}
	}

	return Query{Filter: filter, Sort: sort, Page: ParsePage(values)}, nil
}
