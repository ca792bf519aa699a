package record

import "encoding/json"

// Listing is the accumulated result of a (possibly paginated) list call.
type Listing struct {
	Results     []*Record
	ResultCount int
	Pages       int
}

// Len returns the number of accumulated results.
func (l *Listing) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Results)
}

// Page is one listing envelope: results, result_count and optional cursor.
type Page struct {
	*Record
}

// AsPage views a record as a listing envelope.
func AsPage(r *Record) Page {
	if r == nil {
		r = New()
	}
	return Page{Record: r}
}

// Results returns the records of this page.
func (p Page) Results() []*Record {
	return p.Items("results")
}

// Cursor returns the continuation cursor, "" when absent.
func (p Page) Cursor() string {
	return p.String("cursor")
}

// ResultCount returns the reported total and whether it was present.
func (p Page) ResultCount() (int, bool) {
	switch v := p.Get("result_count").(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case json.Number:
		n, err := v.Int64()
		return int(n), err == nil
	}
	return 0, false
}
