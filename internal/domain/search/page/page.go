// Package page is the repository-facing view of one scan request's output.
package page

// Row is one raw wire document in a page, keyed by its backend id.
type Row struct {
	ID  string
	Raw map[string]any
}

// Page is one id-ordered batch of raw rows and its pagination metadata.
type Page struct {
	Rows []Row
	// Total and Offset are -1 when the backend does not report them.
	Total   int
	Offset  int
	HasMore bool
	// Source names the request issued (URL, command), for observers.
	Source string
	Body   []byte
}

// LastID returns the id of the last raw row, or "" for an empty page.
func (p *Page) LastID() string {
	if len(p.Rows) == 0 {
		return ""
	}
	return p.Rows[len(p.Rows)-1].ID
}
