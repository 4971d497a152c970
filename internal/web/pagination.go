// SPDX-License-Identifier: MIT

package web

import (
	"fmt"
	"net/http"
	"strconv"
)

// Pagination describes one page of a post listing. PrevURL and NextURL
// are empty at the respective ends of the listing.
type Pagination struct {
	Page    int
	PerPage int
	Total   int
	PrevURL string
	NextURL string
}

// pageFromRequest reads the ?page query parameter. Missing or malformed
// values fall back to the first page.
func pageFromRequest(r *http.Request) int {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 1
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// newPagination builds navigation URLs against the request path. The
// total count comes from the store query that produced the page.
func newPagination(r *http.Request, page, perPage, total int) *Pagination {
	p := &Pagination{Page: page, PerPage: perPage, Total: total}
	if page > 1 {
		p.PrevURL = pageURL(r.URL.Path, page-1)
	}
	if page*perPage < total {
		p.NextURL = pageURL(r.URL.Path, page+1)
	}
	return p
}

func pageURL(path string, page int) string {
	if page <= 1 {
		return path
	}
	return fmt.Sprintf("%s?page=%d", path, page)
}
