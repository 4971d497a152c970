// SPDX-License-Identifier: MIT

package web

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageFromRequest(t *testing.T) {
	tests := []struct {
		url  string
		want int
	}{
		{"/explore", 1},
		{"/explore?page=3", 3},
		{"/explore?page=0", 1},
		{"/explore?page=-2", 1},
		{"/explore?page=abc", 1},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", tt.url, nil)
		assert.Equal(t, tt.want, pageFromRequest(r), "url=%q", tt.url)
	}
}

func TestNewPagination(t *testing.T) {
	r := httptest.NewRequest("GET", "/explore?page=2", nil)

	p := newPagination(r, 2, 10, 35)
	assert.Equal(t, "/explore", p.PrevURL)
	assert.Equal(t, "/explore?page=3", p.NextURL)

	// first page has no prev
	p = newPagination(r, 1, 10, 35)
	assert.Empty(t, p.PrevURL)
	assert.Equal(t, "/explore?page=2", p.NextURL)

	// last page has no next
	p = newPagination(r, 4, 10, 35)
	assert.Equal(t, "/explore?page=3", p.PrevURL)
	assert.Empty(t, p.NextURL)

	// single page has neither
	p = newPagination(r, 1, 10, 5)
	assert.Empty(t, p.PrevURL)
	assert.Empty(t, p.NextURL)
}
