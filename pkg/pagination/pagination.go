// Package pagination reads the page and limit query parameters of list
// endpoints.
package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// Limits bounds the page size of one kind of listing.
type Limits struct {
	Default int
	Max     int
}

var (
	// Standard covers the dashboard listings.
	Standard = Limits{Default: 20, Max: 100}
	// Audit allows longer pages for reading through an audit trail.
	Audit = Limits{Default: 50, Max: 500}
)

type Params struct {
	Page  int
	Limit int
}

// Parse reads page and limit with the Standard limits.
func Parse(c *gin.Context) Params {
	return Standard.Parse(c)
}

// Parse reads page and limit. A missing or malformed page is 1, a missing or
// malformed limit is l.Default and a limit above l.Max is clamped.
func (l Limits) Parse(c *gin.Context) Params {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.Query("limit"))
	switch {
	case err != nil || limit < 1:
		limit = l.Default
	case limit > l.Max:
		limit = l.Max
	}
	return Params{Page: page, Limit: limit}
}
