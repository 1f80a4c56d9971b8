package api

import (
	"net/http"
	"strconv"
)

// paginationMeta holds pagination metadata for API responses.
type paginationMeta struct {
	Limit  uint64 `json:"limit"`
	Offset uint64 `json:"offset"`
	Total  int    `json:"total"`
}

// parsePaginationParams reads ?limit and ?offset, falling back to defaultLimit when
// the limit is missing or out of range.
func parsePaginationParams(r *http.Request, defaultLimit, maxLimit uint64) (limit, offset uint64) {
	query := r.URL.Query()

	limit, err := strconv.ParseUint(query.Get("limit"), 10, 64)
	if err != nil || limit == 0 || limit > maxLimit {
		limit = defaultLimit
	}

	// Negative or garbage offsets start from the top
	offset, err = strconv.ParseUint(query.Get("offset"), 10, 64)
	if err != nil {
		offset = 0
	}

	return limit, offset
}
