package helper_util

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 500
)

// GetPaginationParams reads limit/offset from the query. limit is clamped to
// MaxPageLimit; non-numeric, non-positive limits and negative offsets are errors.
func GetPaginationParams(c *gin.Context) (limit int, offset int, err error) {
	limit, err = strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(DefaultPageLimit)))
	if err != nil {
		return 0, 0, fmt.Errorf("limit: %w", err)
	}
	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		return 0, 0, fmt.Errorf("offset: %w", err)
	}
	if limit <= 0 || offset < 0 {
		return 0, 0, fmt.Errorf("limit must be positive and offset non-negative, got %d/%d", limit, offset)
	}
	return min(limit, MaxPageLimit), offset, nil
}

// Page returns the [offset, offset+limit) slice of items, empty when offset is past the end.
func Page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	return items[offset:min(offset+limit, len(items))]
}
