package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

type ListResponse struct {
	Data  any `json:"data"`
	Count int `json:"count"`
}

// ParseLimit reads ?limit=, falling back to DefaultLimit and capping at
// MaxLimit.
func ParseLimit(c *gin.Context) int {
	limit := DefaultLimit
	if s := c.Query("limit"); s != "" {
		if l, err := strconv.Atoi(s); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return limit
}
