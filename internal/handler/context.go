package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"safedrive/internal/domain"
	"safedrive/internal/middleware"
	"safedrive/internal/service"
)

// callerFrom builds the authenticated principal from the request context.
func callerFrom(c *gin.Context) service.Caller {
	return service.Caller{
		UserID: c.GetString(middleware.ContextUserID),
		Role:   domain.Role(c.GetString(middleware.ContextRole)),
	}
}

// intQuery parses a non-negative integer query parameter.
func intQuery(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
