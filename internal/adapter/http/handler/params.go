package handler

import (
	"vendor-payout-ledger/internal/adapter/http/middleware"
	"vendor-payout-ledger/pkg/apperror"
	"vendor-payout-ledger/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// callerID returns the authenticated subject or writes a 401.
func callerID(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.Subject(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, false
	}
	return id, true
}

// pathUUID parses a uuid path parameter or writes a 400.
func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Error(c, apperror.Validation("invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

// bindJSON binds and validates the body or writes a 400.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return false
	}
	return true
}

// bindQuery binds and validates query parameters or writes a 400.
func bindQuery(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return false
	}
	return true
}

func pageOrDefault(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	return page, pageSize
}
