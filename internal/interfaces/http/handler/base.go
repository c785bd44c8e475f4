// Package handler holds the gin handlers of the loan engine API.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/domain/lending"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/infrastructure/logger"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/interfaces/http/dto"
	"github.com/karanveerAujla1210/loan-managmenet-system-sub002/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

var errNoTenant = errors.New("tenant not found in request context")

// BaseHandler provides the response helpers shared by all handlers
type BaseHandler struct {
	// now returns the current time; business dates are derived from it
	now func() time.Time
}

func newBaseHandler(now func() time.Time) BaseHandler {
	if now == nil {
		now = time.Now
	}
	return BaseHandler{now: now}
}

// today is the current business date
func (h *BaseHandler) today() time.Time {
	return lending.DateOf(h.now())
}

// Success sends a 200 response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a 200 response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Created sends a 201 response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with an explicit status
func (h *BaseHandler) Error(c *gin.Context, status int, code, message string) {
	c.JSON(status, dto.NewErrorResponse(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// ValidationError sends a 400 response with per-field details
func (h *BaseHandler) ValidationError(c *gin.Context, details []dto.ValidationDetail) {
	c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
		"Request validation failed",
		middleware.GetRequestID(c),
		details,
	))
}

// HandleError maps err to a status and error body. Server errors and
// illegal transitions are logged with the request logger.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	status, info := dto.ErrorFor(err)
	info.RequestID = middleware.GetRequestID(c)

	log := logger.GetGinLogger(c)
	switch {
	case status >= http.StatusInternalServerError:
		log.Error("Request failed", zap.Error(err), zap.String("route", c.FullPath()))
	case lending.KindOf(err) == lending.KindIllegalTransition:
		log.Warn("Illegal bucket transition requested", zap.Error(err), zap.String("route", c.FullPath()))
	}
	c.JSON(status, dto.Response{Success: false, Error: &info})
}

// bindError answers a failed bind: validation failures list the bad fields,
// anything else is malformed input
func (h *BaseHandler) bindError(c *gin.Context, err error) {
	if middleware.IsValidationError(err) {
		h.ValidationError(c, middleware.ValidationDetails(err))
		return
	}
	h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Malformed request body")
}

// bindJSON binds the body into req and answers 400 on failure
func (h *BaseHandler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.bindError(c, err)
		return false
	}
	return true
}

// bindQuery binds the query string into req and answers 400 on failure
func (h *BaseHandler) bindQuery(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		if middleware.IsValidationError(err) {
			h.ValidationError(c, middleware.ValidationDetails(err))
		} else {
			h.BadRequest(c, "Malformed query parameters")
		}
		return false
	}
	return true
}

// tenant returns the authenticated tenant, answering 401 when absent
func (h *BaseHandler) tenant(c *gin.Context) (uuid.UUID, bool) {
	tenantID, ok := middleware.GetTenantID(c)
	if !ok {
		_ = c.Error(errNoTenant)
		h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Authentication required")
		return uuid.Nil, false
	}
	return tenantID, true
}

// loanID parses the :id path parameter, answering 400 when malformed
func (h *BaseHandler) loanID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.ValidationError(c, []dto.ValidationDetail{{Field: "id", Message: "Invalid UUID format"}})
		return uuid.Nil, false
	}
	return id, true
}

// convertError answers a failed DTO conversion
func (h *BaseHandler) convertError(c *gin.Context, err error) {
	var fieldErr *dto.FieldError
	if errors.As(err, &fieldErr) {
		h.ValidationError(c, []dto.ValidationDetail{fieldErr.Detail()})
		return
	}
	h.HandleError(c, err)
}
