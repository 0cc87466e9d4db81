package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/canteen/backend/internal/domain/ordering"
	"github.com/canteen/backend/internal/domain/shared"
	"github.com/canteen/backend/internal/infrastructure/logger"
	"github.com/canteen/backend/internal/interfaces/http/dto"
	"github.com/canteen/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize, totalPages int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize, totalPages))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c), nil))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// BindError answers a failed ShouldBind call: 413 when the body limit
// tripped, 400 with field details otherwise
func (h *BaseHandler) BindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge,
			"Request body exceeds maximum allowed size")
		return
	}
	middleware.HandleValidationError(c, err)
}

// HandleError converts an application error into the response envelope.
// Ordering failures carry their fields as details; store failures and
// unknown errors are logged and answered without internals.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID := middleware.GetRequestID(c)

	if failure, ok := ordering.AsFailure(err); ok {
		if failure.Kind() == ordering.FailureStoreFailure {
			h.handleStoreFailure(c, err, requestID)
			return
		}
		code := dto.FailureErrorCode(failure.Kind())
		c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(
			code, failure.Error(), requestID, failureDetails(failure),
		))
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, domainErr.Message, requestID, nil))
		return
	}

	logger.FromContext(c.Request.Context()).Error("unhandled request error", zap.Error(err))
	c.JSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeInternal,
		"An unexpected error occurred",
		requestID,
		nil,
	))
}

func (h *BaseHandler) handleStoreFailure(c *gin.Context, err error, requestID string) {
	if errors.Is(err, shared.ErrConcurrencyConflict) {
		c.JSON(http.StatusConflict, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeConcurrencyConflict,
			shared.ErrConcurrencyConflict.Message,
			requestID,
			nil,
		))
		return
	}
	logger.FromContext(c.Request.Context()).Error("store failure", zap.Error(err))
	c.JSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeStoreFailure,
		"The order store is unavailable",
		requestID,
		nil,
	))
}

// failureDetails exposes a failure's tagged fields as a JSON object
func failureDetails(f ordering.Failure) any {
	raw, err := json.Marshal(f)
	if err != nil {
		return nil
	}
	var details map[string]any
	if err := json.Unmarshal(raw, &details); err != nil || len(details) == 0 {
		return nil
	}
	return details
}
