package dto

import (
	"net/http"

	"github.com/orderledger/backend/internal/domain/shared"
)

// Response is the envelope for all API responses
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// Meta carries pagination metadata
type Meta struct {
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

// ErrorBody carries a structured error
type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details []ValidationDetail `json:"details,omitempty"`
}

// ValidationDetail describes one failed request field
type ValidationDetail struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data any) Response {
	return Response{Success: true, Data: data}
}

// NewSuccessResponseWithMeta creates a success response with pagination meta
func NewSuccessResponseWithMeta(data any, total int64, page, pageSize int) Response {
	return Response{
		Success: true,
		Data:    data,
		Meta:    &Meta{Total: total, Page: page, PageSize: pageSize},
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(code, message string) Response {
	return Response{Success: false, Error: &ErrorBody{Code: code, Message: message}}
}

// NewValidationErrorResponse creates an error response with field details
func NewValidationErrorResponse(message string, details []ValidationDetail) Response {
	return Response{
		Success: false,
		Error: &ErrorBody{
			Code:    shared.CodeValidation,
			Message: message,
			Details: details,
		},
	}
}

// GetHTTPStatus maps a domain error code to an HTTP status
func GetHTTPStatus(code string) int {
	switch code {
	case shared.CodeNotFound:
		return http.StatusNotFound
	case shared.CodeValidation:
		return http.StatusBadRequest
	case shared.CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case shared.CodeConcurrencyConflict:
		return http.StatusConflict
	case shared.CodeCorruptStream:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
