// Package errors provides the error taxonomy shared by the store, the data
// manager and the HTTP layer.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is implemented by every error the HTTP layer knows how to render.
type APIError interface {
	error
	HTTPStatus() int
	Code() string
}

// BaseError is the common implementation of APIError.
type BaseError struct {
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	ErrorCode  string `json:"code"`
}

func (e *BaseError) Error() string {
	return e.Message
}

func (e *BaseError) HTTPStatus() int {
	return e.StatusCode
}

func (e *BaseError) Code() string {
	return e.ErrorCode
}

// NotFoundError covers both a genuinely missing row and a row the access
// policy refuses to expose - the backing store cannot tell them apart, so
// neither do we.
type NotFoundError struct {
	BaseError
	Resource string
}

func NewNotFoundError(resource string) *NotFoundError {
	return &NotFoundError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("%s not found", resource),
			StatusCode: http.StatusNotFound,
			ErrorCode:  "NOT_FOUND",
		},
		Resource: resource,
	}
}

// IsNotFound reports whether err is a NotFoundError anywhere in its chain.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ValidationError carries every failed rule at once, one message per column,
// rather than failing fast on the first.
type ValidationError struct {
	BaseError
	Messages []string
}

func NewValidationError(messages []string) *ValidationError {
	msg := "validation failed"
	if len(messages) > 0 {
		msg = messages[0]
	}
	return &ValidationError{
		BaseError: BaseError{
			Message:    msg,
			StatusCode: http.StatusBadRequest,
			ErrorCode:  "VALIDATION_ERROR",
		},
		Messages: messages,
	}
}

// StoreError wraps a failure from the backing database. The message is passed
// through verbatim; callers surface it, they do not retry.
type StoreError struct {
	BaseError
	Op       string
	Original error
}

func NewStoreError(op string, original error) *StoreError {
	return &StoreError{
		BaseError: BaseError{
			Message:    fmt.Sprintf("%s: %v", op, original),
			StatusCode: http.StatusBadGateway,
			ErrorCode:  "STORE_ERROR",
		},
		Op:       op,
		Original: original,
	}
}

func (e *StoreError) Unwrap() error {
	return e.Original
}

// UnauthorizedError represents a missing or invalid session.
type UnauthorizedError struct {
	BaseError
}

func NewUnauthorizedError(message string) *UnauthorizedError {
	if message == "" {
		message = "authentication required"
	}
	return &UnauthorizedError{
		BaseError: BaseError{
			Message:    message,
			StatusCode: http.StatusUnauthorized,
			ErrorCode:  "UNAUTHORIZED",
		},
	}
}

// PermissionDeniedError represents a valid session lacking the admin role.
type PermissionDeniedError struct {
	BaseError
}

func NewPermissionDeniedError() *PermissionDeniedError {
	return &PermissionDeniedError{
		BaseError: BaseError{
			Message:    "permission denied",
			StatusCode: http.StatusForbidden,
			ErrorCode:  "PERMISSION_DENIED",
		},
	}
}

// BadRequestError represents a malformed request.
type BadRequestError struct {
	BaseError
}

func NewBadRequestError(message string) *BadRequestError {
	return &BadRequestError{
		BaseError: BaseError{
			Message:    message,
			StatusCode: http.StatusBadRequest,
			ErrorCode:  "BAD_REQUEST",
		},
	}
}

// ToHTTPError converts any error to a status code and response body.
func ToHTTPError(err error) (int, map[string]any) {
	if err == nil {
		return http.StatusOK, nil
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.HTTPStatus(), map[string]any{
			"error":   ve.Code(),
			"message": ve.Error(),
			"errors":  ve.Messages,
		}
	}

	var ae APIError
	if errors.As(err, &ae) {
		return ae.HTTPStatus(), map[string]any{
			"error":   ae.Code(),
			"message": ae.Error(),
		}
	}

	return http.StatusInternalServerError, map[string]any{
		"error":   "INTERNAL_ERROR",
		"message": "internal server error",
	}
}
