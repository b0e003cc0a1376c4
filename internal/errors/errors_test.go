package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNotFound(t *testing.T) {
	err := NewNotFoundError("row")
	assert.True(t, IsNotFound(err))
	assert.True(t, IsNotFound(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsNotFound(fmt.Errorf("plain")))
	assert.False(t, IsNotFound(nil))
}

func TestStoreErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := NewStoreError("list posts", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "list posts")
}

func TestToHTTPError(t *testing.T) {
	status, body := ToHTTPError(NewNotFoundError("row"))
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["error"])

	status, body = ToHTTPError(NewValidationError([]string{"Title is required"}))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, []string{"Title is required"}, body["errors"])

	status, _ = ToHTTPError(NewUnauthorizedError("invalid credentials"))
	assert.Equal(t, http.StatusUnauthorized, status)

	status, body = ToHTTPError(fmt.Errorf("something leaked"))
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "internal server error", body["message"])
}
