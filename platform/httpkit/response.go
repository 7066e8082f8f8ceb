// Package httpkit provides HTTP response utilities.
// This is part of the platform layer and contains no business logic.
package httpkit

import (
	"errors"
	"net/http"

	"thor_backend/platform/apperr"

	"github.com/gin-gonic/gin"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// JSON sends a JSON response with the given status code.
func JSON(c *gin.Context, status int, payload interface{}) {
	c.JSON(status, payload)
}

// Error sends an error response with the given status code and message.
func Error(c *gin.Context, status int, message string, details interface{}) {
	c.JSON(status, ErrorResponse{Error: message, Details: details})
}

// OK sends a 200 OK response with the given payload.
func OK(c *gin.Context, payload interface{}) {
	c.JSON(http.StatusOK, payload)
}

// Action sends the uniform user-action envelope: {success: true, ...fields}.
func Action(c *gin.Context, fields gin.H) {
	body := gin.H{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// ActionFailed sends {success: false, error} with the status derived from err.
func ActionFailed(c *gin.Context, err error) {
	status, message, details := describe(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	body := gin.H{"success": false, "error": message}
	if details != nil {
		body["details"] = details
	}
	c.JSON(status, body)
}

// HandleError maps domain errors to HTTP responses.
// If the error is a typed *apperr.Error, it uses the error's Kind to determine
// the HTTP status code. Untyped errors are treated as internal failures and
// their text is not exposed.
// Returns true if an error was handled, false otherwise.
func HandleError(c *gin.Context, err error) bool {
	if err == nil {
		return false
	}

	status, message, details := describe(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, ErrorResponse{Error: message, Details: details})
	return true
}

func describe(err error) (int, string, interface{}) {
	var domainErr *apperr.Error
	if errors.As(err, &domainErr) {
		return domainErr.HTTPStatus(), domainErr.Message, domainErr.Details
	}
	return http.StatusInternalServerError, "internal error", nil
}
