// Package handlers provides HTTP handler implementations for the public API.
//
// Every error leaves through fail/Fail as an ErrorResponse whose code is one
// of the constants in errors.go:
//
//	HTTP/1.1 415 Unsupported Media Type
//	{"request_id": "9f1c...", "code": "unsupported_format", "message": "unsupported file format"}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/complaints-backend/internal/http/middleware"
)

// ErrorResponse is the error envelope shared by all endpoints.
type ErrorResponse struct {
	// Echo of X-Request-ID, for matching a client error to server logs.
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	Code      string `json:"code" example:"validation_failed"`
	// Safe to show to users; never contains record contents or driver text.
	Message string `json:"message" example:"date is required"`
}

// fail writes the envelope and aborts. 5xx responses are also logged on the
// request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: middleware.RequestIDFrom(c),
		Code:      code,
		Message:   msg,
	})
}

// Fail lets the router reply with the standard envelope (404/405 handlers).
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// notModified answers a matching If-None-Match; ETag is already set.
func notModified(c *gin.Context) {
	c.Status(http.StatusNotModified)
}
