package devserver

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Error codes carried in failed envelopes.
const (
	codeValidation   = "VALIDATION"
	codeUnauthorized = "UNAUTHORIZED"
	codeNotFound     = "NOT_FOUND"
	codeTooLarge     = "PAYLOAD_TOO_LARGE"
	codeInternal     = "INTERNAL"
)

type envelope struct {
	Success   bool         `json:"success"`
	Data      interface{}  `json:"data,omitempty"`
	Message   string       `json:"message,omitempty"`
	Error     *errorDetail `json:"error,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
	Timestamp string       `json:"timestamp"`
}

type errorDetail struct {
	Code    string      `json:"code"`
	Details interface{} `json:"details,omitempty"`
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, envelope{
		Success:   true,
		Data:      data,
		RequestID: c.GetString(requestIDKey),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func respondError(c *gin.Context, status int, code, message string, details interface{}) {
	c.AbortWithStatusJSON(status, envelope{
		Success:   false,
		Message:   message,
		Error:     &errorDetail{Code: code, Details: details},
		RequestID: c.GetString(requestIDKey),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func badRequest(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, codeValidation, message, nil)
}

func notFound(c *gin.Context, what string) {
	respondError(c, http.StatusNotFound, codeNotFound, what+" not found", nil)
}
