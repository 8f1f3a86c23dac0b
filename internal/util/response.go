package util

import (
	"github.com/gin-gonic/gin"
)

// ErrorBody is the error half of the response envelope.
type ErrorBody struct {
	Code        string `json:"code"`
	Description string `json:"error_description,omitempty"`
}

// Envelope wraps every JSON response: data on success, error otherwise.
type Envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorBody `json:"error,omitempty"`
}

// RespondOK writes data inside a success envelope.
func RespondOK(c *gin.Context, status int, data any) {
	c.JSON(status, Envelope{Success: true, Data: data})
}

// RespondError writes a failure envelope with a machine-readable code.
func RespondError(c *gin.Context, status int, code, description string) {
	c.JSON(status, Envelope{
		Success: false,
		Error:   &ErrorBody{Code: code, Description: description},
	})
}

// AbortWithError writes a failure envelope and stops the handler chain.
func AbortWithError(c *gin.Context, status int, code, description string) {
	RespondError(c, status, code, description)
	c.Abort()
}
