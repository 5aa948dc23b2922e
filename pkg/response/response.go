package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/capstone-hub-api/pkg/errors"
)

// DefaultMessage is used when a handler does not provide its own success message.
const DefaultMessage = "completed successfully"

// Envelope represents the common response contract.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data"`
}

// JSON sends a success response. An optional message overrides DefaultMessage.
func JSON(c *gin.Context, status int, data interface{}, message ...string) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	msg := DefaultMessage
	if len(message) > 0 && message[0] != "" {
		msg = message[0]
	}
	c.JSON(status, Envelope{Success: true, Message: msg, Data: data})
}

// OK responds with HTTP 200.
func OK(c *gin.Context, data interface{}, message ...string) {
	JSON(c, http.StatusOK, data, message...)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}, message ...string) {
	JSON(c, http.StatusCreated, data, message...)
}

// Error sends an error response converting the error to the common structure.
// Internal error details never reach the client.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	message := appErr.Message
	if appErr.Status >= http.StatusInternalServerError {
		message = appErrors.ErrInternal.Message
		_ = c.Error(err)
	}
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(appErr.Status, Envelope{Success: false, Message: message, Data: nil})
}

// Abort writes the error envelope and stops the handler chain.
func Abort(c *gin.Context, err error) {
	Error(c, err)
	c.Abort()
}
