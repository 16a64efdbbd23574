package middlewares

import (
	"github.com/gin-gonic/gin"
)

// ErrorBody is the payload of every error response.
type ErrorBody struct {
	Kind    string                 `json:"kind"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// RespondJSON writes a JSON response to the client.
func RespondJSON(c *gin.Context, data interface{}, status int) {
	c.JSON(status, data)
}

// HttpError aborts the request with an error envelope.
func HttpError(c *gin.Context, status int, kind, message string, details map[string]interface{}) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: ErrorBody{
		Kind:    kind,
		Message: message,
		Details: details,
	}})
}
