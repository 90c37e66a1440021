package response

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mauth/internal/model"
)

type Envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	User    *model.PublicUser `json:"user,omitempty"`
}

func Success(c *gin.Context, status int, message string, user *model.PublicUser) {
	c.JSON(status, Envelope{Success: true, Message: message, User: user})
}

func Error(c *gin.Context, status int, message string) {
	c.JSON(status, Envelope{Success: false, Message: message})
}

func Abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Envelope{Success: false, Message: message})
}
