package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mauth/internal/pkg/errcode"
	appErr "github.com/xxxsen/mauth/internal/pkg/errors"
	"github.com/xxxsen/mauth/internal/pkg/response"
	"github.com/xxxsen/mauth/internal/session"
)

const (
	ContextUserIDKey  = "user_id"
	ContextSessionKey = "session_token"
)

// SessionAuth rejects requests without a valid session cookie. On success
// the user ID and the raw token are stored on the context.
func SessionAuth(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessions.Read(c)
		userID, err := sessions.Verify(token, time.Now())
		if err != nil {
			response.Abort(c, errcode.HTTPStatus(appErr.KindOf(err)), appErr.PublicMessage(err))
			return
		}
		c.Set(ContextUserIDKey, userID)
		c.Set(ContextSessionKey, token)
		c.Next()
	}
}
