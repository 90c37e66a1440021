package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/mauth/internal/middleware"
	"github.com/xxxsen/mauth/internal/pkg/errcode"
	appErr "github.com/xxxsen/mauth/internal/pkg/errors"
	"github.com/xxxsen/mauth/internal/pkg/response"
)

const msgBadRequest = "Invalid request body"

func sessionToken(c *gin.Context) string {
	return c.GetString(middleware.ContextSessionKey)
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	kind := appErr.KindOf(err)
	logger := logutil.GetLogger(c.Request.Context()).With(
		zap.String("request_id", c.GetString(middleware.ContextRequestIDKey)),
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("kind", kind.String()),
	)
	if kind == appErr.KindServer {
		logger.Error("request failed", zap.Error(err))
	} else {
		logger.Debug("request rejected", zap.Error(err))
	}
	response.Error(c, errcode.HTTPStatus(kind), appErr.PublicMessage(err))
}
