package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mauth/internal/middleware"
	"github.com/xxxsen/mauth/internal/session"
)

type RouterDeps struct {
	Auth     *AuthHandler
	Sessions *session.Manager
	Limiter  middleware.Limiter
	Metrics  http.Handler
}

func RegisterRoutes(root *gin.RouterGroup, deps RouterDeps) {
	limited := middleware.RateLimit(deps.Limiter)
	requireSession := middleware.SessionAuth(deps.Sessions)

	auth := root.Group("/api/auth")
	auth.POST("/signup", limited, deps.Auth.Signup)
	auth.POST("/verify-email", limited, deps.Auth.VerifyEmail)
	auth.POST("/login", limited, deps.Auth.Login)
	auth.POST("/logout", deps.Auth.Logout)
	auth.POST("/forgot-password", limited, deps.Auth.ForgotPassword)
	auth.POST("/reset-password/:token", limited, deps.Auth.ResetPassword)
	auth.GET("/reset-password/:token", limited, deps.Auth.ValidateResetToken)
	auth.POST("/resend-verification", requireSession, limited, deps.Auth.ResendVerification)
	auth.GET("/check-auth", requireSession, deps.Auth.CheckAuth)

	root.GET("/healthz", Health)
	if deps.Metrics != nil {
		root.GET("/metrics", gin.WrapH(deps.Metrics))
	}
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
