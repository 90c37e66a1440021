package handler

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/mauth/internal/pkg/response"
	"github.com/xxxsen/mauth/internal/service"
	"github.com/xxxsen/mauth/internal/session"
)

type AuthHandler struct {
	auth     *service.AuthService
	sessions *session.Manager
}

func NewAuthHandler(auth *service.AuthService, sessions *session.Manager) *AuthHandler {
	return &AuthHandler{auth: auth, sessions: sessions}
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type passwordRequest struct {
	Password string `json:"password"`
}

// verifyEmailRequest takes the code either nested as
// {"code":{"verificationCode":"123456"}} or flat as {"code":"123456"}.
// The code itself may be a JSON string or number.
type verifyEmailRequest struct {
	Code json.RawMessage `json:"code"`
}

func (r verifyEmailRequest) verificationCode() (string, bool) {
	raw := r.Code
	var nested struct {
		VerificationCode json.RawMessage `json:"verificationCode"`
	}
	if err := json.Unmarshal(raw, &nested); err == nil {
		raw = nested.VerificationCode
	}
	return scalarCode(raw)
}

func scalarCode(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, msgBadRequest)
		return
	}
	res, err := h.auth.Signup(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		handleError(c, err)
		return
	}
	h.sessions.Write(c, res.Session)
	response.Success(c, http.StatusCreated, res.Message, res.User)
}

func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, msgBadRequest)
		return
	}
	code, ok := req.verificationCode()
	if !ok {
		response.Error(c, http.StatusBadRequest, msgBadRequest)
		return
	}
	res, err := h.auth.VerifyEmail(c.Request.Context(), code)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res.Message, res.User)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, msgBadRequest)
		return
	}
	res, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		handleError(c, err)
		return
	}
	h.sessions.Write(c, res.Session)
	response.Success(c, http.StatusOK, res.Message, res.User)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	res, err := h.auth.Logout(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	h.sessions.Clear(c)
	response.Success(c, http.StatusOK, res.Message, nil)
}

func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, msgBadRequest)
		return
	}
	res, err := h.auth.ForgotPassword(c.Request.Context(), req.Email)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res.Message, nil)
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req passwordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, msgBadRequest)
		return
	}
	res, err := h.auth.ResetPassword(c.Request.Context(), c.Param("token"), req.Password)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res.Message, nil)
}

func (h *AuthHandler) ValidateResetToken(c *gin.Context) {
	res, err := h.auth.ValidateResetToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res.Message, nil)
}

func (h *AuthHandler) ResendVerification(c *gin.Context) {
	res, err := h.auth.ResendVerification(c.Request.Context(), sessionToken(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res.Message, res.User)
}

func (h *AuthHandler) CheckAuth(c *gin.Context) {
	res, err := h.auth.CheckSession(c.Request.Context(), sessionToken(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, http.StatusOK, res.Message, res.User)
}
