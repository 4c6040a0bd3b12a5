package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/contactvault/contactvault/internal/service"
)

// AuthHandler exposes the account lifecycle endpoints.
type AuthHandler struct {
	Auth *service.AuthService
}

// NewAuthHandler creates the handler set.
func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{Auth: auth}
}

type signupRequest struct {
	FirstName string `json:"first_name" binding:"required,max=25"`
	LastName  string `json:"last_name" binding:"required,max=40"`
	Email     string `json:"email" binding:"required,email,max=50"`
	Phone     int64  `json:"phone" binding:"required"`
	Birthday  string `json:"birthday" binding:"required"`
	Password  string `json:"password" binding:"required,min=6,max=72"`
}

func (r signupRequest) toInput() (service.ContactInput, error) {
	birthday, err := time.Parse("2006-01-02", r.Birthday)
	if err != nil {
		return service.ContactInput{}, fmt.Errorf("parse birthday: %w", err)
	}
	return service.ContactInput{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Email:     r.Email,
		Phone:     r.Phone,
		Birthday:  birthday,
		Password:  r.Password,
	}, nil
}

// Signup registers a new account.
func (h *AuthHandler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid signup request."})
		return
	}
	input, err := req.toInput()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Birthday must be YYYY-MM-DD."})
		return
	}

	contact, err := h.Auth.Signup(c.Request.Context(), input, baseURL(c.Request))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"contact": service.NewContactView(contact),
		"detail":  "User created successfully. Check your e-mail for confirmation.",
	})
}

// Login exchanges credentials for an access/refresh pair.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Username string `form:"username" json:"username" binding:"required"`
		Password string `form:"password" json:"password" binding:"required"`
	}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "username and password are required."})
		return
	}

	resp, err := h.Auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RefreshToken rotates the presented refresh token.
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	raw, ok := bearerToken(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_refresh_token", "error_description": "Bearer token required."})
		return
	}

	resp, err := h.Auth.Refresh(c.Request.Context(), raw)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ConfirmEmail redeems the token from a confirmation link.
func (h *AuthHandler) ConfirmEmail(c *gin.Context) {
	message, err := h.Auth.ConfirmEmail(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message})
}

// RequestEmail re-sends the confirmation email.
func (h *AuthHandler) RequestEmail(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "A valid email is required."})
		return
	}

	message, err := h.Auth.ResendConfirmation(c.Request.Context(), req.Email, baseURL(c.Request))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message})
}

// ForgotPassword issues a reset token and emails it.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "email query parameter is required."})
		return
	}

	message, err := h.Auth.ForgotPassword(c.Request.Context(), email)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message})
}

// ResetPassword redeems a reset token and installs the new password.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Email              string `json:"email" binding:"required,email"`
		ResetPasswordToken string `json:"reset_password_token" binding:"required"`
		Password           string `json:"password" binding:"required,min=6,max=72"`
		ConfirmPassword    string `json:"confirm_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid reset request."})
		return
	}

	contact, err := h.Auth.ResetPassword(c.Request.Context(), req.Email, req.ResetPasswordToken, req.Password, req.ConfirmPassword)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, service.NewContactView(contact))
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func respondServiceError(c *gin.Context, err error) {
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		c.JSON(svcErr.Status, gin.H{"error": svcErr.Code, "error_description": svcErr.Detail})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Internal server error."})
}

func baseURL(r *http.Request) string {
	return fmt.Sprintf("%s://%s", schemeOnly(r), r.Host)
}

func schemeOnly(r *http.Request) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		if r.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}
	return scheme
}
