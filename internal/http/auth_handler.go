package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hospital-auth/internal/domain"
	"hospital-auth/internal/service"
)

// AuthHandler mantiene dependencias para los endpoints de cuentas.
type AuthHandler struct {
	logger *zap.Logger
	auth   *service.AuthService
}

// NewAuthHandler crea una instancia de AuthHandler con sus dependencias.
func NewAuthHandler(logger *zap.Logger, auth *service.AuthService) *AuthHandler {
	return &AuthHandler{
		logger: logger,
		auth:   auth,
	}
}

// Register maneja POST /api/public/user/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Name       string      `json:"name"`
		Email      string      `json:"email"`
		Phone      string      `json:"phone"`
		Password   string      `json:"password"`
		Role       domain.Role `json:"role"`
		Image      string      `json:"image"`
		Provider   string      `json:"provider"`
		ProviderID string      `json:"providerId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid register request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, message, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		Name:       req.Name,
		Email:      req.Email,
		Phone:      req.Phone,
		Password:   req.Password,
		Role:       req.Role,
		Avatar:     req.Image,
		Provider:   req.Provider,
		ProviderID: req.ProviderID,
	})
	if err != nil {
		h.respondError(c, err, "could not register user")
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": user.Public(), "message": message})
}

// Login maneja POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email      string `json:"email"`
		Phone      string `json:"phone"`
		Password   string `json:"password"`
		Name       string `json:"name"`
		Image      string `json:"image"`
		Provider   string `json:"provider"`
		ProviderID string `json:"providerId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid login request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	result, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Email:      req.Email,
		Phone:      req.Phone,
		Password:   req.Password,
		Name:       req.Name,
		Avatar:     req.Image,
		Provider:   req.Provider,
		ProviderID: req.ProviderID,
	})
	if err != nil {
		h.respondError(c, err, "could not login")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful",
		"user":    result.User,
		"tokens":  result.Tokens,
	})
}

// ConfirmVerification maneja POST /api/public/user/verify-email.
// Acepta email o phone; el nombre de la ruta viene del contrato original.
func (h *AuthHandler) ConfirmVerification(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
		Phone string `json:"phone"`
		Code  string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid verification request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	message, err := h.auth.ConfirmVerification(c.Request.Context(), req.Email, req.Phone, req.Code)
	if err != nil {
		h.respondError(c, err, "could not verify account")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message})
}

// ResendCode maneja POST /api/public/user/resend-verification-code.
func (h *AuthHandler) ResendCode(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
		Phone string `json:"phone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid resend request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	message, err := h.auth.ResendCode(c.Request.Context(), req.Email, req.Phone)
	if err != nil {
		h.respondError(c, err, "could not resend verification code")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message})
}

// RequestPasswordReset maneja POST /api/public/user/forgot-password.
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
		Phone string `json:"phone"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid forgot password request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	message, err := h.auth.RequestPasswordReset(c.Request.Context(), req.Email, req.Phone)
	if err != nil {
		h.respondError(c, err, "could not request password reset")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message})
}

// ConfirmPasswordReset maneja POST /api/public/user/forgot-password/confirm.
func (h *AuthHandler) ConfirmPasswordReset(c *gin.Context) {
	var req struct {
		Email           string `json:"email"`
		Phone           string `json:"phone"`
		Code            string `json:"code"`
		NewPassword     string `json:"newPassword"`
		ConfirmPassword string `json:"confirmPassword"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid password reset confirm request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	message, err := h.auth.ConfirmPasswordReset(c.Request.Context(), req.Email, req.Phone, req.Code, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		h.respondError(c, err, "could not reset password")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": message})
}

// UpdateProfile maneja PUT /api/auth/user/update-profile.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	claims, ok := GetAuthClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req struct {
		Name   *string `json:"name"`
		Phone  *string `json:"phone"`
		Avatar *string `json:"avatar"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid profile update request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.auth.UpdateProfile(c.Request.Context(), claims.UserID, req.Name, req.Phone, req.Avatar)
	if err != nil {
		h.respondError(c, err, "could not update profile")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Profile updated successfully",
		"user":    user.Public(),
	})
}

// respondError traduce la taxonomía de errores del workflow a códigos HTTP.
// Ninguna falla de validación o credencial escala como error interno.
func (h *AuthHandler) respondError(c *gin.Context, err error, fallback string) {
	var validationErr *service.ValidationError
	var conflictErr *service.ConflictError
	var rateLimitErr *service.RateLimitError

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Reason})
	case errors.As(err, &conflictErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":          "User already exists with this email, phone number, or provider.",
			"unverified":     conflictErr.Unverified,
			"providerLinked": conflictErr.ProviderLinked,
		})
	case errors.As(err, &rateLimitErr):
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":      rateLimitErr.Error(),
			"retryAfter": rateLimitErr.RetryAfterSeconds,
		})
	case errors.Is(err, service.ErrTooManyRequests):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found."})
	case errors.Is(err, service.ErrWrongPassword):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Wrong password."})
	case errors.Is(err, service.ErrNoPasswordSet):
		c.JSON(http.StatusBadRequest, gin.H{"error": "No password set. Use social login."})
	case errors.Is(err, service.ErrNotVerified):
		c.JSON(http.StatusForbidden, gin.H{"error": "Account not verified.", "unverified": true})
	case errors.Is(err, service.ErrCodeInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired verification code."})
	default:
		h.logger.Error(fallback, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
	}
}
