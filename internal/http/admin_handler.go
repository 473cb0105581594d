package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hospital-auth/internal/domain"
	"hospital-auth/internal/service"
)

// AdminHandler expone la gestión de usuarios para el rol ADMIN.
type AdminHandler struct {
	logger *zap.Logger
	auth   *service.AuthService
}

func NewAdminHandler(logger *zap.Logger, auth *service.AuthService) *AdminHandler {
	return &AdminHandler{
		logger: logger,
		auth:   auth,
	}
}

type adminUserView struct {
	ID            string      `json:"id"`
	Name          string      `json:"name"`
	Email         string      `json:"email,omitempty"`
	Phone         string      `json:"phone,omitempty"`
	Avatar        string      `json:"avatar,omitempty"`
	Role          domain.Role `json:"role"`
	EmailVerified bool        `json:"emailVerified"`
	PhoneVerified bool        `json:"phoneVerified"`
	IsDeleted     bool        `json:"isDeleted"`
	CreatedAt     string      `json:"createdAt"`
}

func toAdminView(u domain.User) adminUserView {
	return adminUserView{
		ID:            u.ID,
		Name:          u.Name,
		Email:         u.Email,
		Phone:         u.Phone,
		Avatar:        u.Avatar,
		Role:          u.Role,
		EmailVerified: u.EmailVerifiedAt != nil,
		PhoneVerified: u.PhoneVerifiedAt != nil,
		IsDeleted:     u.IsDeleted,
		CreatedAt:     u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ListUsers maneja GET /api/protected/users.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.auth.ListUsers(c.Request.Context())
	if err != nil {
		h.logger.Error("list users failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal Server Error"})
		return
	}

	views := make([]adminUserView, 0, len(users))
	for _, u := range users {
		views = append(views, toAdminView(u))
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Users fetched successfully",
		"data":    views,
		"total":   len(views),
	})
}

// UpdateRole maneja PATCH /api/protected/users/update/:id.
func (h *AdminHandler) UpdateRole(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "User ID is required"})
		return
	}

	var req struct {
		Role domain.Role `json:"role"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Role == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Role is required"})
		return
	}

	user, err := h.auth.UpdateRole(c.Request.Context(), id, req.Role)
	if err != nil {
		h.respondAdminError(c, err, "update role failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "User role updated successfully",
		"data":    toAdminView(user),
	})
}

// SoftDeleteUser maneja PATCH /api/protected/users/delete.
func (h *AdminHandler) SoftDeleteUser(c *gin.Context) {
	var req struct {
		UserID string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "User ID is required"})
		return
	}

	user, err := h.auth.SoftDeleteUser(c.Request.Context(), req.UserID)
	if err != nil {
		h.respondAdminError(c, err, "soft delete failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "User deleted successfully",
		"data":    toAdminView(user),
	})
}

func (h *AdminHandler) respondAdminError(c *gin.Context, err error, fallback string) {
	var validationErr *service.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": validationErr.Reason})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "User not found"})
	default:
		h.logger.Error(fallback, zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal Server Error"})
	}
}
