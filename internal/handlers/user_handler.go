package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/quizdesk/exam-service/internal/models"
	"github.com/quizdesk/exam-service/internal/repositories"
	"github.com/quizdesk/exam-service/internal/utils"
)

type UserHandler struct {
	BaseHandler
	userRepo repositories.UserRepository
}

func NewUserHandler(userRepo repositories.UserRepository, logger utils.Logger) *UserHandler {
	return &UserHandler{
		BaseHandler: NewBaseHandler(logger),
		userRepo:    userRepo,
	}
}

// GetMe returns the authenticated user
// @Summary Get current user
// @Tags users
// @Produce json
// @Success 200 {object} models.User
// @Router /users/me [get]
func (h *UserHandler) GetMe(c *gin.Context) {
	user, exists := c.Get("user")
	if !exists {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}
	c.JSON(http.StatusOK, user)
}

// GetUser returns one user from the local mirror
// @Summary Get user
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} ErrorResponse
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Invalid id parameter"})
		return
	}

	user, err := h.userRepo.GetByID(c.Request.Context(), nil, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			c.JSON(http.StatusNotFound, ErrorResponse{Message: "user not found"})
			return
		}
		h.logger.Error("Failed to get user", "user_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, user)
}

// ListUsers lists users from the local mirror, optionally by role
// @Summary List users
// @Tags users
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	filters := repositories.UserFilters{
		Query: c.Query("q"),
	}
	filters.Limit, filters.Offset = parsePagination(c)
	if v := c.Query("role"); v != "" {
		role := models.UserRole(v)
		filters.Role = &role
	}

	users, total, err := h.userRepo.List(c.Request.Context(), nil, filters)
	if err != nil {
		h.logger.Error("Failed to list users", "error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users": users,
		"total": total,
	})
}
