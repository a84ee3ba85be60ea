package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"
	"github.com/gin-gonic/gin"

	"github.com/quizdesk/exam-service/internal/config"
	"github.com/quizdesk/exam-service/internal/models"
	"github.com/quizdesk/exam-service/internal/repositories"
	"github.com/quizdesk/exam-service/internal/utils"
)

// CasdoorAuthMiddleware authenticates requests against the Casdoor identity
// provider and mirrors the principal into the local users table.
type CasdoorAuthMiddleware struct {
	client   *casdoorsdk.Client
	userRepo repositories.UserRepository
	logger   utils.Logger
}

func NewCasdoorAuthMiddleware(cfg config.CasdoorConfig, userRepo repositories.UserRepository, logger utils.Logger) *CasdoorAuthMiddleware {
	client := casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Cert,
		cfg.Application,
		cfg.Organization,
	)

	return &CasdoorAuthMiddleware{
		client:   client,
		userRepo: userRepo,
		logger:   logger,
	}
}

// AuthMiddleware validates the bearer token and puts the resolved user into
// the request context.
func (cam *CasdoorAuthMiddleware) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, ErrorResponse{
				Message: "authorization header missing",
			})
			c.Abort()
			return
		}

		tokenParts := strings.Split(authHeader, " ")
		if len(tokenParts) != 2 || strings.ToLower(tokenParts[0]) != "bearer" {
			c.JSON(http.StatusUnauthorized, ErrorResponse{
				Message: "invalid authorization header format",
			})
			c.Abort()
			return
		}

		claims, err := cam.client.ParseJwtToken(tokenParts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, ErrorResponse{
				Message: "invalid token",
				Details: err.Error(),
			})
			c.Abort()
			return
		}

		user, err := cam.resolveUser(c.Request.Context(), claims)
		if err != nil {
			c.JSON(http.StatusUnauthorized, ErrorResponse{
				Message: "failed to resolve user",
				Details: err.Error(),
			})
			c.Abort()
			return
		}

		c.Set("user_id", user.ID)
		c.Set("user", user)
		c.Set("user_role", user.Role)
		c.Set("user_email", user.Email)

		c.Next()
	}
}

// RequireRoleMiddleware rejects requests whose user lacks every required role.
// Admins pass any role check.
func (cam *CasdoorAuthMiddleware) RequireRoleMiddleware(requiredRoles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, exists := c.Get("user_role")
		if !exists {
			c.JSON(http.StatusForbidden, ErrorResponse{
				Message: "user role not found in context",
			})
			c.Abort()
			return
		}

		role, ok := userRole.(models.UserRole)
		if !ok {
			c.JSON(http.StatusForbidden, ErrorResponse{
				Message: "invalid user role format",
			})
			c.Abort()
			return
		}

		for _, required := range requiredRoles {
			if role == required || role == models.RoleAdmin {
				c.Next()
				return
			}
		}

		c.JSON(http.StatusForbidden, ErrorResponse{
			Message: fmt.Sprintf("insufficient permissions, required role: %v", requiredRoles),
		})
		c.Abort()
	}
}

// resolveUser turns validated claims into a local user row. The mirror is
// upserted on every authentication so role changes at the provider take
// effect on the next request.
func (cam *CasdoorAuthMiddleware) resolveUser(ctx context.Context, claims *casdoorsdk.Claims) (*models.User, error) {
	userID := claims.Id
	if userID == "" {
		return nil, fmt.Errorf("token carries no user id")
	}

	user := &models.User{
		ID:       userID,
		FullName: claims.User.DisplayName,
		Email:    claims.User.Email,
		Role:     mapCasdoorRole(claims.User.Type),
	}
	if claims.User.Avatar != "" {
		avatar := claims.User.Avatar
		user.AvatarURL = &avatar
	}
	if user.FullName == "" {
		user.FullName = claims.User.Name
	}

	if err := cam.userRepo.Upsert(ctx, nil, user); err != nil {
		// Auth still succeeds when the mirror write fails; the user just
		// keeps their previously stored role.
		cam.logger.Error("Failed to mirror user", "user_id", userID, "error", err)
		stored, getErr := cam.userRepo.GetByID(ctx, nil, userID)
		if getErr == nil {
			return stored, nil
		}
	}

	return user, nil
}

func mapCasdoorRole(casdoorType string) models.UserRole {
	switch strings.ToLower(casdoorType) {
	case "admin", "administrator":
		return models.RoleAdmin
	case "teacher", "instructor", "educator":
		return models.RoleTeacher
	case "student", "learner":
		return models.RoleStudent
	default:
		return models.RoleStudent
	}
}

// GetUserRoleFromContext extracts user role from Gin context
func GetUserRoleFromContext(c *gin.Context) (models.UserRole, error) {
	userRole, exists := c.Get("user_role")
	if !exists {
		return "", fmt.Errorf("user role not found in context")
	}

	role, ok := userRole.(models.UserRole)
	if !ok {
		return "", fmt.Errorf("invalid user role type in context")
	}

	return role, nil
}
