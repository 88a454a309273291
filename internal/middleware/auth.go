package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/example/flourish/internal/models"
	"github.com/example/flourish/internal/utils"
)

const (
	userContextKey = "currentUserID"
	roleContextKey = "currentUserRole"
)

// AuthMiddleware validates JWT tokens and loads the authenticated user ID
// and role into context.
func AuthMiddleware(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization header")
		}

		claims, err := parseBearer(secret, authHeader)
		if err != nil {
			return err
		}

		setClaims(c, claims)
		return c.Next()
	}
}

// OptionalAuth loads the user when a valid token is present and otherwise
// lets the request through anonymously.
func OptionalAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if authHeader := c.Get("Authorization"); authHeader != "" {
			if claims, err := parseBearer(secret, authHeader); err == nil {
				setClaims(c, claims)
			}
		}
		return c.Next()
	}
}

// AdminOnly rejects callers without the admin role. It must run after
// AuthMiddleware.
func AdminOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !IsAdmin(c) {
			return fiber.NewError(fiber.StatusForbidden, "admin access required")
		}
		return c.Next()
	}
}

func parseBearer(secret, authHeader string) (utils.TokenClaims, error) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return utils.TokenClaims{}, fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
	}

	claims, err := utils.ParseToken(secret, parts[1])
	if err != nil {
		return utils.TokenClaims{}, fiber.NewError(fiber.StatusUnauthorized, "invalid token")
	}
	return claims, nil
}

func setClaims(c *fiber.Ctx, claims utils.TokenClaims) {
	c.Locals(userContextKey, claims.UserID)
	c.Locals(roleContextKey, claims.Role)
}

// GetCurrentUserID extracts the authenticated user ID from context.
func GetCurrentUserID(c *fiber.Ctx) (uuid.UUID, bool) {
	value := c.Locals(userContextKey)
	if value == nil {
		return uuid.Nil, false
	}

	if id, ok := value.(uuid.UUID); ok {
		return id, true
	}

	return uuid.Nil, false
}

// IsAdmin reports whether the authenticated user has the admin role.
func IsAdmin(c *fiber.Ctx) bool {
	role, _ := c.Locals(roleContextKey).(string)
	return role == models.RoleAdmin
}
