package auth

import (
	"strings"

	"github.com/farm2markets/xprestrack/internal/apperr"
	"github.com/farm2markets/xprestrack/internal/httpx"
	"github.com/farm2markets/xprestrack/internal/model"
	"github.com/gofiber/fiber/v2"
)

// Middleware accepts the session cookie or an "Authorization: Bearer" header.
func Middleware(s *Sessions) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := c.Cookies(s.CookieName())
		if raw == "" {
			if h := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(h, "Bearer ") {
				raw = strings.TrimPrefix(h, "Bearer ")
			}
		}
		if raw == "" {
			return httpx.WriteError(c, apperr.Unauthorized("authentication required"))
		}

		claims, err := s.Parse(raw)
		if err != nil {
			return httpx.WriteError(c, err)
		}

		c.Locals(localsKey, &UserContext{
			UserID: claims.UserID,
			Email:  claims.Email,
			Name:   claims.Name,
			Role:   claims.Role,
		})
		return c.Next()
	}
}

func RequireRole(roles ...model.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, ok := FromFiber(c)
		if !ok {
			return httpx.WriteError(c, apperr.Unauthorized("authentication required"))
		}
		for _, r := range roles {
			if u.Role == r {
				return c.Next()
			}
		}
		return httpx.WriteError(c, apperr.Forbidden("insufficient role"))
	}
}
