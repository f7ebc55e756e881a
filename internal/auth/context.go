package auth

import (
	"context"

	"github.com/farm2markets/xprestrack/internal/model"
	"github.com/gofiber/fiber/v2"
)

type userKey struct{}

const localsKey = "auth.user"

// UserContext is the authenticated operator attached to a request.
type UserContext struct {
	UserID string
	Email  string
	Name   string
	Role   model.Role
}

func WithUser(ctx context.Context, u *UserContext) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

func UserFromContext(ctx context.Context) (*UserContext, bool) {
	u, ok := ctx.Value(userKey{}).(*UserContext)
	return u, ok && u != nil
}

// GetUserID returns the acting user id, or "" for system callers such as the
// Kafka listener.
func GetUserID(ctx context.Context) string {
	if u, ok := UserFromContext(ctx); ok {
		return u.UserID
	}
	return ""
}

// FromFiber returns the user stored by Middleware.
func FromFiber(c *fiber.Ctx) (*UserContext, bool) {
	u, ok := c.Locals(localsKey).(*UserContext)
	return u, ok && u != nil
}

// Context returns the request context carrying the authenticated user.
func Context(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if u, ok := FromFiber(c); ok {
		ctx = WithUser(ctx, u)
	}
	return ctx
}
