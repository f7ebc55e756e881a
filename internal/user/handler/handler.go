package handler

import (
	"github.com/farm2markets/xprestrack/internal/apperr"
	"github.com/farm2markets/xprestrack/internal/auth"
	"github.com/farm2markets/xprestrack/internal/httpx"
	"github.com/farm2markets/xprestrack/internal/logger"
	"github.com/farm2markets/xprestrack/internal/model"
	"github.com/farm2markets/xprestrack/internal/user"
	"github.com/farm2markets/xprestrack/internal/user/dto"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type UserHandler struct {
	uc       user.UseCase
	sessions *auth.Sessions
	logger   logger.ZapLogger
}

func NewUserHandler(uc user.UseCase, sessions *auth.Sessions, log logger.ZapLogger) *UserHandler {
	return &UserHandler{
		uc:       uc,
		sessions: sessions,
		logger:   log,
	}
}

// RegisterPublicRoutes mounts the routes reachable without a session.
func (h *UserHandler) RegisterPublicRoutes(r fiber.Router) {
	r.Post("/auth/login", h.Login)
	r.Post("/auth/logout", h.Logout)
}

func (h *UserHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/auth/me", h.Me)
	r.Patch("/users/me/settings", h.UpdateSettings)
}

type profile struct {
	*model.User
	QuickBooksConnected bool `json:"quickbooksConnected"`
}

func toProfile(u *model.User) profile {
	return profile{User: u, QuickBooksConnected: u.QuickBooks != nil && u.QuickBooks.Connected}
}

func (h *UserHandler) Login(c *fiber.Ctx) error {
	var input dto.LoginInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid request body")
	}

	u, err := h.uc.Login(c.UserContext(), &input)
	if err != nil {
		return httpx.WriteError(c, err)
	}

	token, expires, err := h.sessions.Issue(u)
	if err != nil {
		h.logger.Error("failed to issue session", zap.String("user_id", u.ID), zap.Error(err))
		return httpx.WriteError(c, err)
	}
	h.sessions.SetCookie(c, token, expires)
	return httpx.OK(c, "logged in", toProfile(u))
}

func (h *UserHandler) Logout(c *fiber.Ctx) error {
	h.sessions.ClearCookie(c)
	return httpx.OK(c, "logged out", nil)
}

func (h *UserHandler) Me(c *fiber.Ctx) error {
	current, ok := auth.FromFiber(c)
	if !ok {
		return httpx.WriteError(c, apperr.Unauthorized("authentication required"))
	}
	u, err := h.uc.GetByID(auth.Context(c), current.UserID)
	if err != nil {
		return httpx.WriteError(c, err)
	}
	return httpx.OK(c, "current user", toProfile(u))
}

func (h *UserHandler) UpdateSettings(c *fiber.Ctx) error {
	current, ok := auth.FromFiber(c)
	if !ok {
		return httpx.WriteError(c, apperr.Unauthorized("authentication required"))
	}
	var input dto.SettingsInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid request body")
	}

	u, err := h.uc.UpdateSettings(auth.Context(c), current.UserID, &input)
	if err != nil {
		h.logger.Warn("failed to update settings", zap.String("user_id", current.UserID), zap.Error(err))
		return httpx.WriteError(c, err)
	}
	return httpx.OK(c, "settings updated", toProfile(u))
}
