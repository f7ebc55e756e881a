package handler

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/farm2markets/xprestrack/internal/apperr"
	"github.com/farm2markets/xprestrack/internal/auth"
	"github.com/farm2markets/xprestrack/internal/httpx"
	"github.com/farm2markets/xprestrack/internal/logger"
	"github.com/farm2markets/xprestrack/internal/model"
	"github.com/farm2markets/xprestrack/internal/quickbooks"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	customersQuery = "SELECT * FROM Customer MAXRESULTS 100"
	inventoryQuery = "SELECT * FROM Item WHERE Type = 'Inventory' MAXRESULTS 100"
	invoicesQuery  = "SELECT * FROM Invoice ORDERBY TxnDate DESC MAXRESULTS 50"
)

type Service interface {
	Configured() bool
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, userID, code, realmID string) (*model.QuickBooksToken, error)
	Status(ctx context.Context, userID string) (*quickbooks.Status, error)
	Disconnect(ctx context.Context, userID string) error
	Query(ctx context.Context, userID, statement string) (json.RawMessage, error)
	Report(ctx context.Context, userID, name string, params url.Values) (json.RawMessage, error)
}

type QuickBooksHandler struct {
	svc      Service
	sessions *auth.Sessions
	appURL   string
	logger   logger.ZapLogger
}

// NewQuickBooksHandler builds the handler; appURL is where the browser lands after the OAuth callback.
func NewQuickBooksHandler(svc Service, sessions *auth.Sessions, appURL string, log logger.ZapLogger) *QuickBooksHandler {
	return &QuickBooksHandler{
		svc:      svc,
		sessions: sessions,
		appURL:   strings.TrimRight(appURL, "/"),
		logger:   log,
	}
}

// RegisterPublicRoutes mounts the OAuth callback, which Intuit calls without our cookie.
func (h *QuickBooksHandler) RegisterPublicRoutes(r fiber.Router) {
	r.Get("/quickbooks/callback", h.Callback)
}

// RegisterRoutes mounts the session-protected routes behind the optional guards.
func (h *QuickBooksHandler) RegisterRoutes(r fiber.Router, guards ...fiber.Handler) {
	g := r.Group("/quickbooks", guards...)
	g.Get("/connect", h.Connect)
	g.Get("/status", h.Status)
	g.Post("/disconnect", h.Disconnect)
	g.Get("/customers", h.query(customersQuery))
	g.Get("/inventory", h.query(inventoryQuery))
	g.Get("/invoices", h.query(invoicesQuery))
	g.Get("/reports/:name", h.Report)
}

func (h *QuickBooksHandler) Connect(c *fiber.Ctx) error {
	if !h.svc.Configured() {
		return httpx.WriteError(c, apperr.NotConfigured("quickbooks"))
	}
	userID := auth.GetUserID(auth.Context(c))
	state, err := h.sessions.SignState(userID)
	if err != nil {
		h.logger.Error("failed to sign oauth state", zap.String("user_id", userID), zap.Error(err))
		return httpx.WriteError(c, err)
	}
	return c.Redirect(h.svc.AuthCodeURL(state), fiber.StatusFound)
}

func (h *QuickBooksHandler) Callback(c *fiber.Ctx) error {
	if reason := c.Query("error"); reason != "" {
		h.logger.Warn("quickbooks authorization denied", zap.String("reason", reason))
		return h.finish(c, "error")
	}
	userID, err := h.sessions.VerifyState(c.Query("state"))
	if err != nil {
		h.logger.Warn("invalid quickbooks oauth state", zap.Error(err))
		return httpx.WriteError(c, apperr.Unauthorized("invalid oauth state"))
	}
	if _, err := h.svc.Exchange(c.UserContext(), userID, c.Query("code"), c.Query("realmId")); err != nil {
		h.logger.Error("quickbooks token exchange failed", zap.String("user_id", userID), zap.Error(err))
		return h.finish(c, "error")
	}
	return h.finish(c, "connected")
}

func (h *QuickBooksHandler) finish(c *fiber.Ctx, outcome string) error {
	return c.Redirect(h.appURL+"/settings?quickbooks="+outcome, fiber.StatusFound)
}

func (h *QuickBooksHandler) Status(c *fiber.Ctx) error {
	status, err := h.svc.Status(auth.Context(c), auth.GetUserID(auth.Context(c)))
	if err != nil {
		return httpx.WriteError(c, err)
	}
	return httpx.OK(c, "quickbooks status", status)
}

func (h *QuickBooksHandler) Disconnect(c *fiber.Ctx) error {
	if err := h.svc.Disconnect(auth.Context(c), auth.GetUserID(auth.Context(c))); err != nil {
		return httpx.WriteError(c, err)
	}
	return httpx.OK(c, "quickbooks disconnected", nil)
}

func (h *QuickBooksHandler) query(statement string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		data, err := h.svc.Query(auth.Context(c), auth.GetUserID(auth.Context(c)), statement)
		if err != nil {
			return h.fail(c, err)
		}
		return httpx.OK(c, "quickbooks query", data)
	}
}

func (h *QuickBooksHandler) Report(c *fiber.Ctx) error {
	params := url.Values{}
	for _, key := range []string{"start_date", "end_date", "date_macro", "accounting_method"} {
		if v := c.Query(key); v != "" {
			params.Set(key, v)
		}
	}
	data, err := h.svc.Report(auth.Context(c), auth.GetUserID(auth.Context(c)), c.Params("name"), params)
	if err != nil {
		return h.fail(c, err)
	}
	return httpx.OK(c, "quickbooks report", data)
}

func (h *QuickBooksHandler) fail(c *fiber.Ctx, err error) error {
	if status, _ := httpx.StatusFor(err); status >= fiber.StatusInternalServerError {
		h.logger.Error("quickbooks request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return httpx.WriteError(c, err)
}
