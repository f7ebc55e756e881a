package handler

import (
	"strconv"

	"github.com/farm2markets/xprestrack/internal/auth"
	"github.com/farm2markets/xprestrack/internal/httpx"
	"github.com/farm2markets/xprestrack/internal/logger"
	"github.com/farm2markets/xprestrack/internal/product"
	"github.com/farm2markets/xprestrack/internal/product/dto"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type ProductHandler struct {
	uc     product.UseCase
	logger logger.ZapLogger
}

func NewProductHandler(uc product.UseCase, log logger.ZapLogger) *ProductHandler {
	return &ProductHandler{
		uc:     uc,
		logger: log,
	}
}

func (h *ProductHandler) RegisterRoutes(r fiber.Router) {
	g := r.Group("/products")
	g.Get("/", h.ListProducts)
	g.Post("/", h.CreateProduct)
	g.Post("/emergency", h.CreateEmergencyProduct)
}

func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	var input dto.CreateProductInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid request body")
	}
	ctx := auth.Context(c)
	input.CreatedBy = auth.GetUserID(ctx)

	p, err := h.uc.CreateProduct(ctx, &input)
	if err != nil {
		h.logger.Warn("failed to create product", zap.String("name", input.Name), zap.Error(err))
		return httpx.WriteError(c, err)
	}
	return httpx.Created(c, "product created", p)
}

func (h *ProductHandler) CreateEmergencyProduct(c *fiber.Ctx) error {
	var input dto.CreateProductInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid request body")
	}
	ctx := auth.Context(c)
	input.CreatedBy = auth.GetUserID(ctx)

	p, created, err := h.uc.EnsureEmergencyProduct(ctx, &input)
	if err != nil {
		h.logger.Error("failed to ensure emergency product", zap.String("name", input.Name), zap.Error(err))
		return httpx.WriteError(c, err)
	}
	if created {
		return httpx.Created(c, "emergency product created", p)
	}
	return httpx.OK(c, "product already exists", p)
}

func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	filters := &dto.ProductFilters{
		Category:    c.Query("category"),
		SearchQuery: c.Query("q"),
	}
	if raw := c.Query("emergency"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return httpx.BadRequest(c, "emergency must be true or false")
		}
		filters.Emergency = &v
	}

	products, err := h.uc.ListProducts(auth.Context(c), filters)
	if err != nil {
		h.logger.Error("failed to list products", zap.Error(err))
		return httpx.WriteError(c, err)
	}
	return httpx.OK(c, "products retrieved", products)
}
