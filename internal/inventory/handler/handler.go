package handler

import (
	"context"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/farm2markets/xprestrack/internal/apperr"
	"github.com/farm2markets/xprestrack/internal/attachment"
	"github.com/farm2markets/xprestrack/internal/auth"
	"github.com/farm2markets/xprestrack/internal/httpx"
	"github.com/farm2markets/xprestrack/internal/inventory"
	"github.com/farm2markets/xprestrack/internal/inventory/dto"
	"github.com/farm2markets/xprestrack/internal/logger"
	"github.com/farm2markets/xprestrack/internal/model"
	productdto "github.com/farm2markets/xprestrack/internal/product/dto"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const maxAttachmentBytes = 20 << 20

// EmergencyProducts creates a missing catalog entry on the fly.
type EmergencyProducts interface {
	EnsureEmergencyProduct(ctx context.Context, input *productdto.CreateProductInput) (*model.Product, bool, error)
}

type InventoryHandler struct {
	uc       inventory.UseCase
	products EmergencyProducts
	logger   logger.ZapLogger
}

func NewInventoryHandler(uc inventory.UseCase, products EmergencyProducts, log logger.ZapLogger) *InventoryHandler {
	return &InventoryHandler{
		uc:       uc,
		products: products,
		logger:   log,
	}
}

func (h *InventoryHandler) RegisterRoutes(r fiber.Router) {
	g := r.Group("/inventory")
	g.Get("/", h.ListLots)
	g.Get("/active-batches", h.ListActiveBatches)
	g.Get("/dashboard", h.Dashboard)
	g.Get("/sales", h.ListSales)
	g.Post("/inbound", h.RecordInbound)
	g.Post("/outbound", h.RecordOutbound)
	g.Patch("/:id", h.UpdateStatus)
}

type inboundForm struct {
	Product          string  `json:"product" form:"product"`
	LotID            string  `json:"lotId" form:"lotId"`
	QtyReceived      float64 `json:"qtyReceived" form:"qtyReceived"`
	Provider         string  `json:"provider" form:"provider"`
	Grade            string  `json:"grade" form:"grade"`
	Brand            string  `json:"brand" form:"brand"`
	Origin           string  `json:"origin" form:"origin"`
	Condition        string  `json:"condition" form:"condition"`
	ProductionDate   string  `json:"productionDate" form:"productionDate"`
	ExpirationDate   string  `json:"expirationDate" form:"expirationDate"`
	ArrivalDate      string  `json:"arrivalDate" form:"arrivalDate"`
	UnitPrice        float64 `json:"unitPrice" form:"unitPrice"`
	Notes            string  `json:"notes" form:"notes"`
	EmergencyProduct bool    `json:"emergencyProduct" form:"emergencyProduct"`
	ProductCategory  string  `json:"productCategory" form:"productCategory"`
	ProductType      string  `json:"productType" form:"productType"`
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *InventoryHandler) RecordInbound(c *fiber.Ctx) error {
	var form inboundForm
	if err := c.BodyParser(&form); err != nil {
		return httpx.BadRequest(c, "invalid request body")
	}
	ctx := auth.Context(c)
	userID := auth.GetUserID(ctx)

	input := &dto.InboundInput{
		ProductName: form.Product,
		LotID:       form.LotID,
		QtyReceived: form.QtyReceived,
		Provider:    form.Provider,
		Grade:       form.Grade,
		Brand:       form.Brand,
		Origin:      form.Origin,
		Condition:   form.Condition,
		UnitPrice:   form.UnitPrice,
		Notes:       form.Notes,
		CreatedBy:   userID,
	}
	var err error
	if input.ProductionDate, err = parseDate("productionDate", form.ProductionDate); err != nil {
		return httpx.WriteError(c, err)
	}
	if input.ExpirationDate, err = parseDate("expirationDate", form.ExpirationDate); err != nil {
		return httpx.WriteError(c, err)
	}
	if arrival, err := parseDate("arrivalDate", form.ArrivalDate); err != nil {
		return httpx.WriteError(c, err)
	} else if arrival != nil {
		input.ArrivalDate = *arrival
	}

	if err := input.Validate(); err != nil {
		return httpx.WriteError(c, err)
	}

	if input.VoiceNote, err = readAttachment(c, "voiceNote", attachment.KindVoiceNote); err != nil {
		return httpx.WriteError(c, err)
	}
	if input.Invoice, err = readAttachment(c, "invoice", attachment.KindInvoice); err != nil {
		return httpx.WriteError(c, err)
	}

	if form.EmergencyProduct {
		p, created, err := h.products.EnsureEmergencyProduct(ctx, &productdto.CreateProductInput{
			Name:      form.Product,
			Category:  form.ProductCategory,
			Type:      form.ProductType,
			CreatedBy: userID,
		})
		if err != nil {
			return h.fail(c, "failed to ensure emergency product", err)
		}
		if created {
			h.logger.Info("emergency product created for inbound",
				zap.String("product", p.Name),
				zap.String("lot_id", form.LotID),
			)
		}
		input.ProductName = p.Name
	}

	result, err := h.uc.RecordInbound(ctx, input)
	if err != nil {
		return h.fail(c, "failed to record inbound", err)
	}
	return httpx.Created(c, "lot received", result)
}

func (h *InventoryHandler) RecordOutbound(c *fiber.Ctx) error {
	var input dto.OutboundInput
	if err := c.BodyParser(&input); err != nil {
		return httpx.BadRequest(c, "invalid request body")
	}
	ctx := auth.Context(c)
	input.ProcessedBy = auth.GetUserID(ctx)

	result, err := h.uc.RecordOutbound(ctx, &input)
	if err != nil {
		return h.fail(c, "failed to record outbound", err)
	}
	return httpx.Created(c, "sale recorded", result)
}

func (h *InventoryHandler) UpdateStatus(c *fiber.Ctx) error {
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid request body")
	}
	lot, err := h.uc.UpdateStatus(auth.Context(c), c.Params("id"), req.Status)
	if err != nil {
		return h.fail(c, "failed to update lot status", err)
	}
	return httpx.OK(c, "lot status updated", lot)
}

func (h *InventoryHandler) ListLots(c *fiber.Ctx) error {
	lots, err := h.uc.ListLots(auth.Context(c), &dto.LotQuery{
		Status:  c.Query("status"),
		Product: c.Query("product"),
	})
	if err != nil {
		return h.fail(c, "failed to list lots", err)
	}
	return httpx.OK(c, "lots retrieved", lots)
}

func (h *InventoryHandler) ListActiveBatches(c *fiber.Ctx) error {
	lots, err := h.uc.ListActiveBatches(auth.Context(c))
	if err != nil {
		return h.fail(c, "failed to list active batches", err)
	}
	return httpx.OK(c, "active batches retrieved", lots)
}

func (h *InventoryHandler) ListSales(c *fiber.Ctx) error {
	sales, err := h.uc.ListSales(auth.Context(c), c.Query("lotId"))
	if err != nil {
		return h.fail(c, "failed to list sales", err)
	}
	return httpx.OK(c, "sales retrieved", sales)
}

func (h *InventoryHandler) Dashboard(c *fiber.Ctx) error {
	d, err := h.uc.Dashboard(auth.Context(c))
	if err != nil {
		return h.fail(c, "failed to build dashboard", err)
	}
	return httpx.OK(c, "dashboard retrieved", d)
}

func (h *InventoryHandler) fail(c *fiber.Ctx, msg string, err error) error {
	status, _ := httpx.StatusFor(err)
	fields := []zap.Field{zap.String("path", c.Path()), zap.Error(err)}
	if status >= fiber.StatusInternalServerError {
		h.logger.Error(msg, fields...)
	} else {
		h.logger.Warn(msg, fields...)
	}
	return httpx.WriteError(c, err)
}

func parseDate(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, apperr.Validation(field + " must be a date (YYYY-MM-DD)")
}

// readAttachment returns (nil, nil) when the form carries no such file.
func readAttachment(c *fiber.Ctx, field string, kind attachment.Kind) (*attachment.File, error) {
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return nil, nil
	}
	fh, err := c.FormFile(field)
	if err != nil || fh == nil {
		return nil, nil
	}
	if fh.Size > maxAttachmentBytes {
		return nil, apperr.Validation(field + " is too large")
	}
	data, err := readAll(fh)
	if err != nil {
		return nil, apperr.Validation("could not read " + field)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return &attachment.File{
		Kind:        kind,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Data:        data,
	}, nil
}

func readAll(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
