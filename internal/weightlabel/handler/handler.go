package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/farm2markets/xprestrack/internal/apperr"
	"github.com/farm2markets/xprestrack/internal/httpx"
	"github.com/farm2markets/xprestrack/internal/logger"
	"github.com/farm2markets/xprestrack/internal/weightlabel"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type Recognizer interface {
	Recognize(ctx context.Context, image []byte, mimeType string) (*weightlabel.Reading, error)
}

type WeightLabelHandler struct {
	recognizer Recognizer
	logger     logger.ZapLogger
}

func NewWeightLabelHandler(r Recognizer, log logger.ZapLogger) *WeightLabelHandler {
	return &WeightLabelHandler{
		recognizer: r,
		logger:     log,
	}
}

func (h *WeightLabelHandler) RegisterRoutes(r fiber.Router) {
	r.Post("/read-weight", h.ReadWeight)
}

type readWeightRequest struct {
	Image string `json:"image"`
}

type readWeightResponse struct {
	Detected bool    `json:"detected"`
	Weight   float64 `json:"weight,omitempty"`
	Unit     string  `json:"unit,omitempty"`
	// Pounds is the weight normalized for the outbound form.
	Pounds float64 `json:"pounds,omitempty"`
}

func (h *WeightLabelHandler) ReadWeight(c *fiber.Ctx) error {
	var req readWeightRequest
	if err := c.BodyParser(&req); err != nil {
		return httpx.BadRequest(c, "invalid request body")
	}
	image, mimeType, err := decodeImage(req.Image)
	if err != nil {
		return httpx.WriteError(c, err)
	}

	reading, err := h.recognizer.Recognize(c.UserContext(), image, mimeType)
	switch {
	case errors.Is(err, weightlabel.ErrMalformedReply):
		h.logger.Warn("unreadable weight label reply", zap.Error(err))
		return httpx.OK(c, "weight not detected", readWeightResponse{})
	case errors.Is(err, apperr.ErrValidation):
		return httpx.WriteError(c, err)
	case err != nil:
		h.logger.Error("weight label recognition failed", zap.Error(err))
		return httpx.Fail(c, fiber.StatusInternalServerError, "INTERNAL_SERVER_ERROR", apperr.Message(err), nil)
	case reading == nil:
		return httpx.OK(c, "weight not detected", readWeightResponse{})
	}

	h.logger.Info("weight label read",
		zap.Float64("weight", reading.Weight),
		zap.String("unit", string(reading.Unit)),
	)
	return httpx.OK(c, "weight detected", readWeightResponse{
		Detected: true,
		Weight:   reading.Weight,
		Unit:     string(reading.Unit),
		Pounds:   weightlabel.ToPounds(*reading),
	})
}

// decodeImage accepts raw base64 or a data URL and returns the bytes with the
// declared mime type, if any.
func decodeImage(raw string) ([]byte, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, "", apperr.Validation("image is required")
	}
	var mimeType string
	if strings.HasPrefix(raw, "data:") {
		header, payload, ok := strings.Cut(raw, ",")
		if !ok {
			return nil, "", apperr.Validation("image data URL is malformed")
		}
		mimeType = strings.TrimSuffix(strings.TrimPrefix(header, "data:"), ";base64")
		raw = payload
	}
	image, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, "", apperr.Validation("image must be base64 encoded")
	}
	if len(image) == 0 {
		return nil, "", apperr.Validation("image is required")
	}
	return image, mimeType, nil
}
