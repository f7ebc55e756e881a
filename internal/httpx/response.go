package httpx

import (
	"errors"
	"time"

	"github.com/farm2markets/xprestrack/internal/apperr"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

type APIResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	Data      any       `json:"data,omitempty"`
	Error     *APIError `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

type APIError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func OK(c *fiber.Ctx, message string, data any) error {
	return write(c, fiber.StatusOK, message, data)
}

func Created(c *fiber.Ctx, message string, data any) error {
	return write(c, fiber.StatusCreated, message, data)
}

func write(c *fiber.Ctx, status int, message string, data any) error {
	return c.Status(status).JSON(APIResponse{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: requestID(c),
	})
}

// Fail writes an error envelope with an explicit status.
func Fail(c *fiber.Ctx, status int, code, message string, details map[string]any) error {
	return c.Status(status).JSON(APIResponse{
		Success: false,
		Message: message,
		Error: &APIError{
			Code:    code,
			Message: message,
			Details: details,
		},
		Timestamp: time.Now(),
		RequestID: requestID(c),
	})
}

func BadRequest(c *fiber.Ctx, message string) error {
	return Fail(c, fiber.StatusBadRequest, "BAD_REQUEST", message, nil)
}

// WriteError classifies err with StatusFor and renders it.
func WriteError(c *fiber.Ctx, err error) error {
	status, code := StatusFor(err)
	message := apperr.Message(err)
	if status == fiber.StatusInternalServerError && !errors.Is(err, apperr.ErrUpstream) && !errors.Is(err, apperr.ErrStore) {
		message = "internal server error"
	}

	var details map[string]any
	var stockErr *apperr.InsufficientStockError
	if errors.As(err, &stockErr) {
		details = map[string]any{
			"lotId":     stockErr.LotID,
			"available": stockErr.Available,
			"requested": stockErr.Requested,
		}
	}
	return Fail(c, status, code, message, details)
}

// StatusFor maps an error kind to its HTTP status and envelope code.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return fiber.StatusBadRequest, "BAD_REQUEST"
	case errors.Is(err, apperr.ErrInsufficientStock):
		return fiber.StatusBadRequest, "INSUFFICIENT_STOCK"
	case errors.Is(err, apperr.ErrNotConfigured):
		return fiber.StatusBadRequest, "NOT_CONFIGURED"
	case errors.Is(err, apperr.ErrUnauthorized):
		return fiber.StatusUnauthorized, "UNAUTHORIZED"
	case errors.Is(err, apperr.ErrForbidden):
		return fiber.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, apperr.ErrNotFound):
		return fiber.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, apperr.ErrConflict):
		return fiber.StatusConflict, "CONFLICT"
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code, "HTTP_ERROR"
	}
	return fiber.StatusInternalServerError, "INTERNAL_SERVER_ERROR"
}

// ErrorHandler is installed as fiber's global error handler.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return Fail(c, fe.Code, "HTTP_ERROR", fe.Message, nil)
	}
	return WriteError(c, err)
}

// RequestID ensures every request carries an X-Request-ID.
func RequestID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		requestID(c)
		return c.Next()
	}
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(RequestIDHeader).(string); ok && id != "" {
		return id
	}
	id := c.Get(RequestIDHeader)
	if id == "" {
		id = uuid.New().String()
	}
	c.Locals(RequestIDHeader, id)
	c.Set(RequestIDHeader, id)
	return id
}
