// Package apperr defines the error taxonomy shared by the store adapters, the
// stock engine and the HTTP boundary. Callers classify with errors.Is/As; only
// the boundary turns kinds into status codes.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStore             = errors.New("store error")
	ErrUpstream          = errors.New("upstream error")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrNotConfigured     = errors.New("not configured")
)

// InsufficientStockError carries both sides of the failed comparison.
type InsufficientStockError struct {
	LotID     string
	Available float64
	Requested float64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for lot %s: available=%s, requested=%s",
		e.LotID, formatQty(e.Available), formatQty(e.Requested))
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// StoreError wraps any transport or store-side failure of the record store.
type StoreError struct {
	Op    string
	Table string
	Err   error
}

func (e *StoreError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("store %s %s: %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

// Is lets callers match ErrStore while errors.As still reaches the cause.
func (e *StoreError) Is(target error) bool { return target == ErrStore }

func (e *StoreError) Unwrap() error { return e.Err }

func Store(op, table string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Table: table, Err: err}
}

func Validation(message string) error {
	return fmt.Errorf("%w: %s", ErrValidation, message)
}

func NotFound(kind, key string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, kind, key)
}

func Conflict(message string) error {
	return fmt.Errorf("%w: %s", ErrConflict, message)
}

func Unauthorized(message string) error {
	return fmt.Errorf("%w: %s", ErrUnauthorized, message)
}

func Forbidden(message string) error {
	return fmt.Errorf("%w: %s", ErrForbidden, message)
}

func NotConfigured(service string) error {
	return fmt.Errorf("%w: %s", ErrNotConfigured, service)
}

// Upstream tags a collaborator failure (object storage, messaging, vision, OAuth).
func Upstream(service string, err error) error {
	if err == nil {
		return fmt.Errorf("%w: %s", ErrUpstream, service)
	}
	return fmt.Errorf("%w: %s: %w", ErrUpstream, service, err)
}

// Message strips the kind prefix so the boundary can show the human part.
func Message(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrUnauthorized, ErrForbidden, ErrNotConfigured} {
		prefix := kind.Error() + ": "
		if strings.HasPrefix(msg, prefix) {
			return strings.TrimPrefix(msg, prefix)
		}
	}
	return msg
}

func formatQty(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.3f", v), "0"), ".")
}
