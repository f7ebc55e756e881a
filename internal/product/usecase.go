package product

import (
	"context"

	"github.com/farm2markets/xprestrack/internal/model"
	"github.com/farm2markets/xprestrack/internal/product/dto"
)

type UseCase interface {
	CreateProduct(ctx context.Context, input *dto.CreateProductInput) (*model.Product, error)
	GetByName(ctx context.Context, name string) (*model.Product, error)
	ListProducts(ctx context.Context, filters *dto.ProductFilters) ([]model.Product, error)
	// EnsureEmergencyProduct returns the named product, creating it flagged as
	// emergency when missing. created reports which happened.
	EnsureEmergencyProduct(ctx context.Context, input *dto.CreateProductInput) (p *model.Product, created bool, err error)
}
