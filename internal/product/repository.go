package product

import (
	"context"

	"github.com/farm2markets/xprestrack/internal/model"
	"github.com/farm2markets/xprestrack/internal/product/dto"
)

type Repository interface {
	Create(ctx context.Context, product *model.Product) (*model.Product, error)
	// FindByName matches case-insensitively and returns (nil, nil) when absent.
	FindByName(ctx context.Context, name string) (*model.Product, error)
	FindAll(ctx context.Context, filters *dto.ProductFilters) ([]model.Product, error)
}
