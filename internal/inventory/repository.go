package inventory

import (
	"context"

	"github.com/farm2markets/xprestrack/internal/inventory/dto"
	"github.com/farm2markets/xprestrack/internal/model"
)

type Repository interface {
	// FindByLotID resolves a lot by business key and returns (nil, nil) when absent.
	FindByLotID(ctx context.Context, lotID string) (*model.Lot, error)
	// GetByID returns (nil, nil) for an unknown record id.
	GetByID(ctx context.Context, id string) (*model.Lot, error)
	CreateLot(ctx context.Context, lot *model.Lot) (*model.Lot, error)
	UpdateStatus(ctx context.Context, id string, status model.LotStatus) (*model.Lot, error)
	// ListLots orders by arrival date, newest first.
	ListLots(ctx context.Context, filters *dto.LotFilters) ([]model.Lot, error)

	// ApplyOutbound records sale against lot and writes status. The caller
	// holds the lot lock.
	ApplyOutbound(ctx context.Context, lot *model.Lot, sale *model.Sale, status model.LotStatus) (*model.Sale, error)
	// ListSales orders by sale date, newest first.
	ListSales(ctx context.Context, filters *dto.SaleFilters) ([]model.Sale, error)
}
