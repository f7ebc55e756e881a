package inventory

import (
	"context"

	"github.com/farm2markets/xprestrack/internal/inventory/dto"
	"github.com/farm2markets/xprestrack/internal/model"
)

type UseCase interface {
	RecordOutbound(ctx context.Context, input *dto.OutboundInput) (*dto.OutboundResult, error)
	RecordInbound(ctx context.Context, input *dto.InboundInput) (*dto.InboundResult, error)
	// UpdateStatus is the manual override; any known status is accepted.
	UpdateStatus(ctx context.Context, id, status string) (*model.Lot, error)
	ListLots(ctx context.Context, query *dto.LotQuery) ([]dto.LotView, error)
	ListActiveBatches(ctx context.Context) ([]model.Lot, error)
	ListSales(ctx context.Context, lotID string) ([]model.Sale, error)
	Dashboard(ctx context.Context) (*dto.Dashboard, error)
	// Wait drains background side effects; called once at shutdown.
	Wait(ctx context.Context) error
}
