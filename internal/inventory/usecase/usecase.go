package usecase

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/farm2markets/xprestrack/internal/apperr"
	"github.com/farm2markets/xprestrack/internal/attachment"
	"github.com/farm2markets/xprestrack/internal/broker"
	"github.com/farm2markets/xprestrack/internal/inventory"
	"github.com/farm2markets/xprestrack/internal/inventory/dto"
	"github.com/farm2markets/xprestrack/internal/lock"
	"github.com/farm2markets/xprestrack/internal/logger"
	"github.com/farm2markets/xprestrack/internal/model"
	"github.com/farm2markets/xprestrack/internal/notification"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultLowStockThreshold = 20.0
	backgroundTimeout        = 30 * time.Second
)

// ProductLookup resolves catalog entries by name. It returns a NotFound error
// when the product does not exist.
type ProductLookup interface {
	GetByName(ctx context.Context, name string) (*model.Product, error)
}

// RecipientLister returns the users opted in to WhatsApp notifications.
type RecipientLister interface {
	ListWhatsAppRecipients(ctx context.Context) ([]model.User, error)
}

type Options struct {
	Products          ProductLookup
	Uploader          attachment.Uploader
	Dispatcher        notification.Dispatcher
	Recipients        RecipientLister
	Locker            lock.Locker
	Publisher         broker.Publisher
	LowStockThreshold float64
}

type inventoryUseCase struct {
	repo       inventory.Repository
	products   ProductLookup
	uploader   attachment.Uploader
	dispatcher notification.Dispatcher
	recipients RecipientLister
	locker     lock.Locker
	publisher  broker.Publisher
	threshold  float64
	logger     logger.ZapLogger
	now        func() time.Time
	wg         sync.WaitGroup
}

func NewInventoryUseCase(repo inventory.Repository, opts Options, log logger.ZapLogger) inventory.UseCase {
	return newInventoryUseCase(repo, opts, log)
}

func newInventoryUseCase(repo inventory.Repository, opts Options, log logger.ZapLogger) *inventoryUseCase {
	if opts.Locker == nil {
		opts.Locker = lock.NewLocalLocker()
	}
	if opts.Publisher == nil {
		opts.Publisher = broker.NoopPublisher{}
	}
	if opts.LowStockThreshold <= 0 {
		opts.LowStockThreshold = DefaultLowStockThreshold
	}
	return &inventoryUseCase{
		repo:       repo,
		products:   opts.Products,
		uploader:   opts.Uploader,
		dispatcher: opts.Dispatcher,
		recipients: opts.Recipients,
		locker:     opts.Locker,
		publisher:  opts.Publisher,
		threshold:  opts.LowStockThreshold,
		logger:     log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (uc *inventoryUseCase) RecordOutbound(ctx context.Context, input *dto.OutboundInput) (*dto.OutboundResult, error) {
	lotID := strings.TrimSpace(input.LotID)
	if lotID == "" {
		return nil, apperr.Validation("lotId is required")
	}
	if !validQuantity(input.WeightOut) {
		return nil, apperr.Validation("weightOut must be a number greater than 0")
	}
	if input.Pieces < 0 {
		return nil, apperr.Validation("pieces must not be negative")
	}

	release, err := uc.locker.Lock(ctx, lock.Key(lotID))
	if err != nil {
		return nil, err
	}
	defer release()

	lot, err := uc.repo.FindByLotID(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if lot == nil {
		return nil, apperr.NotFound("lot", lotID)
	}

	available := decimal.NewFromFloat(lot.CurrentStock)
	requested := decimal.NewFromFloat(input.WeightOut)
	if requested.GreaterThan(available) {
		return nil, &apperr.InsufficientStockError{
			LotID:     lot.LotID,
			Available: lot.CurrentStock,
			Requested: input.WeightOut,
		}
	}
	remaining := available.Sub(requested).InexactFloat64()
	status := model.StatusAfterOutbound(remaining)

	sale := &model.Sale{
		SaleID:        newSaleID(),
		LotRecordID:   lot.ID,
		LotID:         lot.LotID,
		WeightOut:     input.WeightOut,
		Pieces:        input.Pieces,
		Client:        strings.TrimSpace(input.Client),
		ProposedPrice: input.ProposedPrice,
		Notes:         input.Notes,
		VoiceNoteURL:  input.VoiceNoteURL,
		ProcessedBy:   input.ProcessedBy,
		SaleDate:      uc.now(),
		Metadata:      input.Metadata,
	}

	created, err := uc.repo.ApplyOutbound(ctx, lot, sale, status)
	if err != nil {
		uc.logger.Error("failed to record outbound",
			zap.String("lot_id", lot.LotID),
			zap.String("sale_id", sale.SaleID),
			zap.Error(err),
		)
		return nil, err
	}

	uc.logger.Info("outbound recorded",
		zap.String("lot_id", lot.LotID),
		zap.String("sale_id", created.SaleID),
		zap.Float64("weight_out", input.WeightOut),
		zap.Float64("remaining", remaining),
		zap.String("status", string(status)),
	)

	uc.publish(broker.NewEvent(broker.EventSaleRecorded, lot.LotID, dto.SaleRecordedPayload{
		SaleID:         created.SaleID,
		LotID:          lot.LotID,
		WeightOut:      created.WeightOut,
		Pieces:         created.Pieces,
		RemainingStock: remaining,
		Status:         status,
		ProcessedBy:    created.ProcessedBy,
	}))

	return &dto.OutboundResult{
		Sale:           created,
		RemainingStock: remaining,
		Status:         status,
	}, nil
}

func (uc *inventoryUseCase) RecordInbound(ctx context.Context, input *dto.InboundInput) (*dto.InboundResult, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}
	productName := strings.TrimSpace(input.ProductName)
	lotID := strings.TrimSpace(input.LotID)

	product, err := uc.products.GetByName(ctx, productName)
	if err != nil {
		return nil, err
	}

	release, err := uc.locker.Lock(ctx, lock.Key(lotID))
	if err != nil {
		return nil, err
	}
	defer release()

	existing, err := uc.repo.FindByLotID(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict(fmt.Sprintf("lot %s already exists", lotID))
	}

	result := &dto.InboundResult{}
	result.VoiceNoteURL = uc.upload(ctx, input.VoiceNote, "voice note", result)
	result.InvoiceURL = uc.upload(ctx, input.Invoice, "invoice", result)

	arrival := input.ArrivalDate
	if arrival.IsZero() {
		arrival = uc.now()
	}
	lot := &model.Lot{
		LotID:          lotID,
		Product:        product.Name,
		Provider:       strings.TrimSpace(input.Provider),
		Grade:          strings.TrimSpace(input.Grade),
		Brand:          strings.TrimSpace(input.Brand),
		Origin:         strings.TrimSpace(input.Origin),
		Condition:      strings.TrimSpace(input.Condition),
		ProductionDate: input.ProductionDate,
		ExpirationDate: input.ExpirationDate,
		UnitPrice:      input.UnitPrice,
		QtyReceived:    input.QtyReceived,
		CurrentStock:   input.QtyReceived,
		Status:         model.LotStatusAvailable,
		Notes:          input.Notes,
		VoiceNoteURL:   result.VoiceNoteURL,
		InvoiceURL:     result.InvoiceURL,
		ArrivalDate:    arrival,
		CreatedBy:      input.CreatedBy,
	}

	created, err := uc.repo.CreateLot(ctx, lot)
	if err != nil {
		uc.logger.Error("failed to create lot", zap.String("lot_id", lotID), zap.Error(err))
		return nil, err
	}
	result.Lot = created

	uc.logger.Info("inbound recorded",
		zap.String("lot_id", created.LotID),
		zap.String("product", created.Product),
		zap.Float64("qty_received", created.QtyReceived),
		zap.Int("warnings", len(result.Warnings)),
	)

	arrived := *created
	uc.background(func(ctx context.Context) {
		uc.notifyArrival(ctx, arrived)
	})
	uc.publish(broker.NewEvent(broker.EventLotReceived, created.LotID, dto.LotReceivedPayload{
		LotID:       created.LotID,
		Product:     created.Product,
		QtyReceived: created.QtyReceived,
		Provider:    created.Provider,
		CreatedBy:   created.CreatedBy,
	}))

	return result, nil
}

// upload stores f when present. Failures become warnings on result.
func (uc *inventoryUseCase) upload(ctx context.Context, f *attachment.File, label string, result *dto.InboundResult) string {
	if f == nil || len(f.Data) == 0 {
		return ""
	}
	if uc.uploader == nil {
		result.Warnings = append(result.Warnings, label+" upload skipped: storage not configured")
		return ""
	}
	url, err := uc.uploader.Upload(ctx, *f)
	if err != nil {
		uc.logger.Warn("attachment upload failed",
			zap.String("kind", string(f.Kind)),
			zap.String("filename", f.Filename),
			zap.Error(err),
		)
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s upload failed: %s", label, apperr.Message(err)))
		return ""
	}
	return url
}

func (uc *inventoryUseCase) notifyArrival(ctx context.Context, lot model.Lot) {
	if uc.dispatcher == nil || uc.recipients == nil {
		return
	}
	users, err := uc.recipients.ListWhatsAppRecipients(ctx)
	if err != nil {
		uc.logger.Error("failed to load notification recipients", zap.String("lot_id", lot.LotID), zap.Error(err))
		return
	}
	recipients := make([]notification.Recipient, 0, len(users))
	for _, u := range users {
		recipients = append(recipients, notification.Recipient{Name: u.Name, Phone: u.Phone})
	}

	res := uc.dispatcher.Notify(ctx, notification.LotArrival{Lot: lot}, recipients)
	fields := []zap.Field{
		zap.String("lot_id", lot.LotID),
		zap.Int("attempted", res.Attempted),
		zap.Int("sent", res.Sent),
		zap.Int("skipped", len(res.Skipped)),
	}
	if len(res.Failures) > 0 {
		for _, f := range res.Failures {
			uc.logger.Warn("arrival notification failed", zap.String("recipient", f.Recipient.Name), zap.String("error", f.Err))
		}
		uc.logger.Warn("arrival notifications partially delivered", fields...)
		return
	}
	uc.logger.Info("arrival notifications sent", fields...)
}

func (uc *inventoryUseCase) publish(event broker.Event) {
	uc.background(func(ctx context.Context) {
		if err := uc.publisher.Publish(ctx, event); err != nil {
			uc.logger.Warn("failed to publish event",
				zap.String("event_type", event.EventType),
				zap.String("key", event.Key),
				zap.Error(err),
			)
		}
	})
}

// background runs fn on a context detached from the request, bounded by
// backgroundTimeout.
func (uc *inventoryUseCase) background(fn func(ctx context.Context)) {
	uc.wg.Add(1)
	go func() {
		defer uc.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), backgroundTimeout)
		defer cancel()
		fn(ctx)
	}()
}

func (uc *inventoryUseCase) wait() {
	uc.wg.Wait()
}

// Wait blocks until in-flight notifications and event publishes finish or ctx ends.
func (uc *inventoryUseCase) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		uc.wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (uc *inventoryUseCase) UpdateStatus(ctx context.Context, id, raw string) (*model.Lot, error) {
	status, ok := model.ParseLotStatus(raw)
	if !ok {
		return nil, apperr.Validation(fmt.Sprintf("invalid status %q", raw))
	}

	lot, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if lot == nil {
		return nil, apperr.NotFound("lot", id)
	}

	release, err := uc.locker.Lock(ctx, lock.Key(lot.LotID))
	if err != nil {
		return nil, err
	}
	defer release()

	updated, err := uc.repo.UpdateStatus(ctx, id, status)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, apperr.NotFound("lot", id)
	}
	uc.logger.Info("lot status changed",
		zap.String("lot_id", updated.LotID),
		zap.String("from", string(lot.Status)),
		zap.String("to", string(status)),
	)
	return updated, nil
}

func (uc *inventoryUseCase) ListLots(ctx context.Context, query *dto.LotQuery) ([]dto.LotView, error) {
	filters := &dto.LotFilters{Product: strings.TrimSpace(query.Product)}
	lowStockOnly := false

	raw := strings.TrimSpace(query.Status)
	switch {
	case raw == "" || strings.EqualFold(raw, "all"):
	case strings.EqualFold(raw, model.LowStockLabel):
		lowStockOnly = true
		filters.Status = model.LotStatusAvailable
	default:
		status, ok := model.ParseLotStatus(raw)
		if !ok {
			return nil, apperr.Validation(fmt.Sprintf("invalid status %q", raw))
		}
		filters.Status = status
	}

	lots, err := uc.repo.ListLots(ctx, filters)
	if err != nil {
		return nil, err
	}

	views := make([]dto.LotView, 0, len(lots))
	for _, l := range lots {
		low := l.IsLowStock(uc.threshold)
		if lowStockOnly && !low {
			continue
		}
		views = append(views, dto.LotView{
			Lot:           l,
			DisplayStatus: l.DisplayStatus(uc.threshold),
			LowStock:      low,
		})
	}
	return views, nil
}

func (uc *inventoryUseCase) ListActiveBatches(ctx context.Context) ([]model.Lot, error) {
	return uc.repo.ListLots(ctx, &dto.LotFilters{
		ExcludeStatus: model.LotStatusDepleted,
		InStock:       true,
	})
}

func (uc *inventoryUseCase) ListSales(ctx context.Context, lotID string) ([]model.Sale, error) {
	return uc.repo.ListSales(ctx, &dto.SaleFilters{LotID: strings.TrimSpace(lotID)})
}

func (uc *inventoryUseCase) Dashboard(ctx context.Context) (*dto.Dashboard, error) {
	lots, err := uc.repo.ListLots(ctx, &dto.LotFilters{})
	if err != nil {
		return nil, err
	}

	now := uc.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	sales, err := uc.repo.ListSales(ctx, &dto.SaleFilters{Since: &startOfDay})
	if err != nil {
		return nil, err
	}

	d := &dto.Dashboard{TotalLots: len(lots), LowStock: []model.Lot{}}
	var onHand, received, sold, value, weightToday decimal.Decimal
	for _, l := range lots {
		switch l.Status {
		case model.LotStatusAvailable:
			d.AvailableLots++
		case model.LotStatusDepleted:
			d.DepletedLots++
		}
		if l.IsLowStock(uc.threshold) {
			d.LowStockLots++
			d.LowStock = append(d.LowStock, l)
		}
		stock := decimal.NewFromFloat(l.CurrentStock)
		onHand = onHand.Add(stock)
		received = received.Add(decimal.NewFromFloat(l.QtyReceived))
		sold = sold.Add(decimal.NewFromFloat(l.TotalSold))
		value = value.Add(stock.Mul(decimal.NewFromFloat(l.UnitPrice)))
	}
	for _, s := range sales {
		d.SalesToday++
		weightToday = weightToday.Add(decimal.NewFromFloat(s.WeightOut))
	}

	d.StockOnHand = onHand.Round(2).InexactFloat64()
	d.TotalReceived = received.Round(2).InexactFloat64()
	d.TotalSold = sold.Round(2).InexactFloat64()
	d.StockValue = value.Round(2).InexactFloat64()
	d.WeightOutToday = weightToday.Round(2).InexactFloat64()
	return d, nil
}

func validQuantity(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

func newSaleID() string {
	return "SALE-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:8])
}
