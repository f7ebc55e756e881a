package repository

import (
	"context"

	"github.com/farm2markets/xprestrack/internal/airtable"
	"github.com/farm2markets/xprestrack/internal/inventory/dto"
	"github.com/farm2markets/xprestrack/internal/logger"
	"github.com/farm2markets/xprestrack/internal/model"
	"go.uber.org/zap"
)

// Lots table.
const (
	fieldLotID          = "Lot ID"
	fieldProduct        = "Product"
	fieldProvider       = "Provider"
	fieldGrade          = "Grade"
	fieldBrand          = "Brand"
	fieldOrigin         = "Origin"
	fieldCondition      = "Condition"
	fieldProductionDate = "Production Date"
	fieldExpirationDate = "Expiration Date"
	fieldUnitPrice      = "Unit Price"
	fieldQtyReceived    = "Qty Received"
	fieldCurrentStock   = "Current Stock"
	fieldTotalSold      = "Total Sold"
	fieldStatus         = "Status"
	fieldNotes          = "Notes"
	fieldVoiceNoteURL   = "Voice Note URL"
	fieldInvoiceURL     = "Invoice URL"
	fieldArrivalDate    = "Arrival Date"
	fieldCreatedBy      = "Created By"
)

// Sales table.
const (
	fieldSaleID        = "Sale ID"
	fieldSaleLot       = "Lot"
	fieldSaleLotID     = "Lot ID"
	fieldWeightOut     = "Weight Out"
	fieldPieces        = "Pieces"
	fieldClient        = "Client"
	fieldProposedPrice = "Proposed Price"
	fieldSaleNotes     = "Notes"
	fieldSaleVoiceNote = "Voice Note URL"
	fieldProcessedBy   = "Processed By"
	fieldSaleDate      = "Sale Date"
	fieldMetadata      = "Metadata"
)

// AirtableRepository keeps lots and sales in two tables of one base. Current
// Stock and Total Sold are computed by the base from the linked sales, so the
// adapter only ever writes Status on an existing lot.
type AirtableRepository struct {
	lots   airtable.Table
	sales  airtable.Table
	logger logger.ZapLogger
}

func NewAirtableRepository(lots, sales airtable.Table, log logger.ZapLogger) *AirtableRepository {
	return &AirtableRepository{lots: lots, sales: sales, logger: log}
}

func (r *AirtableRepository) FindByLotID(ctx context.Context, lotID string) (*model.Lot, error) {
	records, err := r.lots.List(ctx, airtable.Query{
		Formula:    airtable.Eq(fieldLotID, lotID),
		SortField:  fieldArrivalDate,
		Descending: true,
		MaxRecords: 2,
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	if len(records) > 1 {
		r.logger.Warn("lot id matches several records, using the latest arrival",
			zap.String("lot_id", lotID),
			zap.String("record_id", records[0].ID),
			zap.String("ignored_record_id", records[1].ID),
		)
	}
	lot := toLot(records[0])
	return &lot, nil
}

func (r *AirtableRepository) GetByID(ctx context.Context, id string) (*model.Lot, error) {
	rec, err := r.lots.Get(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}
	lot := toLot(rec)
	return &lot, nil
}

func (r *AirtableRepository) CreateLot(ctx context.Context, lot *model.Lot) (*model.Lot, error) {
	fields := airtable.NewFields().
		SetString(fieldLotID, lot.LotID).
		SetString(fieldProduct, lot.Product).
		SetString(fieldProvider, lot.Provider).
		SetString(fieldGrade, lot.Grade).
		SetString(fieldBrand, lot.Brand).
		SetString(fieldOrigin, lot.Origin).
		SetString(fieldCondition, lot.Condition).
		SetDate(fieldProductionDate, lot.ProductionDate).
		SetDate(fieldExpirationDate, lot.ExpirationDate).
		SetFloat(fieldUnitPrice, lot.UnitPrice).
		SetNumber(fieldQtyReceived, lot.QtyReceived).
		SetString(fieldStatus, string(lot.Status)).
		SetString(fieldNotes, lot.Notes).
		SetString(fieldVoiceNoteURL, lot.VoiceNoteURL).
		SetString(fieldInvoiceURL, lot.InvoiceURL).
		SetTime(fieldArrivalDate, lot.ArrivalDate).
		SetLinks(fieldCreatedBy, lot.CreatedBy)

	rec, err := r.lots.Create(ctx, fields)
	if err != nil {
		return nil, err
	}
	created := toLot(rec)
	if _, ok := rec.Fields[fieldCurrentStock]; !ok {
		// the formula cell is not always echoed back on create
		created.CurrentStock = lot.QtyReceived
	}
	return &created, nil
}

func (r *AirtableRepository) UpdateStatus(ctx context.Context, id string, status model.LotStatus) (*model.Lot, error) {
	existing, err := r.lots.Get(ctx, id)
	if err != nil || existing == nil {
		return nil, err
	}
	rec, err := r.lots.Update(ctx, id, airtable.NewFields().SetString(fieldStatus, string(status)))
	if err != nil {
		return nil, err
	}
	lot := toLot(rec)
	return &lot, nil
}

func (r *AirtableRepository) ListLots(ctx context.Context, f *dto.LotFilters) ([]model.Lot, error) {
	var conds []string
	if f.Status != "" {
		conds = append(conds, airtable.Eq(fieldStatus, string(f.Status)))
	}
	if f.ExcludeStatus != "" {
		conds = append(conds, airtable.Ne(fieldStatus, string(f.ExcludeStatus)))
	}
	if f.InStock {
		conds = append(conds, airtable.Gt(fieldCurrentStock, 0))
	}
	if f.Product != "" {
		conds = append(conds, airtable.EqFold(fieldProduct, f.Product))
	}

	records, err := r.lots.List(ctx, airtable.Query{
		Formula:    airtable.And(conds...),
		SortField:  fieldArrivalDate,
		Descending: true,
	})
	if err != nil {
		return nil, err
	}
	lots := make([]model.Lot, 0, len(records))
	for _, rec := range records {
		lots = append(lots, toLot(rec))
	}
	return lots, nil
}

// ApplyOutbound creates the sale first so the base recomputes Current Stock,
// then writes the status. A failed status write leaves the sale in place and
// is reported to the caller.
func (r *AirtableRepository) ApplyOutbound(ctx context.Context, lot *model.Lot, sale *model.Sale, status model.LotStatus) (*model.Sale, error) {
	fields := airtable.NewFields().
		SetString(fieldSaleID, sale.SaleID).
		SetLinks(fieldSaleLot, lot.ID).
		SetString(fieldSaleLotID, lot.LotID).
		SetNumber(fieldWeightOut, sale.WeightOut).
		SetInt(fieldPieces, sale.Pieces).
		SetString(fieldClient, sale.Client).
		SetFloat(fieldProposedPrice, sale.ProposedPrice).
		SetString(fieldSaleNotes, sale.Notes).
		SetString(fieldSaleVoiceNote, sale.VoiceNoteURL).
		SetLinks(fieldProcessedBy, sale.ProcessedBy).
		SetTime(fieldSaleDate, sale.SaleDate).
		SetJSON(fieldMetadata, sale.Metadata)

	rec, err := r.sales.Create(ctx, fields)
	if err != nil {
		return nil, err
	}
	created := toSale(rec)

	if _, err := r.lots.Update(ctx, lot.ID, airtable.NewFields().SetString(fieldStatus, string(status))); err != nil {
		r.logger.Error("sale recorded but lot status write failed",
			zap.String("lot_id", lot.LotID),
			zap.String("sale_id", created.SaleID),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		return nil, err
	}
	return &created, nil
}

func (r *AirtableRepository) ListSales(ctx context.Context, f *dto.SaleFilters) ([]model.Sale, error) {
	var conds []string
	if f.LotID != "" {
		conds = append(conds, airtable.Eq(fieldSaleLotID, f.LotID))
	}
	if f.Since != nil {
		conds = append(conds, airtable.OnOrAfter(fieldSaleDate, *f.Since))
	}

	records, err := r.sales.List(ctx, airtable.Query{
		Formula:    airtable.And(conds...),
		SortField:  fieldSaleDate,
		Descending: true,
	})
	if err != nil {
		return nil, err
	}
	sales := make([]model.Sale, 0, len(records))
	for _, rec := range records {
		sales = append(sales, toSale(rec))
	}
	return sales, nil
}

func toLot(rec *airtable.Record) model.Lot {
	f := rec.Fields
	arrival := f.Time(fieldArrivalDate)
	if arrival.IsZero() {
		arrival = rec.CreatedTime
	}
	status, ok := model.ParseLotStatus(f.String(fieldStatus))
	if !ok {
		status = model.LotStatusAvailable
	}
	return model.Lot{
		ID:             rec.ID,
		LotID:          f.String(fieldLotID),
		Product:        f.String(fieldProduct),
		Provider:       f.String(fieldProvider),
		Grade:          f.String(fieldGrade),
		Brand:          f.String(fieldBrand),
		Origin:         f.String(fieldOrigin),
		Condition:      f.String(fieldCondition),
		ProductionDate: f.Date(fieldProductionDate),
		ExpirationDate: f.Date(fieldExpirationDate),
		UnitPrice:      f.Float(fieldUnitPrice),
		QtyReceived:    f.Float(fieldQtyReceived),
		CurrentStock:   f.Float(fieldCurrentStock),
		TotalSold:      f.Float(fieldTotalSold),
		Status:         status,
		Notes:          f.String(fieldNotes),
		VoiceNoteURL:   f.String(fieldVoiceNoteURL),
		InvoiceURL:     f.String(fieldInvoiceURL),
		ArrivalDate:    arrival,
		CreatedBy:      first(f.Links(fieldCreatedBy)),
	}
}

func toSale(rec *airtable.Record) model.Sale {
	f := rec.Fields
	saleDate := f.Time(fieldSaleDate)
	if saleDate.IsZero() {
		saleDate = rec.CreatedTime
	}
	return model.Sale{
		ID:            rec.ID,
		SaleID:        f.String(fieldSaleID),
		LotRecordID:   first(f.Links(fieldSaleLot)),
		LotID:         f.String(fieldSaleLotID),
		WeightOut:     f.Float(fieldWeightOut),
		Pieces:        f.Int(fieldPieces),
		Client:        f.String(fieldClient),
		ProposedPrice: f.Float(fieldProposedPrice),
		Notes:         f.String(fieldSaleNotes),
		VoiceNoteURL:  f.String(fieldSaleVoiceNote),
		ProcessedBy:   first(f.Links(fieldProcessedBy)),
		SaleDate:      saleDate,
		Metadata:      f.JSON(fieldMetadata),
	}
}

func first(ids []string) string {
	if len(ids) == 0 {
		return ""
	}
	return ids[0]
}
