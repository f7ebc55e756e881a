package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/farm2markets/xprestrack/internal/airtable"
	"github.com/farm2markets/xprestrack/internal/airtable/airtabletest"
	"github.com/farm2markets/xprestrack/internal/apperr"
	"github.com/farm2markets/xprestrack/internal/inventory/dto"
	"github.com/farm2markets/xprestrack/internal/logger"
	"github.com/farm2markets/xprestrack/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAirtableRepo() (*AirtableRepository, *airtabletest.Table, *airtabletest.Table) {
	lots := airtabletest.NewTable("Lots", airtabletest.EqMatcher(fieldLotID))
	sales := airtabletest.NewTable("Sales", airtabletest.EqMatcher(fieldSaleLotID))
	return NewAirtableRepository(lots, sales, logger.NewNop()), lots, sales
}

func TestFindByLotIDPicksLatestArrival(t *testing.T) {
	repo, lots, _ := newAirtableRepo()
	lots.Seed(airtable.Fields{fieldLotID: "L-1", fieldArrivalDate: "2026-01-01T00:00:00Z", fieldCurrentStock: 5.0})
	newest := lots.Seed(airtable.Fields{fieldLotID: "L-1", fieldArrivalDate: "2026-02-01T00:00:00Z", fieldCurrentStock: 9.0})
	lots.Seed(airtable.Fields{fieldLotID: "L-2", fieldArrivalDate: "2026-03-01T00:00:00Z"})

	lot, err := repo.FindByLotID(context.Background(), "L-1")
	require.NoError(t, err)
	require.NotNil(t, lot)
	assert.Equal(t, newest, lot.ID)
	assert.Equal(t, 9.0, lot.CurrentStock)

	q := lots.Queries[0]
	assert.Equal(t, airtable.Eq(fieldLotID, "L-1"), q.Formula)
	assert.Equal(t, 2, q.MaxRecords)
	assert.True(t, q.Descending)
}

func TestFindByLotIDAbsent(t *testing.T) {
	repo, _, _ := newAirtableRepo()
	lot, err := repo.FindByLotID(context.Background(), "nope")
	assert.NoError(t, err)
	assert.Nil(t, lot)
}

func TestCreateLotOmitsEmptyFields(t *testing.T) {
	repo, lots, _ := newAirtableRepo()
	expires := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)

	created, err := repo.CreateLot(context.Background(), &model.Lot{
		LotID:          "L-7",
		Product:        "Ribeye",
		QtyReceived:    120,
		CurrentStock:   120,
		Status:         model.LotStatusAvailable,
		ExpirationDate: &expires,
		ArrivalDate:    time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		CreatedBy:      "recUser",
	})
	require.NoError(t, err)
	assert.Equal(t, 120.0, created.CurrentStock)
	assert.Equal(t, "recUser", created.CreatedBy)
	require.NotNil(t, created.ExpirationDate)
	assert.Equal(t, expires, *created.ExpirationDate)

	rec, err := lots.Get(context.Background(), created.ID)
	require.NoError(t, err)
	for _, absent := range []string{fieldProvider, fieldGrade, fieldUnitPrice, fieldVoiceNoteURL, fieldProductionDate, fieldCurrentStock} {
		_, ok := rec.Fields[absent]
		assert.False(t, ok, absent)
	}
	assert.Equal(t, "2026-06-30", rec.Fields[fieldExpirationDate])
}

func TestApplyOutboundWritesSaleThenStatus(t *testing.T) {
	repo, lots, sales := newAirtableRepo()
	id := lots.Seed(airtable.Fields{fieldLotID: "L-1", fieldCurrentStock: 10.0, fieldStatus: "Available"})
	lot, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)

	sale, err := repo.ApplyOutbound(context.Background(), lot, &model.Sale{
		SaleID:      "SALE-ABCDEF12",
		LotID:       "L-1",
		WeightOut:   10,
		Pieces:      3,
		ProcessedBy: "recUser",
		SaleDate:    time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
		Metadata:    map[string]any{"surcharge": 2.5, "bank": "Chase"},
	}, model.LotStatusDepleted)
	require.NoError(t, err)
	assert.Equal(t, "SALE-ABCDEF12", sale.SaleID)
	assert.Equal(t, id, sale.LotRecordID)
	assert.Equal(t, 2.5, sale.Metadata["surcharge"])
	assert.Equal(t, "Chase", sale.Metadata["bank"])
	assert.Equal(t, 1, sales.Len())

	require.Len(t, lots.Updates, 1)
	assert.Equal(t, airtable.Fields{fieldStatus: "Depleted"}, lots.Updates[0].Fields)
}

func TestApplyOutboundStatusFailureKeepsSale(t *testing.T) {
	repo, lots, sales := newAirtableRepo()
	lot := &model.Lot{ID: "recMissing", LotID: "L-1"}

	_, err := repo.ApplyOutbound(context.Background(), lot, &model.Sale{SaleID: "SALE-1", WeightOut: 1}, model.LotStatusAvailable)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Equal(t, 1, sales.Len())
	assert.Len(t, lots.Updates, 1)
}

func TestListLotsFormula(t *testing.T) {
	repo, lots, _ := newAirtableRepo()
	lots.Match = nil

	_, err := repo.ListLots(context.Background(), &dto.LotFilters{ExcludeStatus: model.LotStatusDepleted, InStock: true})
	require.NoError(t, err)
	assert.Equal(t, airtable.And(
		airtable.Ne(fieldStatus, "Depleted"),
		airtable.Gt(fieldCurrentStock, 0),
	), lots.Queries[0].Formula)
	assert.Equal(t, fieldArrivalDate, lots.Queries[0].SortField)
}

func TestListSalesByLot(t *testing.T) {
	repo, _, sales := newAirtableRepo()
	sales.Seed(airtable.Fields{fieldSaleID: "SALE-1", fieldSaleLotID: "L-1", fieldSaleDate: "2026-03-01T00:00:00Z"})
	sales.Seed(airtable.Fields{fieldSaleID: "SALE-2", fieldSaleLotID: "L-1", fieldSaleDate: "2026-03-02T00:00:00Z"})
	sales.Seed(airtable.Fields{fieldSaleID: "SALE-3", fieldSaleLotID: "L-2"})

	got, err := repo.ListSales(context.Background(), &dto.SaleFilters{LotID: "L-1"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "SALE-2", got[0].SaleID)
}

func TestStoreErrorsPropagate(t *testing.T) {
	repo, lots, _ := newAirtableRepo()
	lots.Err = errors.New("503 service unavailable")

	_, err := repo.FindByLotID(context.Background(), "L-1")
	assert.ErrorIs(t, err, apperr.ErrStore)
}
