package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/farm2markets/xprestrack/internal/apperr"
	"github.com/farm2markets/xprestrack/internal/inventory/dto"
	"github.com/farm2markets/xprestrack/internal/model"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const lotColumns = `id, lot_id, product, provider, grade, brand, origin, condition,
	production_date, expiration_date, unit_price, qty_received, current_stock, total_sold,
	status, notes, voice_note_url, invoice_url, arrival_date, created_by`

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

type saleRow struct {
	model.Sale
	RawMetadata types.JSONText `db:"metadata"`
}

func (s *saleRow) toModel() model.Sale {
	sale := s.Sale
	if len(s.RawMetadata) > 0 {
		var meta map[string]any
		if err := s.RawMetadata.Unmarshal(&meta); err == nil && len(meta) > 0 {
			sale.Metadata = meta
		}
	}
	return sale
}

func (r *PGRepository) FindByLotID(ctx context.Context, lotID string) (*model.Lot, error) {
	var lot model.Lot
	query := `SELECT ` + lotColumns + ` FROM lots WHERE lot_id = $1 ORDER BY arrival_date DESC LIMIT 1`
	if err := r.DB.GetContext(ctx, &lot, query, lotID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Store("find", "lots", err)
	}
	return &lot, nil
}

func (r *PGRepository) GetByID(ctx context.Context, id string) (*model.Lot, error) {
	var lot model.Lot
	query := `SELECT ` + lotColumns + ` FROM lots WHERE id = $1`
	if err := r.DB.GetContext(ctx, &lot, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Store("get", "lots", err)
	}
	return &lot, nil
}

func (r *PGRepository) CreateLot(ctx context.Context, lot *model.Lot) (*model.Lot, error) {
	created := *lot
	if created.ID == "" {
		created.ID = uuid.New().String()
	}
	query := `
        INSERT INTO lots (` + lotColumns + `)
        VALUES (
            :id, :lot_id, :product, :provider, :grade, :brand, :origin, :condition,
            :production_date, :expiration_date, :unit_price, :qty_received, :current_stock, :total_sold,
            :status, :notes, :voice_note_url, :invoice_url, :arrival_date, :created_by
        )
    `
	if _, err := r.DB.NamedExecContext(ctx, query, &created); err != nil {
		if isUniqueViolation(err) {
			return nil, apperr.Conflict(fmt.Sprintf("lot %s already exists", lot.LotID))
		}
		return nil, apperr.Store("create", "lots", err)
	}
	return &created, nil
}

func (r *PGRepository) UpdateStatus(ctx context.Context, id string, status model.LotStatus) (*model.Lot, error) {
	var lot model.Lot
	query := `UPDATE lots SET status = $1 WHERE id = $2 RETURNING ` + lotColumns
	if err := r.DB.GetContext(ctx, &lot, query, status, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Store("update", "lots", err)
	}
	return &lot, nil
}

func (r *PGRepository) ListLots(ctx context.Context, f *dto.LotFilters) ([]model.Lot, error) {
	query, args := buildLotQuery(f)
	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, apperr.Store("list", "lots", err)
	}
	defer nstmt.Close()

	lots := []model.Lot{}
	if err := nstmt.SelectContext(ctx, &lots, args); err != nil {
		return nil, apperr.Store("list", "lots", err)
	}
	return lots, nil
}

// ApplyOutbound decrements stock only while enough remains, so a writer that
// bypassed the lot lock still cannot overdraw.
func (r *PGRepository) ApplyOutbound(ctx context.Context, lot *model.Lot, sale *model.Sale, status model.LotStatus) (*model.Sale, error) {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, apperr.Store("begin", "lots", err)
	}
	defer tx.Rollback()

	var remaining float64
	updateQuery := `
        UPDATE lots
        SET current_stock = current_stock - $1,
            total_sold = total_sold + $1,
            status = $2
        WHERE id = $3 AND current_stock >= $1
        RETURNING current_stock
    `
	if err := tx.GetContext(ctx, &remaining, updateQuery, sale.WeightOut, status, lot.ID); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, apperr.Store("update", "lots", err)
		}
		var available float64
		if err := tx.GetContext(ctx, &available, `SELECT current_stock FROM lots WHERE id = $1`, lot.ID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, apperr.NotFound("lot", lot.LotID)
			}
			return nil, apperr.Store("get", "lots", err)
		}
		return nil, &apperr.InsufficientStockError{LotID: lot.LotID, Available: available, Requested: sale.WeightOut}
	}

	row := saleRow{Sale: *sale, RawMetadata: types.JSONText("{}")}
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	if len(sale.Metadata) > 0 {
		raw, err := json.Marshal(sale.Metadata)
		if err != nil {
			return nil, apperr.Validation("metadata is not valid JSON")
		}
		row.RawMetadata = types.JSONText(raw)
	}

	insertQuery := `
        INSERT INTO sales (
            id, sale_id, lot_record_id, lot_id, weight_out, pieces, client,
            proposed_price, notes, voice_note_url, processed_by, sale_date, metadata
        ) VALUES (
            :id, :sale_id, :lot_record_id, :lot_id, :weight_out, :pieces, :client,
            :proposed_price, :notes, :voice_note_url, :processed_by, :sale_date, :metadata
        )
    `
	if _, err := tx.NamedExecContext(ctx, insertQuery, &row); err != nil {
		return nil, apperr.Store("create", "sales", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, apperr.Store("commit", "sales", err)
	}
	created := row.toModel()
	return &created, nil
}

func (r *PGRepository) ListSales(ctx context.Context, f *dto.SaleFilters) ([]model.Sale, error) {
	query, args := buildSaleQuery(f)
	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, apperr.Store("list", "sales", err)
	}
	defer nstmt.Close()

	var rows []saleRow
	if err := nstmt.SelectContext(ctx, &rows, args); err != nil {
		return nil, apperr.Store("list", "sales", err)
	}
	sales := make([]model.Sale, 0, len(rows))
	for i := range rows {
		sales = append(sales, rows[i].toModel())
	}
	return sales, nil
}

func buildLotQuery(f *dto.LotFilters) (string, map[string]interface{}) {
	conditions := []string{}
	args := map[string]interface{}{}

	if f.Status != "" {
		conditions = append(conditions, "status = :status")
		args["status"] = string(f.Status)
	}
	if f.ExcludeStatus != "" {
		conditions = append(conditions, "status <> :exclude_status")
		args["exclude_status"] = string(f.ExcludeStatus)
	}
	if f.InStock {
		conditions = append(conditions, "current_stock > 0")
	}
	if f.Product != "" {
		conditions = append(conditions, "LOWER(product) = LOWER(:product)")
		args["product"] = f.Product
	}

	query := "SELECT " + lotColumns + " FROM lots"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY arrival_date DESC"
	return query, args
}

func buildSaleQuery(f *dto.SaleFilters) (string, map[string]interface{}) {
	conditions := []string{}
	args := map[string]interface{}{}

	if f.LotID != "" {
		conditions = append(conditions, "lot_id = :lot_id")
		args["lot_id"] = f.LotID
	}
	if f.Since != nil {
		conditions = append(conditions, "sale_date >= :since")
		args["since"] = *f.Since
	}

	query := "SELECT * FROM sales"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY sale_date DESC"
	return query, args
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}
