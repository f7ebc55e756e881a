package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/farm2markets/xprestrack/internal/apperr"
	"github.com/farm2markets/xprestrack/internal/model"
	"github.com/farm2markets/xprestrack/internal/product/dto"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) Create(ctx context.Context, p *model.Product) (*model.Product, error) {
	query := `
        INSERT INTO products (id, name, category, type, is_emergency, created_by, created_at)
        VALUES (:id, :name, :category, :type, :is_emergency, :created_by, :created_at)
    `
	if _, err := r.DB.NamedExecContext(ctx, query, p); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return nil, apperr.Conflict("product " + p.Name + " already exists")
		}
		return nil, apperr.Store("create", "products", err)
	}
	return p, nil
}

func (r *PGRepository) FindByName(ctx context.Context, name string) (*model.Product, error) {
	var p model.Product
	query := `SELECT * FROM products WHERE LOWER(TRIM(name)) = LOWER(TRIM($1)) LIMIT 1`
	if err := r.DB.GetContext(ctx, &p, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Store("find", "products", err)
	}
	return &p, nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.ProductFilters) ([]model.Product, error) {
	query, args := buildProductQuery(f)

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, apperr.Store("list", "products", err)
	}
	defer nstmt.Close()

	var products []model.Product
	if err := nstmt.SelectContext(ctx, &products, args); err != nil {
		return nil, apperr.Store("list", "products", err)
	}
	return products, nil
}

func buildProductQuery(f *dto.ProductFilters) (string, map[string]interface{}) {
	conditions := []string{}
	args := map[string]interface{}{}

	if f.Category != "" {
		conditions = append(conditions, "category = :category")
		args["category"] = f.Category
	}
	if f.SearchQuery != "" {
		conditions = append(conditions, "name ILIKE :search")
		args["search"] = "%" + f.SearchQuery + "%"
	}
	if f.Emergency != nil {
		conditions = append(conditions, "is_emergency = :is_emergency")
		args["is_emergency"] = *f.Emergency
	}

	query := "SELECT * FROM products"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	return query + " ORDER BY name ASC", args
}
