package repository

import (
	"context"

	"github.com/farm2markets/xprestrack/internal/airtable"
	"github.com/farm2markets/xprestrack/internal/model"
	"github.com/farm2markets/xprestrack/internal/product/dto"
)

const (
	fieldName        = "Name"
	fieldCategory    = "Category"
	fieldType        = "Type"
	fieldIsEmergency = "Is Emergency"
	fieldCreatedBy   = "Created By"
	fieldCreatedAt   = "Created At"
)

type AirtableRepository struct {
	table airtable.Table
}

func NewAirtableRepository(table airtable.Table) *AirtableRepository {
	return &AirtableRepository{table: table}
}

func (r *AirtableRepository) Create(ctx context.Context, p *model.Product) (*model.Product, error) {
	fields := airtable.NewFields().
		SetString(fieldName, p.Name).
		SetString(fieldCategory, p.Category).
		SetString(fieldType, p.Type).
		SetBool(fieldIsEmergency, p.IsEmergency).
		SetString(fieldCreatedBy, p.CreatedBy).
		SetTime(fieldCreatedAt, p.CreatedAt)

	rec, err := r.table.Create(ctx, fields)
	if err != nil {
		return nil, err
	}
	created := *p
	created.ID = rec.ID
	return &created, nil
}

func (r *AirtableRepository) FindByName(ctx context.Context, name string) (*model.Product, error) {
	rec, err := r.table.FindOne(ctx, airtable.Query{Formula: airtable.EqFold(fieldName, name)})
	if err != nil || rec == nil {
		return nil, err
	}
	p := toProduct(rec)
	return &p, nil
}

func (r *AirtableRepository) FindAll(ctx context.Context, f *dto.ProductFilters) ([]model.Product, error) {
	var conds []string
	if f.Category != "" {
		conds = append(conds, airtable.Eq(fieldCategory, f.Category))
	}
	if f.SearchQuery != "" {
		conds = append(conds, airtable.Contains(fieldName, f.SearchQuery))
	}
	if f.Emergency != nil {
		if *f.Emergency {
			conds = append(conds, airtable.Eq(fieldIsEmergency, true))
		} else {
			conds = append(conds, airtable.Not(airtable.Eq(fieldIsEmergency, true)))
		}
	}

	records, err := r.table.List(ctx, airtable.Query{Formula: airtable.And(conds...), SortField: fieldName})
	if err != nil {
		return nil, err
	}
	products := make([]model.Product, 0, len(records))
	for _, rec := range records {
		products = append(products, toProduct(rec))
	}
	return products, nil
}

func toProduct(rec *airtable.Record) model.Product {
	f := rec.Fields
	createdAt := f.Time(fieldCreatedAt)
	if createdAt.IsZero() {
		createdAt = rec.CreatedTime
	}
	return model.Product{
		ID:          rec.ID,
		Name:        f.String(fieldName),
		Category:    f.String(fieldCategory),
		Type:        f.String(fieldType),
		IsEmergency: f.Bool(fieldIsEmergency),
		CreatedBy:   f.String(fieldCreatedBy),
		CreatedAt:   createdAt,
	}
}
