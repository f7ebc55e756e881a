package repository

import (
	"context"

	"github.com/farm2markets/xprestrack/internal/airtable"
	"github.com/farm2markets/xprestrack/internal/apperr"
	"github.com/farm2markets/xprestrack/internal/model"
	"github.com/farm2markets/xprestrack/internal/user/dto"
)

const (
	fieldEmail         = "Email"
	fieldName          = "Name"
	fieldPasswordHash  = "Password Hash"
	fieldRole          = "Role"
	fieldPhone         = "Phone"
	fieldWhatsAppOptIn = "WhatsApp Opt In"
	fieldQBAccess      = "QuickBooks Access Token"
	fieldQBRefresh     = "QuickBooks Refresh Token"
	fieldQBRealm       = "QuickBooks Realm ID"
	fieldQBExpiry      = "QuickBooks Expiry"
	fieldQBConnected   = "QuickBooks Connected"
)

type AirtableRepository struct {
	table airtable.Table
}

func NewAirtableRepository(table airtable.Table) *AirtableRepository {
	return &AirtableRepository{table: table}
}

func (r *AirtableRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	rec, err := r.table.FindOne(ctx, airtable.Query{Formula: airtable.EqFold(fieldEmail, email)})
	if err != nil || rec == nil {
		return nil, err
	}
	u := toUser(rec)
	return &u, nil
}

func (r *AirtableRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	rec, err := r.table.Get(ctx, id)
	if err != nil || rec == nil {
		return nil, err
	}
	u := toUser(rec)
	return &u, nil
}

func (r *AirtableRepository) UpdateSettings(ctx context.Context, id string, s *dto.SettingsInput) (*model.User, error) {
	fields := airtable.NewFields()
	if s.Phone != nil {
		if *s.Phone == "" {
			fields.Clear(fieldPhone)
		} else {
			fields.SetString(fieldPhone, *s.Phone)
		}
	}
	if s.WhatsAppOptIn != nil {
		fields.SetFlag(fieldWhatsAppOptIn, *s.WhatsAppOptIn)
	}
	if len(fields) == 0 {
		return r.FindByID(ctx, id)
	}
	rec, err := r.table.Update(ctx, id, fields)
	if err != nil {
		return nil, err
	}
	u := toUser(rec)
	return &u, nil
}

func (r *AirtableRepository) SaveQuickBooksToken(ctx context.Context, id string, t *model.QuickBooksToken) error {
	if t == nil {
		return apperr.Validation("quickbooks token is required")
	}
	fields := airtable.NewFields().
		SetString(fieldQBAccess, t.AccessToken).
		SetString(fieldQBRefresh, t.RefreshToken).
		SetString(fieldQBRealm, t.RealmID).
		SetTime(fieldQBExpiry, t.Expiry).
		SetFlag(fieldQBConnected, t.Connected)
	_, err := r.table.Update(ctx, id, fields)
	return err
}

func (r *AirtableRepository) ClearQuickBooks(ctx context.Context, id string) error {
	fields := airtable.NewFields().
		Clear(fieldQBAccess).
		Clear(fieldQBRefresh).
		Clear(fieldQBRealm).
		Clear(fieldQBExpiry).
		SetFlag(fieldQBConnected, false)
	_, err := r.table.Update(ctx, id, fields)
	return err
}

func (r *AirtableRepository) ListWhatsAppRecipients(ctx context.Context) ([]model.User, error) {
	records, err := r.table.List(ctx, airtable.Query{
		Formula:   airtable.Eq(fieldWhatsAppOptIn, true),
		SortField: fieldName,
	})
	if err != nil {
		return nil, err
	}
	users := make([]model.User, 0, len(records))
	for _, rec := range records {
		users = append(users, toUser(rec))
	}
	return users, nil
}

func toUser(rec *airtable.Record) model.User {
	f := rec.Fields
	u := model.User{
		ID:            rec.ID,
		Email:         f.String(fieldEmail),
		Name:          f.String(fieldName),
		PasswordHash:  f.String(fieldPasswordHash),
		Role:          model.Role(f.String(fieldRole)),
		Phone:         f.String(fieldPhone),
		WhatsAppOptIn: f.Bool(fieldWhatsAppOptIn),
	}
	if f.String(fieldQBRefresh) != "" || f.Bool(fieldQBConnected) {
		u.QuickBooks = &model.QuickBooksToken{
			AccessToken:  f.String(fieldQBAccess),
			RefreshToken: f.String(fieldQBRefresh),
			RealmID:      f.String(fieldQBRealm),
			Expiry:       f.Time(fieldQBExpiry),
			Connected:    f.Bool(fieldQBConnected),
		}
	}
	return u
}
