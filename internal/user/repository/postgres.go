package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/farm2markets/xprestrack/internal/apperr"
	"github.com/farm2markets/xprestrack/internal/model"
	"github.com/farm2markets/xprestrack/internal/user/dto"
	"github.com/jmoiron/sqlx"
)

type userRow struct {
	ID             string       `db:"id"`
	Email          string       `db:"email"`
	Name           string       `db:"name"`
	PasswordHash   string       `db:"password_hash"`
	Role           string       `db:"role"`
	Phone          string       `db:"phone"`
	WhatsAppOptIn  bool         `db:"whatsapp_opt_in"`
	QBAccessToken  string       `db:"qb_access_token"`
	QBRefreshToken string       `db:"qb_refresh_token"`
	QBRealmID      string       `db:"qb_realm_id"`
	QBExpiry       sql.NullTime `db:"qb_expiry"`
	QBConnected    bool         `db:"qb_connected"`
}

func (r *userRow) toModel() *model.User {
	u := &model.User{
		ID:            r.ID,
		Email:         r.Email,
		Name:          r.Name,
		PasswordHash:  r.PasswordHash,
		Role:          model.Role(r.Role),
		Phone:         r.Phone,
		WhatsAppOptIn: r.WhatsAppOptIn,
	}
	if r.QBRefreshToken != "" || r.QBConnected {
		u.QuickBooks = &model.QuickBooksToken{
			AccessToken:  r.QBAccessToken,
			RefreshToken: r.QBRefreshToken,
			RealmID:      r.QBRealmID,
			Expiry:       r.QBExpiry.Time,
			Connected:    r.QBConnected,
		}
	}
	return u
}

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) get(ctx context.Context, op, query string, args ...interface{}) (*model.User, error) {
	var row userRow
	if err := r.DB.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Store(op, "users", err)
	}
	return row.toModel(), nil
}

func (r *PGRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.get(ctx, "find", `SELECT * FROM users WHERE LOWER(email) = LOWER(TRIM($1)) LIMIT 1`, email)
}

func (r *PGRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.get(ctx, "get", `SELECT * FROM users WHERE id = $1`, id)
}

func (r *PGRepository) UpdateSettings(ctx context.Context, id string, s *dto.SettingsInput) (*model.User, error) {
	sets := []string{}
	args := map[string]interface{}{"id": id}
	if s.Phone != nil {
		sets = append(sets, "phone = :phone")
		args["phone"] = *s.Phone
	}
	if s.WhatsAppOptIn != nil {
		sets = append(sets, "whatsapp_opt_in = :whatsapp_opt_in")
		args["whatsapp_opt_in"] = *s.WhatsAppOptIn
	}
	if len(sets) == 0 {
		return r.FindByID(ctx, id)
	}

	query := "UPDATE users SET " + strings.Join(sets, ", ") + " WHERE id = :id RETURNING *"
	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, apperr.Store("update", "users", err)
	}
	defer nstmt.Close()

	var row userRow
	if err := nstmt.GetContext(ctx, &row, args); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperr.Store("update", "users", err)
	}
	return row.toModel(), nil
}

func (r *PGRepository) SaveQuickBooksToken(ctx context.Context, id string, t *model.QuickBooksToken) error {
	if t == nil {
		return apperr.Validation("quickbooks token is required")
	}
	query := `
        UPDATE users
        SET qb_access_token = $1, qb_refresh_token = $2, qb_realm_id = $3, qb_expiry = $4, qb_connected = $5
        WHERE id = $6
    `
	expiry := sql.NullTime{Time: t.Expiry, Valid: !t.Expiry.IsZero()}
	res, err := r.DB.ExecContext(ctx, query, t.AccessToken, t.RefreshToken, t.RealmID, expiry, t.Connected, id)
	if err != nil {
		return apperr.Store("update", "users", err)
	}
	return requireRow(res, id)
}

func (r *PGRepository) ClearQuickBooks(ctx context.Context, id string) error {
	query := `
        UPDATE users
        SET qb_access_token = '', qb_refresh_token = '', qb_realm_id = '', qb_expiry = NULL, qb_connected = FALSE
        WHERE id = $1
    `
	res, err := r.DB.ExecContext(ctx, query, id)
	if err != nil {
		return apperr.Store("update", "users", err)
	}
	return requireRow(res, id)
}

func (r *PGRepository) ListWhatsAppRecipients(ctx context.Context) ([]model.User, error) {
	var rows []userRow
	if err := r.DB.SelectContext(ctx, &rows, `SELECT * FROM users WHERE whatsapp_opt_in ORDER BY name`); err != nil {
		return nil, apperr.Store("list", "users", err)
	}
	users := make([]model.User, 0, len(rows))
	for i := range rows {
		users = append(users, *rows[i].toModel())
	}
	return users, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperr.Store("update", "users", err)
	}
	if n == 0 {
		return apperr.NotFound("user", id)
	}
	return nil
}
