package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/farm2markets/xprestrack/internal/apperr"
	"github.com/farm2markets/xprestrack/internal/logger"
	"github.com/farm2markets/xprestrack/internal/model"
	"github.com/farm2markets/xprestrack/internal/user/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memRepo struct {
	users map[string]*model.User
}

func (r *memRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := r.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r *memRepo) UpdateSettings(_ context.Context, id string, s *dto.SettingsInput) (*model.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	if s.Phone != nil {
		u.Phone = *s.Phone
	}
	if s.WhatsAppOptIn != nil {
		u.WhatsAppOptIn = *s.WhatsAppOptIn
	}
	cp := *u
	return &cp, nil
}

func (r *memRepo) SaveQuickBooksToken(context.Context, string, *model.QuickBooksToken) error {
	return nil
}

func (r *memRepo) ClearQuickBooks(context.Context, string) error { return nil }

func (r *memRepo) ListWhatsAppRecipients(context.Context) ([]model.User, error) { return nil, nil }

func newRepo(t *testing.T) *memRepo {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret!"), bcrypt.MinCost)
	require.NoError(t, err)
	return &memRepo{users: map[string]*model.User{
		"rec1": {ID: "rec1", Email: "ana@farm2markets.com", PasswordHash: string(hash), Role: model.RoleWarehouseStaff},
		"rec2": {ID: "rec2", Email: "ghost@farm2markets.com", PasswordHash: string(hash), Role: "intern"},
	}}
}

func TestLogin(t *testing.T) {
	uc := NewUserUseCase(newRepo(t), logger.NewNop())
	ctx := context.Background()

	u, err := uc.Login(ctx, &dto.LoginInput{Email: " Ana@Farm2Markets.com ", Password: "s3cret!"})
	require.NoError(t, err)
	assert.Equal(t, "rec1", u.ID)

	_, err = uc.Login(ctx, &dto.LoginInput{Email: "ana@farm2markets.com", Password: "wrong"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = uc.Login(ctx, &dto.LoginInput{Email: "nobody@farm2markets.com", Password: "s3cret!"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = uc.Login(ctx, &dto.LoginInput{Email: "", Password: "x"})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = uc.Login(ctx, &dto.LoginInput{Email: "ghost@farm2markets.com", Password: "s3cret!"})
	assert.ErrorIs(t, err, apperr.ErrForbidden)
}

func TestUpdateSettings(t *testing.T) {
	uc := NewUserUseCase(newRepo(t), logger.NewNop())
	ctx := context.Background()
	yes := true

	_, err := uc.UpdateSettings(ctx, "rec1", &dto.SettingsInput{WhatsAppOptIn: &yes})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	phone := "(305) 555-0100"
	u, err := uc.UpdateSettings(ctx, "rec1", &dto.SettingsInput{Phone: &phone, WhatsAppOptIn: &yes})
	require.NoError(t, err)
	assert.Equal(t, "+3055550100", u.Phone)
	assert.True(t, u.WhatsAppOptIn)

	bad := "12"
	_, err = uc.UpdateSettings(ctx, "rec1", &dto.SettingsInput{Phone: &bad})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	empty := ""
	_, err = uc.UpdateSettings(ctx, "rec1", &dto.SettingsInput{Phone: &empty})
	assert.ErrorIs(t, err, apperr.ErrValidation, "opted-in user cannot drop the phone")

	_, err = uc.UpdateSettings(ctx, "missing", &dto.SettingsInput{})
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
