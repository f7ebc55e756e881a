package user

import (
	"context"

	"github.com/farm2markets/xprestrack/internal/model"
	"github.com/farm2markets/xprestrack/internal/user/dto"
)

type Repository interface {
	// FindByEmail matches case-insensitively and returns (nil, nil) when absent.
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// FindByID returns (nil, nil) for an unknown id.
	FindByID(ctx context.Context, id string) (*model.User, error)
	UpdateSettings(ctx context.Context, id string, settings *dto.SettingsInput) (*model.User, error)
	SaveQuickBooksToken(ctx context.Context, id string, token *model.QuickBooksToken) error
	ClearQuickBooks(ctx context.Context, id string) error
	// ListWhatsAppRecipients returns opted-in users, with or without a phone.
	ListWhatsAppRecipients(ctx context.Context) ([]model.User, error)
}
