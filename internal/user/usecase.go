package user

import (
	"context"

	"github.com/farm2markets/xprestrack/internal/model"
	"github.com/farm2markets/xprestrack/internal/user/dto"
)

type UseCase interface {
	Login(ctx context.Context, input *dto.LoginInput) (*model.User, error)
	GetByID(ctx context.Context, id string) (*model.User, error)
	UpdateSettings(ctx context.Context, id string, input *dto.SettingsInput) (*model.User, error)
}
