package usecase

import (
	"context"
	"strings"

	"github.com/farm2markets/xprestrack/internal/apperr"
	"github.com/farm2markets/xprestrack/internal/logger"
	"github.com/farm2markets/xprestrack/internal/model"
	"github.com/farm2markets/xprestrack/internal/notification"
	"github.com/farm2markets/xprestrack/internal/user"
	"github.com/farm2markets/xprestrack/internal/user/dto"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var errInvalidCredentials = apperr.Unauthorized("invalid email or password")

// dummyHash keeps the cost of a failed lookup equal to a failed password check.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("xprestrack-dummy-password"), bcrypt.MinCost)

type userUseCase struct {
	repo   user.Repository
	logger logger.ZapLogger
}

func NewUserUseCase(repo user.Repository, log logger.ZapLogger) user.UseCase {
	return &userUseCase{
		repo:   repo,
		logger: log,
	}
}

func (uc *userUseCase) Login(ctx context.Context, input *dto.LoginInput) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if email == "" || input.Password == "" {
		return nil, apperr.Validation("email and password are required")
	}

	u, err := uc.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil || u.PasswordHash == "" {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(input.Password))
		uc.logger.Warn("login failed: unknown email", zap.String("email", email))
		return nil, errInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(input.Password)); err != nil {
		uc.logger.Warn("login failed: wrong password", zap.String("user_id", u.ID))
		return nil, errInvalidCredentials
	}
	if !u.Role.Valid() {
		uc.logger.Error("user has an unknown role", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
		return nil, apperr.Forbidden("account has no valid role")
	}

	uc.logger.Info("user logged in", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	return u, nil
}

func (uc *userUseCase) GetByID(ctx context.Context, id string) (*model.User, error) {
	u, err := uc.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound("user", id)
	}
	return u, nil
}

func (uc *userUseCase) UpdateSettings(ctx context.Context, id string, input *dto.SettingsInput) (*model.User, error) {
	current, err := uc.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	settings := &dto.SettingsInput{WhatsAppOptIn: input.WhatsAppOptIn}
	phone := current.Phone
	if input.Phone != nil {
		raw := strings.TrimSpace(*input.Phone)
		phone = ""
		if raw != "" {
			phone = notification.NormalizePhone(raw)
			if phone == "" {
				return nil, apperr.Validation("phone must be a valid international number")
			}
		}
		settings.Phone = &phone
	}

	optIn := current.WhatsAppOptIn
	if input.WhatsAppOptIn != nil {
		optIn = *input.WhatsAppOptIn
	}
	if optIn && phone == "" {
		return nil, apperr.Validation("a phone number is required for WhatsApp notifications")
	}

	updated, err := uc.repo.UpdateSettings(ctx, id, settings)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, apperr.NotFound("user", id)
	}
	uc.logger.Info("user settings updated", zap.String("user_id", id), zap.Bool("whatsapp_opt_in", updated.WhatsAppOptIn))
	return updated, nil
}
