package usecase

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/farm2markets/xprestrack/internal/apperr"
	"github.com/farm2markets/xprestrack/internal/cache"
	"github.com/farm2markets/xprestrack/internal/lock"
	"github.com/farm2markets/xprestrack/internal/logger"
	"github.com/farm2markets/xprestrack/internal/model"
	"github.com/farm2markets/xprestrack/internal/product"
	"github.com/farm2markets/xprestrack/internal/product/dto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	listCachePrefix = "products:list:"
	listCacheTTL    = 5 * time.Minute
)

type productUseCase struct {
	repo   product.Repository
	cache  cache.Cache
	locker lock.Locker
	logger logger.ZapLogger
}

func NewProductUseCase(repo product.Repository, c cache.Cache, locker lock.Locker, log logger.ZapLogger) product.UseCase {
	if c == nil {
		c = cache.Noop{}
	}
	return &productUseCase{
		repo:   repo,
		cache:  c,
		locker: locker,
		logger: log,
	}
}

func (uc *productUseCase) CreateProduct(ctx context.Context, input *dto.CreateProductInput) (*model.Product, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperr.Validation("product name is required")
	}

	release, err := uc.locker.Lock(ctx, productLockKey(name))
	if err != nil {
		return nil, err
	}
	defer release()

	existing, err := uc.repo.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict(fmt.Sprintf("product %q already exists", existing.Name))
	}
	return uc.create(ctx, input, name, false)
}

func (uc *productUseCase) EnsureEmergencyProduct(ctx context.Context, input *dto.CreateProductInput) (*model.Product, bool, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, false, apperr.Validation("product name is required")
	}

	release, err := uc.locker.Lock(ctx, productLockKey(name))
	if err != nil {
		return nil, false, err
	}
	defer release()

	existing, err := uc.repo.FindByName(ctx, name)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	p, err := uc.create(ctx, input, name, true)
	if err != nil {
		return nil, false, err
	}
	uc.logger.Info("emergency product created",
		zap.String("product", p.Name),
		zap.String("created_by", p.CreatedBy),
	)
	return p, true, nil
}

func (uc *productUseCase) create(ctx context.Context, input *dto.CreateProductInput, name string, emergency bool) (*model.Product, error) {
	p := &model.Product{
		ID:          uuid.New().String(),
		Name:        name,
		Category:    strings.TrimSpace(input.Category),
		Type:        strings.TrimSpace(input.Type),
		IsEmergency: emergency,
		CreatedBy:   input.CreatedBy,
		CreatedAt:   time.Now().UTC(),
	}

	created, err := uc.repo.Create(ctx, p)
	if err != nil {
		return nil, err
	}

	uc.invalidateListCache(ctx)

	return created, nil
}

func (uc *productUseCase) GetByName(ctx context.Context, name string) (*model.Product, error) {
	p, err := uc.repo.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperr.NotFound("product", name)
	}
	return p, nil
}

func (uc *productUseCase) ListProducts(ctx context.Context, filters *dto.ProductFilters) ([]model.Product, error) {
	cacheKey, err := generateCacheKey(filters)
	if err == nil {
		if val, ok, err := uc.cache.Get(ctx, cacheKey); err == nil && ok {
			var products []model.Product
			if err := json.Unmarshal(val, &products); err == nil {
				return products, nil
			}
		}
	}

	products, err := uc.repo.FindAll(ctx, filters)
	if err != nil {
		return nil, err
	}

	if cacheKey != "" {
		if data, err := json.Marshal(products); err == nil {
			if err := uc.cache.Set(ctx, cacheKey, data, listCacheTTL); err != nil {
				uc.logger.Warn("failed to cache product list", zap.Error(err))
			}
		}
	}
	return products, nil
}

func (uc *productUseCase) invalidateListCache(ctx context.Context) {
	if err := uc.cache.DeletePrefix(ctx, listCachePrefix); err != nil && !errors.Is(err, context.Canceled) {
		uc.logger.Warn("failed to invalidate product list cache", zap.Error(err))
	}
}

func generateCacheKey(filters *dto.ProductFilters) (string, error) {
	data, err := json.Marshal(filters)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%x", listCachePrefix, md5.Sum(data)), nil
}

func productLockKey(name string) string {
	return "lock:product:" + strings.ToLower(name)
}
