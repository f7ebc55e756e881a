package usecase

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/farm2markets/xprestrack/internal/apperr"
	"github.com/farm2markets/xprestrack/internal/cache"
	"github.com/farm2markets/xprestrack/internal/lock"
	"github.com/farm2markets/xprestrack/internal/logger"
	"github.com/farm2markets/xprestrack/internal/model"
	"github.com/farm2markets/xprestrack/internal/product/dto"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	mu       sync.Mutex
	products []model.Product
	lists    int
}

func (r *memRepo) Create(_ context.Context, p *model.Product) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products = append(r.products, *p)
	return p, nil
}

func (r *memRepo) FindByName(_ context.Context, name string) (*model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if strings.EqualFold(strings.TrimSpace(p.Name), strings.TrimSpace(name)) {
			cp := p
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *memRepo) FindAll(_ context.Context, _ *dto.ProductFilters) ([]model.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists++
	return append([]model.Product(nil), r.products...), nil
}

func newUseCase(repo *memRepo, c cache.Cache) *productUseCase {
	return NewProductUseCase(repo, c, lock.NewLocalLocker(), logger.NewNop()).(*productUseCase)
}

func TestCreateProductRejectsDuplicate(t *testing.T) {
	repo := &memRepo{}
	uc := newUseCase(repo, nil)
	ctx := context.Background()

	p, err := uc.CreateProduct(ctx, &dto.CreateProductInput{Name: " Ribeye ", Category: "Beef"})
	require.NoError(t, err)
	assert.Equal(t, "Ribeye", p.Name)
	assert.False(t, p.IsEmergency)

	_, err = uc.CreateProduct(ctx, &dto.CreateProductInput{Name: "ribeye"})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, err = uc.CreateProduct(ctx, &dto.CreateProductInput{Name: "  "})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestEnsureEmergencyProduct(t *testing.T) {
	repo := &memRepo{}
	uc := newUseCase(repo, nil)
	ctx := context.Background()

	p, created, err := uc.EnsureEmergencyProduct(ctx, &dto.CreateProductInput{Name: "Brisket", CreatedBy: "rec1"})
	require.NoError(t, err)
	assert.True(t, created)
	assert.True(t, p.IsEmergency)

	again, created, err := uc.EnsureEmergencyProduct(ctx, &dto.CreateProductInput{Name: "brisket"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, p.ID, again.ID)
}

func TestEnsureEmergencyProductConcurrent(t *testing.T) {
	repo := &memRepo{}
	uc := newUseCase(repo, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := uc.EnsureEmergencyProduct(context.Background(), &dto.CreateProductInput{Name: "Tri-tip"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Len(t, repo.products, 1)
}

func TestGetByNameNotFound(t *testing.T) {
	uc := newUseCase(&memRepo{}, nil)
	_, err := uc.GetByName(context.Background(), "Unknown")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListProductsUsesCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	repo := &memRepo{products: []model.Product{{ID: "1", Name: "Ribeye"}}}
	uc := newUseCase(repo, cache.NewRedisCache(client))
	ctx := context.Background()

	first, err := uc.ListProducts(ctx, &dto.ProductFilters{})
	require.NoError(t, err)
	second, err := uc.ListProducts(ctx, &dto.ProductFilters{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.lists)

	uc.invalidateListCache(ctx)
	_, err = uc.ListProducts(ctx, &dto.ProductFilters{})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.lists)
}

func TestCreateProductInvalidatesCachedLists(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	repo := &memRepo{products: []model.Product{{ID: "1", Name: "Ribeye"}}}
	uc := newUseCase(repo, cache.NewRedisCache(client))
	ctx := context.Background()

	before, err := uc.ListProducts(ctx, &dto.ProductFilters{})
	require.NoError(t, err)
	require.Len(t, before, 1)

	_, err = uc.CreateProduct(ctx, &dto.CreateProductInput{Name: "Brisket"})
	require.NoError(t, err)
	after, err := uc.ListProducts(ctx, &dto.ProductFilters{})
	require.NoError(t, err)
	assert.Len(t, after, 2)

	_, created, err := uc.EnsureEmergencyProduct(ctx, &dto.CreateProductInput{Name: "Oxtail"})
	require.NoError(t, err)
	require.True(t, created)
	after, err = uc.ListProducts(ctx, &dto.ProductFilters{})
	require.NoError(t, err)
	assert.Len(t, after, 3)
}
