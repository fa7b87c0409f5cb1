package service

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"log/slog"
	"time"

	"github.com/aaravmahajanofficial/storefront-core/internal/api/middleware"
	"github.com/aaravmahajanofficial/storefront-core/internal/cache"
	"github.com/aaravmahajanofficial/storefront-core/internal/errors"
	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	repository "github.com/aaravmahajanofficial/storefront-core/internal/repositories"
)

// CatalogService resolves the product payloads buyers add to their cart.
type CatalogService interface {
	GetProduct(ctx context.Context, productID string) (models.RawLine, error)
}

type catalogService struct {
	repo  repository.CatalogRepository
	cache cache.Cache
	ttl   time.Duration
}

// NewCatalogService reads through c. A zero ttl uses the cache's default.
func NewCatalogService(repo repository.CatalogRepository, c cache.Cache, ttl time.Duration) CatalogService {
	return &catalogService{repo: repo, cache: c, ttl: ttl}
}

// GetProduct serves from the cache when it can. Cache failures are logged and
// fall through to the database.
func (s *catalogService) GetProduct(ctx context.Context, productID string) (models.RawLine, error) {
	logger := middleware.LoggerFromContext(ctx).With(slog.String("product_id", productID))

	if productID == "" {
		return nil, errors.InvalidLineError("Product id is required")
	}

	key := cache.Key(cache.ProductKeyPrefix, productID)

	var cached models.RawLine
	found, err := s.cache.Get(ctx, key, &cached)
	if err != nil {
		logger.Warn("Product cache read failed", slog.String("error", err.Error()))
	}
	if found {
		return cached, nil
	}

	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundError("Product not found").WithDetail(productID)
		}
		logger.Error("Failed to load product", slog.String("error", err.Error()))
		return nil, errors.DatabaseError("Failed to load product").WithError(err)
	}

	if err := s.cache.Set(ctx, key, product, s.ttl); err != nil {
		logger.Warn("Product cache write failed", slog.String("error", err.Error()))
	}

	return product, nil
}
