package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aaravmahajanofficial/storefront-core/internal/cache"
	"github.com/aaravmahajanofficial/storefront-core/internal/models"
)

// GuestCartRepository keeps anonymous carts in the cache under the guest id.
// Every save extends the cart's lifetime by ttl.
type GuestCartRepository struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewGuestCartRepo(c cache.Cache, ttl time.Duration) *GuestCartRepository {
	return &GuestCartRepository{cache: c, ttl: ttl}
}

// LoadCart returns an empty slice for a guest that has never saved a cart.
func (r *GuestCartRepository) LoadCart(ctx context.Context, guestID string) ([]models.RawLine, error) {
	var lines []models.RawLine

	found, err := r.cache.Get(ctx, cache.Key(cache.GuestCartKeyPrefix, guestID), &lines)
	if err != nil {
		return nil, fmt.Errorf("loading guest cart: %w", err)
	}
	if !found || lines == nil {
		return []models.RawLine{}, nil
	}

	return lines, nil
}

func (r *GuestCartRepository) SaveCart(ctx context.Context, guestID string, lines []models.RawLine) error {
	if lines == nil {
		lines = []models.RawLine{}
	}

	if err := r.cache.Set(ctx, cache.Key(cache.GuestCartKeyPrefix, guestID), lines, r.ttl); err != nil {
		return fmt.Errorf("saving guest cart: %w", err)
	}

	return nil
}

func (r *GuestCartRepository) ClearCart(ctx context.Context, guestID string) error {
	if err := r.cache.Delete(ctx, cache.Key(cache.GuestCartKeyPrefix, guestID)); err != nil {
		return fmt.Errorf("clearing guest cart: %w", err)
	}

	return nil
}
