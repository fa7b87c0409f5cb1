package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/aaravmahajanofficial/storefront-core/internal/cache"
	"github.com/aaravmahajanofficial/storefront-core/internal/errors"
	"github.com/aaravmahajanofficial/storefront-core/internal/models"
)

// PendingCheckoutRepository records checkouts waiting on a hosted payment page.
// Records expire after ttl so abandoned payments do not accumulate.
type PendingCheckoutRepository struct {
	cache cache.Cache
	ttl   time.Duration
}

func NewPendingCheckoutRepo(c cache.Cache, ttl time.Duration) *PendingCheckoutRepository {
	return &PendingCheckoutRepository{cache: c, ttl: ttl}
}

func (r *PendingCheckoutRepository) Save(ctx context.Context, pending *models.PendingCheckout) error {
	if err := r.cache.Set(ctx, cache.Key(cache.PendingCheckoutKeyPrefix, pending.OrderID), pending, r.ttl); err != nil {
		return fmt.Errorf("saving pending checkout: %w", err)
	}

	return nil
}

// Load returns a NOT_FOUND AppError when no record exists for orderID.
func (r *PendingCheckoutRepository) Load(ctx context.Context, orderID string) (*models.PendingCheckout, error) {
	var pending models.PendingCheckout

	found, err := r.cache.Get(ctx, cache.Key(cache.PendingCheckoutKeyPrefix, orderID), &pending)
	if err != nil {
		return nil, fmt.Errorf("loading pending checkout: %w", err)
	}
	if !found {
		return nil, errors.NotFoundError("Pending checkout not found").WithDetail(orderID)
	}

	return &pending, nil
}

func (r *PendingCheckoutRepository) Delete(ctx context.Context, orderID string) error {
	if err := r.cache.Delete(ctx, cache.Key(cache.PendingCheckoutKeyPrefix, orderID)); err != nil {
		return fmt.Errorf("deleting pending checkout: %w", err)
	}

	return nil
}
