package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	"github.com/aaravmahajanofficial/storefront-core/internal/utils"
	"github.com/google/uuid"
)

// CartRepository persists authenticated carts, one row per user with the lines
// stored as a JSON document.
type CartRepository interface {
	CreateCart(ctx context.Context, cart *models.StoredCart) error
	GetCartByUserID(ctx context.Context, userID uuid.UUID) (*models.StoredCart, error)
	UpdateCart(ctx context.Context, cart *models.StoredCart) error
}

const (
	// A concurrent insert for the same user wins; the loser sees sql.ErrNoRows
	// and should re-read.
	insertCartSQL = `
		INSERT INTO carts (id, user_id, lines, created_at, updated_at)
		VALUES($1, $2, $3, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
		RETURNING id, created_at, updated_at`

	selectCartByUserSQL = `
		SELECT id, user_id, lines, created_at, updated_at
		FROM carts
		WHERE user_id = $1`

	replaceCartLinesSQL = `
		UPDATE carts
		SET lines = $2, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`
)

type cartRepository struct {
	db *sql.DB
}

func NewCartRepo(db *sql.DB) CartRepository {
	return &cartRepository{db: db}
}

func encodeLines(lines []models.StoredLine) ([]byte, error) {
	if lines == nil {
		lines = []models.StoredLine{}
	}

	doc, err := json.Marshal(lines)
	if err != nil {
		return nil, fmt.Errorf("encoding cart lines: %w", err)
	}

	return doc, nil
}

func (r *cartRepository) CreateCart(ctx context.Context, cart *models.StoredCart) error {
	doc, err := encodeLines(cart.Lines)
	if err != nil {
		return err
	}

	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	return r.db.QueryRowContext(dbCtx, insertCartSQL, cart.ID, cart.UserID, doc).
		Scan(&cart.ID, &cart.CreatedAt, &cart.UpdatedAt)
}

// GetCartByUserID returns sql.ErrNoRows unwrapped when the user has never had a cart.
func (r *cartRepository) GetCartByUserID(ctx context.Context, userID uuid.UUID) (*models.StoredCart, error) {
	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	var (
		cart models.StoredCart
		doc  []byte
	)

	err := r.db.QueryRowContext(dbCtx, selectCartByUserSQL, userID).
		Scan(&cart.ID, &cart.UserID, &doc, &cart.CreatedAt, &cart.UpdatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("loading cart for user %s: %w", userID, err)
	}

	if err := json.Unmarshal(doc, &cart.Lines); err != nil {
		return nil, fmt.Errorf("decoding cart lines: %w", err)
	}
	if cart.Lines == nil {
		cart.Lines = []models.StoredLine{}
	}

	return &cart, nil
}

// UpdateCart replaces the stored lines and takes updated_at from the database.
// It returns sql.ErrNoRows when the cart row is gone.
func (r *cartRepository) UpdateCart(ctx context.Context, cart *models.StoredCart) error {
	doc, err := encodeLines(cart.Lines)
	if err != nil {
		return err
	}

	dbCtx, cancel := utils.WithDBTimeout(ctx)
	defer cancel()

	err = r.db.QueryRowContext(dbCtx, replaceCartLinesSQL, cart.ID, doc).Scan(&cart.UpdatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return err
	case err != nil:
		return fmt.Errorf("saving cart %s: %w", cart.ID, err)
	}

	return nil
}
