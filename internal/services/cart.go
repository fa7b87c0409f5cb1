package service

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/aaravmahajanofficial/storefront-core/internal/api/middleware"
	"github.com/aaravmahajanofficial/storefront-core/internal/errors"
	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	repository "github.com/aaravmahajanofficial/storefront-core/internal/repositories"
	"github.com/google/uuid"
)

// CartService is the server side of the authenticated cart: the service the
// storefront's AuthBackend talks to.
type CartService interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*models.StoredCart, error)
	AddLine(ctx context.Context, userID uuid.UUID, req *models.AddLineRequest) (*models.StoredCart, error)
	UpdateLine(ctx context.Context, userID, lineID uuid.UUID, quantity int) (*models.StoredCart, error)
	RemoveLine(ctx context.Context, userID, lineID uuid.UUID) (*models.StoredCart, error)
	ClearCart(ctx context.Context, userID uuid.UUID) error
}

type cartService struct {
	repo  repository.CartRepository
	now   func() time.Time
	locks sync.Map
}

func NewCartService(repo repository.CartRepository) CartService {
	return &cartService{repo: repo, now: time.Now}
}

// GetCart returns the user's cart, creating an empty one on first access.
func (s *cartService) GetCart(ctx context.Context, userID uuid.UUID) (*models.StoredCart, error) {
	cart, err := s.repo.GetCartByUserID(ctx, userID)
	if err == nil {
		return cart, nil
	}
	if !stdErrors.Is(err, sql.ErrNoRows) {
		return nil, errors.DatabaseError("Failed to fetch cart").WithError(err)
	}

	cart = &models.StoredCart{
		ID:        uuid.New(),
		UserID:    userID,
		Lines:     []models.StoredLine{},
		CreatedAt: s.now(),
		UpdatedAt: s.now(),
	}

	err = s.repo.CreateCart(ctx, cart)
	switch {
	case err == nil:
		middleware.LoggerFromContext(ctx).Info("Cart created", slog.String("user_id", userID.String()))
		return cart, nil
	case stdErrors.Is(err, sql.ErrNoRows):
		// Lost a race with another first request for the same user.
		existing, getErr := s.repo.GetCartByUserID(ctx, userID)
		if getErr != nil {
			return nil, errors.DatabaseError("Failed to fetch cart").WithError(getErr)
		}
		return existing, nil
	default:
		return nil, errors.DatabaseError("Failed to create cart").WithError(err)
	}
}

// AddLine adds quantity of a product; a line with the same product and size
// grows instead of being duplicated.
func (s *cartService) AddLine(ctx context.Context, userID uuid.UUID, req *models.AddLineRequest) (*models.StoredCart, error) {
	productID := productIDOf(req.Product)
	if productID == "" {
		return nil, errors.InvalidLineError("Product id is required")
	}

	quantity := max(req.Quantity, 1)

	return s.modify(ctx, userID, func(cart *models.StoredCart) error {
		for i := range cart.Lines {
			if sameIdentity(cart.Lines[i], productID, req.Size) {
				cart.Lines[i].Quantity += quantity
				return nil
			}
		}

		cart.Lines = append(cart.Lines, models.StoredLine{
			ID:        uuid.New(),
			ProductID: productID,
			Size:      normalizedSize(req.Size),
			Quantity:  quantity,
			Product:   storedProduct(req.Product),
			AddedAt:   s.now(),
		})

		return nil
	})
}

// UpdateLine sets a line's quantity. Zero or less removes it.
func (s *cartService) UpdateLine(ctx context.Context, userID, lineID uuid.UUID, quantity int) (*models.StoredCart, error) {
	if quantity <= 0 {
		return s.RemoveLine(ctx, userID, lineID)
	}

	return s.modify(ctx, userID, func(cart *models.StoredCart) error {
		for i := range cart.Lines {
			if cart.Lines[i].ID == lineID {
				cart.Lines[i].Quantity = quantity
				return nil
			}
		}

		return errors.NotFoundError("Cart line not found").WithDetail(lineID.String())
	})
}

func (s *cartService) RemoveLine(ctx context.Context, userID, lineID uuid.UUID) (*models.StoredCart, error) {
	return s.modify(ctx, userID, func(cart *models.StoredCart) error {
		for i := range cart.Lines {
			if cart.Lines[i].ID == lineID {
				cart.Lines = append(cart.Lines[:i], cart.Lines[i+1:]...)
				return nil
			}
		}

		return errors.NotFoundError("Cart line not found").WithDetail(lineID.String())
	})
}

func (s *cartService) ClearCart(ctx context.Context, userID uuid.UUID) error {
	_, err := s.modify(ctx, userID, func(cart *models.StoredCart) error {
		cart.Lines = []models.StoredLine{}
		return nil
	})

	return err
}

// modify runs a read-modify-write on the user's cart. Writes for one user are
// serialised within this process.
func (s *cartService) modify(ctx context.Context, userID uuid.UUID, fn func(cart *models.StoredCart) error) (*models.StoredCart, error) {
	lock, _ := s.locks.LoadOrStore(userID, &sync.Mutex{})
	mu := lock.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()

	cart, err := s.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := fn(cart); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateCart(ctx, cart); err != nil {
		return nil, errors.DatabaseError("Failed to update cart").WithError(err)
	}

	return cart, nil
}

func productIDOf(product models.RawLine) string {
	return firstString(product, "product_id", "productId", "_id", "id")
}

func normalizedSize(size *string) *string {
	if size == nil || *size == "" {
		return nil
	}
	s := *size

	return &s
}

func sameIdentity(line models.StoredLine, productID string, size *string) bool {
	if line.ProductID != productID {
		return false
	}

	want := normalizedSize(size)
	have := normalizedSize(line.Size)
	if want == nil || have == nil {
		return want == nil && have == nil
	}

	return *want == *have
}

// storedProduct keeps the catalogue payload but drops line-level fields the
// stored line owns itself.
func storedProduct(product models.RawLine) models.RawLine {
	out := make(models.RawLine, len(product))
	for k, v := range product {
		switch k {
		case "quantity", "qty", "selected_size", "selectedSize", "line_id", "cart_item_id":
			continue
		}
		out[k] = v
	}

	return out
}
