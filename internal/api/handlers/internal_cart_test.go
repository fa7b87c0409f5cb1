package handlers_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aaravmahajanofficial/storefront-core/internal/api/handlers"
	appErrors "github.com/aaravmahajanofficial/storefront-core/internal/errors"
	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	"github.com/aaravmahajanofficial/storefront-core/internal/services/mocks"
	"github.com/aaravmahajanofficial/storefront-core/internal/testutils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type internalCartPayload struct {
	Lines    []models.RawLine `json:"lines"`
	Complete bool             `json:"complete"`
}

func storedCart(userID uuid.UUID, lines ...models.StoredLine) *models.StoredCart {
	if lines == nil {
		lines = []models.StoredLine{}
	}

	return &models.StoredCart{ID: uuid.New(), UserID: userID, Lines: lines, CreatedAt: time.Now(), UpdatedAt: time.Now()}
}

func TestInternalCartHandler_GetCart(t *testing.T) {
	userID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		// Arrange
		svc := mocks.NewCartService(t)
		handler := handlers.NewInternalCartHandler(svc)
		lineID := uuid.New()
		svc.On("GetCart", mock.Anything, userID).Return(storedCart(userID, models.StoredLine{
			ID:        lineID,
			ProductID: "p-1",
			Quantity:  2,
			Product:   models.RawLine{"name": "Kurta", "price": "799"},
		}), nil).Once()

		req := testutils.CreateTestRequestWithContext(http.MethodGet, "/internal/cart", nil, userID, nil)
		rr := httptest.NewRecorder()

		// Act
		handler.GetCart().ServeHTTP(rr, req)

		// Assert
		assert.Equal(t, http.StatusOK, rr.Code)

		var got internalCartPayload
		decodeData(t, rr, &got)
		assert.True(t, got.Complete)
		require.Len(t, got.Lines, 1)
		assert.Equal(t, lineID.String(), got.Lines[0]["id"])
		assert.Equal(t, "p-1", got.Lines[0]["product_id"])
		product, ok := got.Lines[0]["product"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "Kurta", product["name"])
	})

	t.Run("Unauthorized", func(t *testing.T) {
		// Arrange
		handler := handlers.NewInternalCartHandler(mocks.NewCartService(t))
		req := testutils.CreateTestRequestWithoutContext(http.MethodGet, "/internal/cart", nil, nil)
		rr := httptest.NewRecorder()

		// Act
		handler.GetCart().ServeHTTP(rr, req)

		// Assert
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})
}

func TestInternalCartHandler_AddLine(t *testing.T) {
	userID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		// Arrange
		svc := mocks.NewCartService(t)
		handler := handlers.NewInternalCartHandler(svc)
		svc.On("AddLine", mock.Anything, userID, mock.MatchedBy(func(req *models.AddLineRequest) bool {
			return req.Quantity == 1 && req.Product["id"] == "p-9" && req.Size != nil && *req.Size == "L"
		})).Return(storedCart(userID, models.StoredLine{ID: uuid.New(), ProductID: "p-9", Quantity: 1, Size: ptr("L")}), nil).Once()

		body := []byte(`{"product":{"id":"p-9","name":"Shirt"},"quantity":1,"size":"L"}`)
		req := testutils.CreateTestRequestWithContext(http.MethodPost, "/internal/cart/lines", bytes.NewReader(body), userID, nil)
		rr := httptest.NewRecorder()

		// Act
		handler.AddLine().ServeHTTP(rr, req)

		// Assert
		assert.Equal(t, http.StatusOK, rr.Code)

		var got internalCartPayload
		decodeData(t, rr, &got)
		require.Len(t, got.Lines, 1)
		assert.Equal(t, "L", got.Lines[0]["selected_size"])
	})

	t.Run("Missing Product", func(t *testing.T) {
		// Arrange
		handler := handlers.NewInternalCartHandler(mocks.NewCartService(t))
		req := testutils.CreateTestRequestWithContext(http.MethodPost, "/internal/cart/lines", bytes.NewReader([]byte(`{"quantity":1}`)), userID, nil)
		rr := httptest.NewRecorder()

		// Act
		handler.AddLine().ServeHTTP(rr, req)

		// Assert
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, decodeError(t, rr).Details, "Field Product is required")
	})
}

func TestInternalCartHandler_UpdateLine(t *testing.T) {
	userID := uuid.New()
	lineID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		// Arrange
		svc := mocks.NewCartService(t)
		handler := handlers.NewInternalCartHandler(svc)
		svc.On("UpdateLine", mock.Anything, userID, lineID, 3).
			Return(storedCart(userID, models.StoredLine{ID: lineID, ProductID: "p-1", Quantity: 3}), nil).Once()

		req := testutils.CreateTestRequestWithContext(http.MethodPatch, "/internal/cart/lines/"+lineID.String(), bytes.NewReader([]byte(`{"quantity":3}`)), userID, map[string]string{"id": lineID.String()})
		rr := httptest.NewRecorder()

		// Act
		handler.UpdateLine().ServeHTTP(rr, req)

		// Assert
		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("Unknown Line", func(t *testing.T) {
		// Arrange
		svc := mocks.NewCartService(t)
		handler := handlers.NewInternalCartHandler(svc)
		svc.On("UpdateLine", mock.Anything, userID, lineID, 3).Return(nil, appErrors.NotFoundError("Cart line not found")).Once()

		req := testutils.CreateTestRequestWithContext(http.MethodPatch, "/internal/cart/lines/"+lineID.String(), bytes.NewReader([]byte(`{"quantity":3}`)), userID, map[string]string{"id": lineID.String()})
		rr := httptest.NewRecorder()

		// Act
		handler.UpdateLine().ServeHTTP(rr, req)

		// Assert
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("Invalid Line ID", func(t *testing.T) {
		// Arrange
		handler := handlers.NewInternalCartHandler(mocks.NewCartService(t))
		req := testutils.CreateTestRequestWithContext(http.MethodPatch, "/internal/cart/lines/abc", bytes.NewReader([]byte(`{"quantity":3}`)), userID, map[string]string{"id": "abc"})
		rr := httptest.NewRecorder()

		// Act
		handler.UpdateLine().ServeHTTP(rr, req)

		// Assert
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestInternalCartHandler_RemoveAndClear(t *testing.T) {
	userID := uuid.New()

	t.Run("Remove Line", func(t *testing.T) {
		// Arrange
		lineID := uuid.New()
		svc := mocks.NewCartService(t)
		handler := handlers.NewInternalCartHandler(svc)
		svc.On("RemoveLine", mock.Anything, userID, lineID).Return(storedCart(userID), nil).Once()

		req := testutils.CreateTestRequestWithContext(http.MethodDelete, "/internal/cart/lines/"+lineID.String(), nil, userID, map[string]string{"id": lineID.String()})
		rr := httptest.NewRecorder()

		// Act
		handler.RemoveLine().ServeHTTP(rr, req)

		// Assert
		assert.Equal(t, http.StatusOK, rr.Code)

		var got internalCartPayload
		decodeData(t, rr, &got)
		assert.Empty(t, got.Lines)
	})

	t.Run("Clear Cart", func(t *testing.T) {
		// Arrange
		svc := mocks.NewCartService(t)
		handler := handlers.NewInternalCartHandler(svc)
		svc.On("ClearCart", mock.Anything, userID).Return(nil).Once()

		req := testutils.CreateTestRequestWithContext(http.MethodDelete, "/internal/cart", nil, userID, nil)
		rr := httptest.NewRecorder()

		// Act
		handler.ClearCart().ServeHTTP(rr, req)

		// Assert
		assert.Equal(t, http.StatusNoContent, rr.Code)
	})
}
