package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/aaravmahajanofficial/storefront-core/internal/api/middleware"
	appErrors "github.com/aaravmahajanofficial/storefront-core/internal/errors"
	"github.com/aaravmahajanofficial/storefront-core/internal/models"
	"github.com/aaravmahajanofficial/storefront-core/internal/pricing"
	"github.com/aaravmahajanofficial/storefront-core/internal/utils"
	"github.com/aaravmahajanofficial/storefront-core/internal/utils/response"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type QuoteHandler struct {
	validator *validator.Validate
}

func NewQuoteHandler() *QuoteHandler {
	return &QuoteHandler{validator: validator.New()}
}

// Quote prices one unit: GET /quote?price=&mrp=&gst_rate=&gst_mode=.
// mrp and gst_rate default to zero.
func (h *QuoteHandler) Quote() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logger := middleware.LoggerFromContext(r.Context())

		q := r.URL.Query()
		req := models.QuoteRequest{
			Price:   q.Get("price"),
			MRP:     q.Get("mrp"),
			TaxRate: q.Get("gst_rate"),
			TaxMode: q.Get("gst_mode"),
		}

		if err := utils.ValidateStruct(h.validator, &req); err != nil {
			var validationErrs validator.ValidationErrors
			if errors.As(err, &validationErrs) {
				response.ValidationError(w, validationErrs)
				return
			}
			response.Error(w, appErrors.ValidationError("Invalid input data"))
			return
		}

		price, err := amount("price", req.Price)
		if err != nil {
			response.Error(w, err)
			return
		}
		mrp, err := amount("mrp", req.MRP)
		if err != nil {
			response.Error(w, err)
			return
		}
		rate, err := amount("gst_rate", req.TaxRate)
		if err != nil {
			response.Error(w, err)
			return
		}

		quote := pricing.Quote(price, mrp, rate, models.ParseTaxMode(req.TaxMode))

		logger.Debug("Price quoted", slog.String("final_price", quote.FinalPrice.String()))
		response.Success(w, http.StatusOK, quote)
	}
}

func amount(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}

	d, ok := pricing.Parse(raw)
	if !ok || d.IsNegative() {
		return decimal.Zero, appErrors.AddValidationError(field, "must be a non-negative number")
	}

	return d, nil
}
