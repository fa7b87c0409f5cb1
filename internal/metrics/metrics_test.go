package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/checkout/{id}", func(w http.ResponseWriter, r *http.Request) {})
	mux.HandleFunc("POST /api/v1/checkout/{id}/submit", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
	})
	handler := Middleware(mux)

	t.Run("Labels By Route Pattern", func(t *testing.T) {
		// Arrange
		counter := httpRequests.WithLabelValues("/api/v1/checkout/{id}", http.MethodGet, "2xx")
		before := testutil.ToFloat64(counter)

		// Act
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/checkout/abc", nil))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/checkout/def", nil))

		// Assert
		assert.InDelta(t, before+2, testutil.ToFloat64(counter), 0)
		assert.InDelta(t, 0, testutil.ToFloat64(httpInFlight), 0)
	})

	t.Run("Status Class", func(t *testing.T) {
		// Arrange
		counter := httpRequests.WithLabelValues("/api/v1/checkout/{id}/submit", http.MethodPost, "4xx")
		before := testutil.ToFloat64(counter)

		// Act
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/checkout/abc/submit", nil))

		// Assert
		assert.InDelta(t, before+1, testutil.ToFloat64(counter), 0)
	})

	t.Run("Unmatched Routes Share A Label", func(t *testing.T) {
		// Arrange
		counter := httpRequests.WithLabelValues("unmatched", http.MethodGet, "4xx")
		before := testutil.ToFloat64(counter)

		// Act
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/1", nil))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope/2", nil))

		// Assert
		assert.InDelta(t, before+2, testutil.ToFloat64(counter), 0)
	})
}

func TestDomainCounters(t *testing.T) {
	// Arrange
	success := checkoutsTotal.WithLabelValues("success")
	before := testutil.ToFloat64(success)
	violations := testutil.ToFloat64(stockViolationsTotal)

	// Act
	RecordCheckout("success")
	RecordStockViolations(3)
	SetLiveCarts(4)

	// Assert
	assert.InDelta(t, before+1, testutil.ToFloat64(success), 0)
	assert.InDelta(t, violations+3, testutil.ToFloat64(stockViolationsTotal), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(liveCarts), 0)
}

func TestHandlerExposesStorefrontMetrics(t *testing.T) {
	// Arrange
	RecordStockPoll("ok")
	rr := httptest.NewRecorder()

	// Act
	Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	// Assert
	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.True(t, strings.Contains(body, "storefront_stock_polls_total"))
	assert.Contains(t, body, "go_goroutines")
}
