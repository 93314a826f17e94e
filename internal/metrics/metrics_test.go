package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pharmapos/internal/domain"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounters(t *testing.T) {
	r := New()
	r.TransactionGroupPosted(domain.SourceSale)
	r.TransactionGroupPosted(domain.SourceSale)
	r.StockMoved(domain.MovementSale, -3)
	r.IntegrityChecked(true, 4)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.groupsPosted.WithLabelValues("sale")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.stockMoved.WithLabelValues("sale", "out")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.ledgerBalance))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.lowStock))
}

func TestInstrumentUsesRoutePattern(t *testing.T) {
	r := New()
	router := chi.NewRouter()
	router.Use(r.Instrument)
	router.Get("/products/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	router.Handle("/metrics", r.Handler())

	for _, path := range []string{"/products/1", "/products/2"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(r.httpRequests.WithLabelValues("GET", "/products/{id}", "418")))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "pharmapos_http_requests_total"))
}
