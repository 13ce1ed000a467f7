package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveRequest("/health", "200", 1.5)
		m.Checkout("order", "ok")
		m.Transition("pending", "confirmed")
		m.VerifyAttempt("pending")
		m.StockRestored()
	})
}

func TestMetrics_Records(t *testing.T) {
	m := New()
	m.Checkout("order", "ok")
	m.Checkout("order", "ok")
	m.Checkout("quote", "insufficient_stock")
	m.Transition("pending", "cancelled")
	m.StockRestored()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Checkouts.WithLabelValues("order", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Checkouts.WithLabelValues("quote", "insufficient_stock")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("pending", "cancelled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StockRestores))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveRequest("/user/checkout", "201", 12)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body, err := io.ReadAll(w.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `furniture_orders_http_requests_total{handler="/user/checkout",status="201"} 1`)
}
