package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"shop/internal/infra/metrics"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReservationResult(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())

	m.ReservationResult(metrics.ResultCreated, 2)
	m.ReservationResult(metrics.ResultCreated, 1)
	m.ReservationResult(metrics.ResultReleased, 0)

	assert.Equal(t, float64(3), testutil.ToFloat64(m.Reservations.WithLabelValues(metrics.ResultCreated)))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.Reservations.WithLabelValues(metrics.ResultReleased)))
}

// Nopは何度作っても登録で衝突しない
func TestNewNop(t *testing.T) {
	assert.NotPanics(t, func() {
		metrics.NewNop()
		metrics.NewNop()
	})
}

func TestEchoMiddlewareAndHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	e := echo.New()
	e.Use(m.EchoMiddleware())
	e.GET("/items/:id", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/boom", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusTeapot, "tea")
	})
	e.GET("/metrics", metrics.Handler(reg))

	for _, path := range []string{"/items/1", "/items/2", "/boom"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/items/:id", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/boom", "418")))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "shop_http_requests_total"))
}
