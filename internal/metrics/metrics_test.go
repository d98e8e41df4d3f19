package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCompletion(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveCompletion("gpt-4", 10, 4, 0.00054)
	m.ObserveCompletion("gpt-4", 2, 2, 0.00018)
	m.CompletionFailed("deepseek")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ChatCompletions.WithLabelValues("gpt-4", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChatCompletions.WithLabelValues("deepseek", "error")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.ChatTokens.WithLabelValues("gpt-4", "input")))
	assert.InDelta(t, 0.00072, testutil.ToFloat64(m.ChatCostUSD.WithLabelValues("gpt-4")), 1e-12)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveCompletion("gpt-4", 1, 1, 1)
	m.CompletionFailed("gpt-4")
	m.AdminCommand("add_project", true)
	m.RateLimited()
}

func TestGinMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(prometheus.NewRegistry())

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusOK, w.Code)
	m.RateLimited()

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.True(t, strings.Contains(body, `http_requests_total{method="GET",path="/ping",status="200"} 1`), body)
	assert.Contains(t, body, "chat_rate_limit_rejections_total 1")
}
