package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector the server exports. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	gatherer prometheus.Gatherer

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	ChatCompletions     *prometheus.CounterVec
	ChatTokens          *prometheus.CounterVec
	ChatCostUSD         *prometheus.CounterVec
	AdminCommands       *prometheus.CounterVec
	RateLimitRejections prometheus.Counter
}

// New registers the collectors on reg. Tests pass prometheus.NewRegistry().
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		gatherer: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		ChatCompletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_completions_total",
			Help: "Provider completions by model and outcome",
		}, []string{"model", "outcome"}),
		ChatTokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_tokens_total",
			Help: "Estimated tokens by model and direction",
		}, []string{"model", "direction"}),
		ChatCostUSD: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_cost_usd_total",
			Help: "Estimated provider cost in USD",
		}, []string{"model"}),
		AdminCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_commands_total",
			Help: "Admin commands by type and outcome",
		}, []string{"type", "outcome"}),
		RateLimitRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_rate_limit_rejections_total",
			Help: "Chat requests rejected by the rate limiter",
		}),
	}
	reg.MustRegister(
		m.HTTPRequestsTotal, m.HTTPRequestDuration,
		m.ChatCompletions, m.ChatTokens, m.ChatCostUSD,
		m.AdminCommands, m.RateLimitRejections,
	)
	return m
}

func (m *Metrics) ObserveCompletion(model string, inputTokens, outputTokens int, cost float64) {
	if m == nil {
		return
	}
	m.ChatCompletions.WithLabelValues(model, "ok").Inc()
	m.ChatTokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	m.ChatTokens.WithLabelValues(model, "output").Add(float64(outputTokens))
	m.ChatCostUSD.WithLabelValues(model).Add(cost)
}

func (m *Metrics) CompletionFailed(model string) {
	if m == nil {
		return
	}
	m.ChatCompletions.WithLabelValues(model, "error").Inc()
}

func (m *Metrics) AdminCommand(kind string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.AdminCommands.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) RateLimited() {
	if m == nil {
		return
	}
	m.RateLimitRejections.Inc()
}

// GinMiddleware records request counts and latency per route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		labels := prometheus.Labels{"method": c.Request.Method, "path": path, "status": status}
		m.HTTPRequestsTotal.With(labels).Inc()
		m.HTTPRequestDuration.With(labels).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
