package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics tracks request counts and latency per route template.
type HTTPMetrics struct {
	requests       *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	authRejections *prometheus.CounterVec
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "method", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),
		authRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_rejections_total",
				Help: "Total number of unauthorized requests",
			},
			[]string{"reason"},
		),
	}
	reg.MustRegister(m.requests, m.duration, m.authRejections)
	return m
}

// Handler must be registered before the auth middleware so rejections are counted.
func (m *HTTPMetrics) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		// Route templates keep label cardinality bounded.
		path := c.Route().Path
		m.requests.WithLabelValues(path, c.Method(), strconv.Itoa(status)).Inc()
		m.duration.WithLabelValues(path, c.Method()).Observe(time.Since(start).Seconds())

		switch status {
		case fiber.StatusUnauthorized:
			m.authRejections.WithLabelValues("401_unauthorized").Inc()
		case fiber.StatusForbidden:
			m.authRejections.WithLabelValues("403_forbidden").Inc()
		}
		return err
	}
}
