package echoapi

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
)

func init() {
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by route and status code",
		},
		[]string{"method", "route", "code"},
	)
	prometheus.MustRegister(httpRequests)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	prometheus.MustRegister(httpDuration)
}

// metricsMiddleware counts requests per route template (not per raw path, to bound cardinality).
func metricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			start := time.Now()
			if err := next(ctx); err != nil {
				ctx.Error(err) // commit the response so its status is known
			}

			req := ctx.Request()
			route := ctx.Path()
			if route == "" {
				route = "unmatched"
			}
			httpRequests.WithLabelValues(req.Method, route, strconv.Itoa(ctx.Response().Status)).Inc()
			httpDuration.WithLabelValues(req.Method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
