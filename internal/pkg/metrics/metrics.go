package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trailmeet",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "trailmeet",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	// Location pipeline metrics
	PositionsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trailmeet",
		Subsystem: "location",
		Name:      "positions_processed_total",
		Help:      "Total device position samples run through detection",
	})

	PositionsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trailmeet",
		Subsystem: "location",
		Name:      "positions_dropped_total",
		Help:      "Position samples dropped because the monitor queue was full",
	})

	DeliveryErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trailmeet",
		Subsystem: "location",
		Name:      "delivery_errors_total",
		Help:      "Transient position delivery errors reported by devices",
	})

	VisitsDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trailmeet",
		Subsystem: "visits",
		Name:      "detected_total",
		Help:      "Landmark visits credited and emitted",
	})

	VisitsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trailmeet",
		Subsystem: "visits",
		Name:      "suppressed_total",
		Help:      "Proximity matches suppressed as already visited",
	})

	AuthPrompts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trailmeet",
		Subsystem: "authz",
		Name:      "prompts_total",
		Help:      "Authorization prompts requested from devices",
	}, []string{"level"})

	PresenceRefreshes = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "trailmeet",
		Subsystem: "presence",
		Name:      "refreshes_total",
		Help:      "Friend-presence refresh iterations executed",
	})

	ActiveMonitors = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "trailmeet",
		Subsystem: "location",
		Name:      "active_monitors",
		Help:      "Currently running per-user location monitors",
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "trailmeet",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trailmeet",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "trailmeet",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "trailmeet",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "trailmeet",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "trailmeet",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)

		return err
	}
}

// Handler returns a Fiber handler serving the Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics updates database pool gauges from pgx pool stats.
func UpdateDBPoolMetrics(stat interface{}) {
	type poolStat interface {
		AcquiredConns() int32
		IdleConns() int32
		TotalConns() int32
	}

	if s, ok := stat.(poolStat); ok {
		DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
		DBPoolConnsIdle.Set(float64(s.IdleConns()))
		DBPoolConnsOpen.Set(float64(s.TotalConns()))
	}
}
