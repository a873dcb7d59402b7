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
		Namespace: "sarmap",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sarmap",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sarmap",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Annotation engine metrics
	ShapesCommitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sarmap",
		Subsystem: "engine",
		Name:      "shapes_committed_total",
		Help:      "Total shapes committed to an overlay registry",
	}, []string{"kind"})

	ValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sarmap",
		Subsystem: "engine",
		Name:      "validation_failures_total",
		Help:      "Operator actions rejected by the engine",
	}, []string{"op"})

	ListenerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sarmap",
		Subsystem: "engine",
		Name:      "listener_errors_total",
		Help:      "Annotation listener callbacks that returned an error",
	}, []string{"event"})

	ZoneAssignments = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sarmap",
		Subsystem: "engine",
		Name:      "zone_assignments_total",
		Help:      "Total zone to team assignments",
	})

	ActiveWorkspaces = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sarmap",
		Subsystem: "engine",
		Name:      "active_workspaces",
		Help:      "Incident workspaces currently loaded in memory",
	})

	WorkspaceTaskDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sarmap",
		Subsystem: "engine",
		Name:      "task_duration_seconds",
		Help:      "Time spent running one workspace task including its microtasks",
		Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})

	// Ingestion metrics
	TracesImported = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sarmap",
		Subsystem: "ingest",
		Name:      "traces_imported_total",
		Help:      "Total trace files imported",
	}, []string{"format"})

	TraceParseErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sarmap",
		Subsystem: "ingest",
		Name:      "parse_errors_total",
		Help:      "Trace files rejected by the parser",
	}, []string{"kind"})

	TraceParseDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sarmap",
		Subsystem: "ingest",
		Name:      "parse_duration_seconds",
		Help:      "Duration of trace file parsing",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"format"})

	EventsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sarmap",
		Subsystem: "recorder",
		Name:      "events_recorded_total",
		Help:      "Annotation events persisted by the recorder",
	}, []string{"type"})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sarmap",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sarmap",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sarmap",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sarmap",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sarmap",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sarmap",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})

	DBPoolEmptyAcquires = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sarmap",
		Subsystem: "db",
		Name:      "pool_empty_acquires",
		Help:      "Cumulative acquires that had to wait for a new connection",
	})

	DBPoolAcquireSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "sarmap",
		Subsystem: "db",
		Name:      "pool_acquire_seconds",
		Help:      "Cumulative time spent acquiring connections from the pool",
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
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics copies pool statistics into the db gauges. stat is a
// *pgxpool.Stat; anything else is ignored.
func UpdateDBPoolMetrics(stat interface{}) {
	type poolStat interface {
		AcquiredConns() int32
		IdleConns() int32
		TotalConns() int32
		EmptyAcquireCount() int64
		AcquireDuration() time.Duration
	}

	if s, ok := stat.(poolStat); ok {
		DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
		DBPoolConnsIdle.Set(float64(s.IdleConns()))
		DBPoolConnsOpen.Set(float64(s.TotalConns()))
		DBPoolEmptyAcquires.Set(float64(s.EmptyAcquireCount()))
		DBPoolAcquireSeconds.Set(s.AcquireDuration().Seconds())
	}
}
