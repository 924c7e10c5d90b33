package api

import (
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"sync"
	"time"

	"bomb-arena/internal/game"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics with bounded cardinality (no per-actor labels)
var (
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arena_tick_duration_seconds",
		Help:    "Time spent in one arena tick including diff fan-out",
		Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05},
	})

	actorCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_actor_count",
		Help: "Registered actors",
	})

	aliveCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_alive_count",
		Help: "Living actors",
	})

	bombCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_bomb_count",
		Help: "Armed bombs",
	})

	explosionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_explosion_count",
		Help: "Cells currently on fire",
	})

	crateCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "arena_crate_count",
		Help: "Destructible crates on the grid",
	})

	tickEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_tick_events_total",
		Help: "Deadline work done by ticks",
	}, []string{"kind"}) // Bounded: "detonation", "cleared", "respawn", "refill"

	diffsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "arena_diffs_total",
		Help: "Non-empty diffs broadcast",
	})

	diffCells = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "arena_diff_cells",
		Help:    "Changed cells per broadcast diff",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
	})

	intentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arena_intents_total",
		Help: "Client intents by kind and outcome",
	}, []string{"kind", "result"}) // Bounded: join/move/bomb/unknown x applied/refused/invalid/rate_limited/duplicate

	eventLogTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "event_log_total",
		Help: "Total events journaled",
	})

	eventLogDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "event_log_dropped_total",
		Help: "Events dropped due to rate limiting or buffer full",
	})

	// DoS detection metrics - use ONLY bounded label values
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // Bounded: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit", "slow_consumer", "policy"

	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is the route pattern, not the URL

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "Total WebSocket messages sent",
	})
)

// ObservabilityConfig configures the debug server
type ObservabilityConfig struct {
	Enabled       bool
	ListenAddr    string // MUST be a loopback address in production
	BasicAuthUser string // Optional basic auth
	BasicAuthPass string
}

// DefaultObservabilityConfig returns safe defaults
func DefaultObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		Enabled:    true,
		ListenAddr: "127.0.0.1:6060",
	}
}

// DebugHandler serves pprof, /metrics and /health
func DebugHandler(cfg ObservabilityConfig) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	if cfg.BasicAuthUser != "" {
		return basicAuthMiddleware(cfg.BasicAuthUser, cfg.BasicAuthPass, mux)
	}
	return mux
}

// StartDebugServer starts the internal observability server.
// pprof is expensive to hit, so the listener is forced onto loopback unless
// ALLOW_DEBUG_EXTERNAL=true.
func StartDebugServer(cfg ObservabilityConfig) error {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil
	}

	if !isLoopback(cfg.ListenAddr) && os.Getenv("ALLOW_DEBUG_EXTERNAL") != "true" {
		log.Println("⚠️ Debug server forced to localhost for security")
		cfg.ListenAddr = DefaultObservabilityConfig().ListenAddr
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return err
	}
	handler := DebugHandler(cfg)

	go func() {
		log.Printf("📊 Debug server starting on %s", cfg.ListenAddr)
		log.Printf("   - pprof:   http://%s/debug/pprof/", cfg.ListenAddr)
		log.Printf("   - metrics: http://%s/metrics", cfg.ListenAddr)

		if err := http.Serve(ln, handler); err != nil {
			log.Printf("⚠️ Debug server error: %v", err)
		}
	}()

	return nil
}

func isLoopback(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func basicAuthMiddleware(user, pass string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || u != user || p != pass {
			w.Header().Set("WWW-Authenticate", `Basic realm="debug"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RecordTick records one tick report. Installed as the engine's after-tick hook.
func RecordTick(report game.TickReport) {
	tickDuration.Observe(report.Duration.Seconds())

	if s := report.Snapshot; s != nil {
		actorCount.Set(float64(s.ActorCount))
		aliveCount.Set(float64(s.AliveCount))
		bombCount.Set(float64(s.BombCount))
		explosionCount.Set(float64(s.ExplosionCount))
		crateCount.Set(float64(s.CrateCount))
	}

	st := report.Stats
	if st.Detonations > 0 {
		tickEvents.WithLabelValues("detonation").Add(float64(st.Detonations))
	}
	if st.Cleared > 0 {
		tickEvents.WithLabelValues("cleared").Add(float64(st.Cleared))
	}
	if st.Respawned > 0 {
		tickEvents.WithLabelValues("respawn").Add(float64(st.Respawned))
	}
	if st.Refilled > 0 {
		tickEvents.WithLabelValues("refill").Add(float64(st.Refilled))
	}

	if report.DiffSent {
		diffsTotal.Inc()
		diffCells.Observe(float64(report.DiffCells))
	}
}

// eventLogCursor remembers the last journal counters so they can be
// exported as prometheus counters
var eventLogCursor struct {
	sync.Mutex
	total, dropped uint64
}

// UpdateEventLogStats feeds the journal's cumulative counters into metrics
func UpdateEventLogStats(total, dropped uint64) {
	eventLogCursor.Lock()
	defer eventLogCursor.Unlock()

	if total > eventLogCursor.total {
		eventLogTotal.Add(float64(total - eventLogCursor.total))
	}
	if dropped > eventLogCursor.dropped {
		eventLogDropped.Add(float64(dropped - eventLogCursor.dropped))
	}
	eventLogCursor.total, eventLogCursor.dropped = total, dropped
}

// RecordIntent counts a client intent by kind and outcome
func RecordIntent(kind, result string) {
	intentsTotal.WithLabelValues(kind, result).Inc()
}

// RecordConnectionRejected increments the rejection counter
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages increments WebSocket message counter
func IncrementWSMessages() {
	wsMessagesTotal.Inc()
}

// requestMetrics records latency per chi route pattern
func requestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				endpoint = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		RecordRequest(r.Method, endpoint, status, time.Since(start))
	})
}
