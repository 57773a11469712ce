// Package metrics exposes Prometheus collectors for the variable server and
// a small HTTP handler to scrape them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sharedvars"

// Command results.
const (
	ResultApplied  = "applied"
	ResultIgnored  = "ignored"
	ResultRejected = "rejected"
)

// Metrics holds the collectors updated by the accept loop.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	commands    *prometheus.CounterVec
	connections prometheus.Counter
	entries     prometheus.Gauge
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		commands: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Wire commands processed, by op and result.",
		}, []string{"op", "result"}),
		connections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Connections accepted by the server.",
		}),
		entries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_entries",
			Help:      "Variables currently held in the store.",
		}),
	}
}

func (m *Metrics) Command(op, result string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(op, result).Inc()
}

func (m *Metrics) Connection() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

func (m *Metrics) Entries(n int) {
	if m == nil {
		return
	}
	m.entries.Set(float64(n))
}

// Handler serves /metrics from g and a /healthz probe.
type Handler struct {
	gatherer prometheus.Gatherer
	router   *http.ServeMux
}

func NewHandler(g prometheus.Gatherer) *Handler {
	h := &Handler{
		gatherer: g,
		router:   http.NewServeMux(),
	}
	h.registerRoutes()
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.router.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	h.router.HandleFunc("/healthz", h.handleHealth)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok\n"))
}
