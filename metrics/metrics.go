// Package metrics exposes meetctl's request timings and session state in
// Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const Namespace = "meetctl"

// SessionStats is what the session collector reads on each scrape.
type SessionStats struct {
	State     string
	Connected bool
	Received  int
}

type Metrics struct {
	reg      *prometheus.Registry
	requests *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of requests to the meeting server.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "code"}),
	}
	m.reg.MustRegister(m.requests)
	return m
}

// ObserveRequest records one completed request. code 0 means no response.
func (m *Metrics) ObserveRequest(method, path string, code int, d time.Duration) {
	m.requests.WithLabelValues(method, path, strconv.Itoa(code)).Observe(d.Seconds())
}

// RegisterSession adds a collector that calls stats on every scrape.
func (m *Metrics) RegisterSession(stats func() SessionStats) error {
	return m.reg.Register(NewSessionCollector(stats))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// SessionCollector reports the current session on each scrape.
type SessionCollector struct {
	stats func() SessionStats

	state     *prometheus.Desc
	connected *prometheus.Desc
	received  *prometheus.Desc
}

// States lists the values of the state label.
var States = []string{"idle", "starting", "recording", "ending"}

func NewSessionCollector(stats func() SessionStats) *SessionCollector {
	return &SessionCollector{
		stats: stats,
		state: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "session", "state"),
			"1 for the current session state, 0 for the others",
			[]string{"state"}, nil,
		),
		connected: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "channel", "connected"),
			"1 while the push channel is connected",
			nil, nil,
		),
		received: prometheus.NewDesc(
			prometheus.BuildFQName(Namespace, "transcript", "entries_received_total"),
			"Transcript entries received since start",
			nil, nil,
		),
	}
}

func (c *SessionCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.state
	ch <- c.connected
	ch <- c.received
}

func (c *SessionCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	for _, st := range States {
		ch <- prometheus.MustNewConstMetric(c.state, prometheus.GaugeValue, boolValue(s.State == st), st)
	}
	ch <- prometheus.MustNewConstMetric(c.connected, prometheus.GaugeValue, boolValue(s.Connected))
	ch <- prometheus.MustNewConstMetric(c.received, prometheus.CounterValue, float64(s.Received))
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
