package client

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the session client. All call
// sites nil-guard so an unmetered client carries no overhead.
type Metrics struct {
	connects          prometheus.Counter
	reconnectAttempts prometheus.Counter
	framesReceived    *prometheus.CounterVec
	framesDropped     *prometheus.CounterVec
	commandsSent      *prometheus.CounterVec
	commandTimeouts   prometheus.Counter
	pendingRequests   prometheus.Gauge
	eventLogSize      prometheus.Gauge
}

// NewMetrics creates and registers client metrics. Returns nil when reg
// is nil so callers can run without instrumentation.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		connects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tether",
			Subsystem: "client",
			Name:      "connects_total",
			Help:      "Total successful connections, including reconnects",
		}),
		reconnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tether",
			Subsystem: "client",
			Name:      "reconnect_attempts_total",
			Help:      "Total reconnection attempts after unexpected closes",
		}),
		framesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tether",
			Subsystem: "client",
			Name:      "frames_received_total",
			Help:      "Total inbound frames by frame type",
		}, []string{"type"}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tether",
			Subsystem: "client",
			Name:      "frames_dropped_total",
			Help:      "Total inbound frames dropped by reason",
		}, []string{"reason"}),
		commandsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tether",
			Subsystem: "client",
			Name:      "commands_sent_total",
			Help:      "Total outbound commands by action",
		}, []string{"action"}),
		commandTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tether",
			Subsystem: "client",
			Name:      "command_timeouts_total",
			Help:      "Total correlated commands that hit their deadline",
		}),
		pendingRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tether",
			Subsystem: "client",
			Name:      "pending_requests",
			Help:      "Correlated commands currently in flight",
		}),
		eventLogSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tether",
			Subsystem: "client",
			Name:      "event_log_size",
			Help:      "Events currently retained in the bounded log",
		}),
	}

	reg.MustRegister(
		m.connects,
		m.reconnectAttempts,
		m.framesReceived,
		m.framesDropped,
		m.commandsSent,
		m.commandTimeouts,
		m.pendingRequests,
		m.eventLogSize,
	)
	return m
}

func (m *Metrics) connect() {
	if m != nil {
		m.connects.Inc()
	}
}

func (m *Metrics) reconnectAttempt() {
	if m != nil {
		m.reconnectAttempts.Inc()
	}
}

func (m *Metrics) frameReceived(frameType string) {
	if m != nil {
		m.framesReceived.WithLabelValues(frameType).Inc()
	}
}

func (m *Metrics) frameDropped(reason string) {
	if m != nil {
		m.framesDropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) commandSent(action string) {
	if m != nil {
		m.commandsSent.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) commandTimeout() {
	if m != nil {
		m.commandTimeouts.Inc()
	}
}

func (m *Metrics) setPending(n int) {
	if m != nil {
		m.pendingRequests.Set(float64(n))
	}
}

func (m *Metrics) setEventLogSize(n int) {
	if m != nil {
		m.eventLogSize.Set(float64(n))
	}
}
