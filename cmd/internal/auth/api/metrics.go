package authapi

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the auth counters exported on /metrics.
type Metrics struct {
	logins    *prometheus.CounterVec
	setups    *prometheus.CounterVec
	verifies  *prometheus.CounterVec
	lockouts  prometheus.Counter
	addresses prometheus.GaugeFunc
}

// NewMetrics registers the auth collectors on reg. trackedAddresses backs the
// mc_auth_tracked_addresses gauge and may be nil.
func NewMetrics(reg prometheus.Registerer, trackedAddresses func() int) (*Metrics, error) {
	m := &Metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mc_auth_login_total",
			Help: "Login attempts by result (success, invalid, rate_limited, bad_request).",
		}, []string{"result"}),
		setups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mc_auth_setup_total",
			Help: "First-run setup attempts by result.",
		}, []string{"result"}),
		verifies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mc_auth_token_verify_total",
			Help: "Session token verifications by result (valid, invalid, missing).",
		}, []string{"result"}),
		lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "mc_auth_lockouts_total",
			Help: "Client addresses locked out after repeated login failures.",
		}),
	}

	collectors := []prometheus.Collector{m.logins, m.setups, m.verifies, m.lockouts}
	if trackedAddresses != nil {
		m.addresses = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "mc_auth_tracked_addresses",
			Help: "Client addresses currently tracked by the login limiter.",
		}, func() float64 { return float64(trackedAddresses()) })
		collectors = append(collectors, m.addresses)
	}

	if reg != nil {
		for _, c := range collectors {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// The helpers below tolerate a nil *Metrics so handlers can run without
// instrumentation in tests.

func (m *Metrics) login(result string) {
	if m != nil {
		m.logins.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) setup(result string) {
	if m != nil {
		m.setups.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) verify(result string) {
	if m != nil {
		m.verifies.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) lockout() {
	if m != nil {
		m.lockouts.Inc()
	}
}
