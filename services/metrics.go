package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the mission engine counters. A nil *Metrics records nothing.
type Metrics struct {
	verifications   *prometheus.CounterVec
	adapterDuration *prometheus.HistogramVec
	xpAwarded       prometheus.Counter
	xpAwardFailures prometheus.Counter
	archiveOutcomes *prometheus.CounterVec
	sweepExpired    prometheus.Counter
	driftWallets    prometheus.Gauge
}

// NewMetrics creates and registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		verifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vibeproof_verifications_total",
				Help: "Mission verification attempts by type and outcome",
			},
			[]string{"verification_type", "outcome"},
		),
		adapterDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vibeproof_adapter_duration_seconds",
				Help:    "Duration of verification adapter calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"verification_type"},
		),
		xpAwarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vibeproof_xp_awarded_total",
			Help: "XP granted through verified completions",
		}),
		xpAwardFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vibeproof_xp_award_failures_total",
			Help: "Verified completions whose XP award failed",
		}),
		archiveOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vibeproof_proof_archive_total",
				Help: "Proof archive jobs by outcome",
			},
			[]string{"outcome"},
		),
		sweepExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vibeproof_sweep_expired_total",
			Help: "Stale in-flight completions moved to expired",
		}),
		driftWallets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vibeproof_xp_drift_wallets",
			Help: "Wallets whose XP differs from their verified completions",
		}),
	}
	reg.MustRegister(
		m.verifications,
		m.adapterDuration,
		m.xpAwarded,
		m.xpAwardFailures,
		m.archiveOutcomes,
		m.sweepExpired,
		m.driftWallets,
	)
	return m
}

func (m *Metrics) observeVerification(vt string, outcome string) {
	if m == nil {
		return
	}
	m.verifications.WithLabelValues(vt, outcome).Inc()
}

func (m *Metrics) observeAdapter(vt string, d time.Duration) {
	if m == nil {
		return
	}
	m.adapterDuration.WithLabelValues(vt).Observe(d.Seconds())
}

func (m *Metrics) observeXP(amount int64) {
	if m == nil {
		return
	}
	m.xpAwarded.Add(float64(amount))
}

func (m *Metrics) observeXPFailure() {
	if m == nil {
		return
	}
	m.xpAwardFailures.Inc()
}

func (m *Metrics) observeArchive(outcome string) {
	if m == nil {
		return
	}
	m.archiveOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeSweep(n int64) {
	if m == nil {
		return
	}
	m.sweepExpired.Add(float64(n))
}

func (m *Metrics) setDrift(n int) {
	if m == nil {
		return
	}
	m.driftWallets.Set(float64(n))
}
