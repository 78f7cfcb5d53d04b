package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use through a nil pointer; every recorder is a no-op then.
type Metrics struct {
	registry *prometheus.Registry

	walletTransactions *prometheus.CounterVec
	walletVolume       *prometheus.CounterVec
	registrations      *prometheus.CounterVec
	prizePayouts       *prometheus.CounterVec
	roomsPublished     *prometheus.CounterVec
	announcementReach  prometheus.Histogram
	pendingRequests    *prometheus.GaugeVec
	jobDuration        *prometheus.HistogramVec
}

func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		walletTransactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_transactions_total",
			Help:      "Wallet transactions by type and resulting status",
		}, []string{"type", "status"}),
		walletVolume: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_volume_minor_total",
			Help:      "Money moved through wallets in minor units",
		}, []string{"type"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Registration lifecycle events",
		}, []string{"event"}),
		prizePayouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prize_payouts_total",
			Help:      "Per-winner prize payout outcomes",
		}, []string{"outcome"}),
		roomsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_published_total",
			Help:      "Room detail publications by trigger",
		}, []string{"trigger"}),
		announcementReach: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "announcement_reach_users",
			Help:      "Number of users targeted per announcement dispatch",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
		pendingRequests: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "wallet_pending_requests",
			Help:      "Pending deposit and withdrawal requests awaiting an admin",
		}, []string{"type"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scheduler_job_seconds",
			Help:      "Background job run time",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"job"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.walletTransactions,
		m.walletVolume,
		m.registrations,
		m.prizePayouts,
		m.roomsPublished,
		m.announcementReach,
		m.pendingRequests,
		m.jobDuration,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) WalletTransaction(txType, status string, amount int64) {
	if m == nil {
		return
	}
	m.walletTransactions.WithLabelValues(txType, status).Inc()
	if amount > 0 {
		m.walletVolume.WithLabelValues(txType).Add(float64(amount))
	}
}

func (m *Metrics) Registration(event string) {
	if m == nil {
		return
	}
	m.registrations.WithLabelValues(event).Inc()
}

func (m *Metrics) PrizePayout(outcome string) {
	if m == nil {
		return
	}
	m.prizePayouts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RoomPublished(trigger string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.roomsPublished.WithLabelValues(trigger).Add(float64(count))
}

func (m *Metrics) AnnouncementReach(users int) {
	if m == nil {
		return
	}
	m.announcementReach.Observe(float64(users))
}

func (m *Metrics) SetPending(txType string, count int) {
	if m == nil {
		return
	}
	m.pendingRequests.WithLabelValues(txType).Set(float64(count))
}

func (m *Metrics) ObserveJob(job string, seconds float64) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(seconds)
}
