package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records payout and ledger activity. A nil *LedgerMetrics, or one
// built with a nil registerer, is a no-op.
type LedgerMetrics struct {
	transitions   *prometheus.CounterVec
	denied        *prometheus.CounterVec
	ledgerEntries *prometheus.CounterVec
	notifications *prometheus.CounterVec
	amounts       *prometheus.HistogramVec
	jobDuration   *prometheus.HistogramVec
	jobSuccess    *prometheus.CounterVec
	jobFailure    *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_transitions_total",
		Help: "Committed payout status transitions.",
	}, []string{"status"})
	denied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_rejected_operations_total",
		Help: "Payout operations refused with a business error.",
	}, []string{"code"})
	ledgerEntries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_entries_total",
		Help: "Wallet transactions appended to the ledger.",
	}, []string{"type", "reference_type"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_notifications_total",
		Help: "Payout event deliveries by outcome.",
	}, []string{"result"})
	amounts := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "payout_amount",
		Help:    "Payout amounts by lifecycle stage.",
		Buckets: []float64{100, 500, 1000, 5000, 10000, 50000, 100000},
	}, []string{"stage"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "job_duration_seconds",
		Help:    "Duration of background jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	jobSuccess := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_success",
		Help: "Successful background job executions.",
	}, []string{"job"})
	jobFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_failure",
		Help: "Failed background job executions.",
	}, []string{"job"})
	reg.MustRegister(transitions, denied, ledgerEntries, notifications, amounts, jobDuration, jobSuccess, jobFailure)
	return &LedgerMetrics{
		transitions:   transitions,
		denied:        denied,
		ledgerEntries: ledgerEntries,
		notifications: notifications,
		amounts:       amounts,
		jobDuration:   jobDuration,
		jobSuccess:    jobSuccess,
		jobFailure:    jobFailure,
	}
}

// IncTransition counts a payout entering status.
func (m *LedgerMetrics) IncTransition(status string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(status)).Inc()
}

// IncDenied counts an operation refused with the given error code.
func (m *LedgerMetrics) IncDenied(code string) {
	if m == nil || m.denied == nil {
		return
	}
	m.denied.WithLabelValues(normalizeLabel(code)).Inc()
}

// IncLedgerEntry counts an appended wallet transaction.
func (m *LedgerMetrics) IncLedgerEntry(txType, referenceType string) {
	if m == nil || m.ledgerEntries == nil {
		return
	}
	m.ledgerEntries.WithLabelValues(normalizeLabel(txType), normalizeLabel(referenceType)).Inc()
}

// IncNotification counts a notification delivery outcome ("delivered", "failed", "logged").
func (m *LedgerMetrics) IncNotification(result string) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.WithLabelValues(normalizeLabel(result)).Inc()
}

// ObserveAmount records a payout amount at stage ("requested", "approved", "paid").
func (m *LedgerMetrics) ObserveAmount(stage string, amount float64) {
	if m == nil || m.amounts == nil {
		return
	}
	m.amounts.WithLabelValues(normalizeLabel(stage)).Observe(amount)
}

// ObserveJob records one run of a background job.
func (m *LedgerMetrics) ObserveJob(job string, duration time.Duration, err error) {
	if m == nil || m.jobDuration == nil {
		return
	}
	job = normalizeLabel(job)
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
	if err != nil {
		m.jobFailure.WithLabelValues(job).Inc()
		return
	}
	m.jobSuccess.WithLabelValues(job).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
