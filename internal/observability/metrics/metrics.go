package metrics

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smallbiznis/bookkeeping/pkg/db"
)

const (
	OutcomeSuccess           = "success"
	OutcomeValidation        = "validation"
	OutcomeUnbalanced        = "unbalanced"
	OutcomePeriodLocked      = "period_locked"
	OutcomeNumberingConflict = "numbering_conflict"
	OutcomeTimeout           = "timeout"
	OutcomeStorage           = "storage"
)

const (
	RetryReasonUniqueViolation      = "unique_violation"
	RetryReasonSerializationFailure = "serialization_failure"
	RetryReasonLockTimeout          = "db_lock_timeout"
	RetryReasonDeadlineExceeded     = "deadline_exceeded"
	RetryReasonUnknown              = "unknown"
)

// Config carries constant labels attached to every series.
type Config struct {
	ServiceName string
	Environment string
}

// Metrics captures posting health signals. A nil *Metrics is a valid no-op.
type Metrics struct {
	postings        *prometheus.CounterVec
	postingDuration *prometheus.HistogramVec
	postingAttempts *prometheus.HistogramVec
	retries         *prometheus.CounterVec
	ledgerEntries   *prometheus.CounterVec
	periodLocks     *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

func New(registerer prometheus.Registerer, cfg Config) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "bookkeeping"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	labels := prometheus.Labels{"service": serviceName, "env": environment}

	m := &Metrics{
		postings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "bookkeeping_voucher_postings_total",
			Help:        "Voucher postings by document class and outcome.",
			ConstLabels: labels,
		}, []string{"document_class", "outcome"}),
		postingDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "bookkeeping_voucher_posting_duration_seconds",
			Help:        "Wall time of a posting including retries.",
			ConstLabels: labels,
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"document_class"}),
		postingAttempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "bookkeeping_voucher_posting_attempts",
			Help:        "Transaction attempts needed per posting.",
			ConstLabels: labels,
			Buckets:     []float64{1, 2, 3, 4, 5, 8, 13},
		}, []string{"document_class"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "bookkeeping_voucher_posting_retries_total",
			Help:        "Posting transactions retried after a storage conflict.",
			ConstLabels: labels,
		}, []string{"document_class", "reason"}),
		ledgerEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "bookkeeping_ledger_entries_total",
			Help:        "Ledger entries written by posting.",
			ConstLabels: labels,
		}, []string{"document_class"}),
		periodLocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "bookkeeping_period_lock_changes_total",
			Help:        "Accounting period lock and unlock operations.",
			ConstLabels: labels,
		}, []string{"operation"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "bookkeeping_http_requests_total",
			Help:        "HTTP requests by route and status.",
			ConstLabels: labels,
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "bookkeeping_http_request_duration_seconds",
			Help:        "HTTP request latency.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	for _, c := range []prometheus.Collector{
		m.postings, m.postingDuration, m.postingAttempts, m.retries,
		m.ledgerEntries, m.periodLocks, m.httpRequests, m.httpDuration,
	} {
		if err := registerer.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				panic(err)
			}
		}
	}
	return m
}

// RecordPosting observes one finished posting.
func (m *Metrics) RecordPosting(ctx context.Context, class, outcome string, attempts int, elapsed time.Duration) {
	if m == nil {
		return
	}
	_ = ctx
	m.postings.WithLabelValues(class, outcome).Inc()
	m.postingDuration.WithLabelValues(class).Observe(elapsed.Seconds())
	if attempts > 0 {
		m.postingAttempts.WithLabelValues(class).Observe(float64(attempts))
	}
}

func (m *Metrics) RecordRetry(ctx context.Context, class string, err error) {
	if m == nil {
		return
	}
	_ = ctx
	m.retries.WithLabelValues(class, ClassifyRetryReason(err)).Inc()
}

func (m *Metrics) AddLedgerEntries(ctx context.Context, class string, n int) {
	if m == nil || n <= 0 {
		return
	}
	_ = ctx
	m.ledgerEntries.WithLabelValues(class).Add(float64(n))
}

func (m *Metrics) RecordPeriodLock(ctx context.Context, operation string) {
	if m == nil {
		return
	}
	_ = ctx
	m.periodLocks.WithLabelValues(operation).Inc()
}

func (m *Metrics) RecordHTTPRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ClassifyRetryReason maps a storage error to a low-cardinality label.
func ClassifyRetryReason(err error) string {
	switch {
	case err == nil:
		return RetryReasonUnknown
	case errors.Is(err, context.DeadlineExceeded):
		return RetryReasonDeadlineExceeded
	case db.IsDuplicateKeyErr(err):
		return RetryReasonUniqueViolation
	case db.IsSerializationErr(err):
		return RetryReasonSerializationFailure
	case db.IsLockTimeoutErr(err):
		return RetryReasonLockTimeout
	default:
		return RetryReasonUnknown
	}
}
