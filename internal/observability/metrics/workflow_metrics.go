package metrics

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// WorkflowMetrics tracks payment allocation and state-machine activity.
type WorkflowMetrics struct {
	paymentsProcessed   *prometheus.CounterVec
	paymentsDuplicate   prometheus.Counter
	allocationLeftover  prometheus.Histogram
	transitions         *prometheus.CounterVec
	reconciliationFlags prometheus.Counter
}

var (
	workflowMetricsOnce sync.Once
	workflowMetrics     *WorkflowMetrics
)

// Workflow returns the process-wide workflow metrics.
func Workflow() *WorkflowMetrics {
	return WorkflowWithConfig(Config{})
}

// WorkflowWithConfig initializes the singleton with service labels.
func WorkflowWithConfig(cfg Config) *WorkflowMetrics {
	workflowMetricsOnce.Do(func() {
		workflowMetrics = newWorkflowMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return workflowMetrics
}

// ResetWorkflowMetricsForTest clears the singleton between test runs.
func ResetWorkflowMetricsForTest() {
	workflowMetricsOnce = sync.Once{}
	workflowMetrics = nil
}

func newWorkflowMetrics(registerer prometheus.Registerer, cfg Config) *WorkflowMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "rentflow"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}

	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	paymentsProcessed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "workflow_payments_processed_total",
			Help:        "Settled payments applied to a ledger, by bucket.",
			ConstLabels: constLabels,
		},
		[]string{"bucket"},
	)
	paymentsDuplicate := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "workflow_payments_duplicate_total",
			Help:        "Idempotent replays of already-processed payments.",
			ConstLabels: constLabels,
		},
	)
	allocationLeftover := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:        "workflow_allocation_leftover_cents",
			Help:        "Leftover cents reported per allocation.",
			ConstLabels: constLabels,
			Buckets:     []float64{0, 100, 1000, 10000, 100000, 1000000},
		},
	)
	transitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "workflow_transitions_total",
			Help:        "Applied state-machine transitions, by target state.",
			ConstLabels: constLabels,
		},
		[]string{"to_state"},
	)
	reconciliationFlags := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name:        "workflow_reconciliation_flags_total",
			Help:        "Applications flagged for reconciliation after a payment return.",
			ConstLabels: constLabels,
		},
	)

	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	for _, collector := range []prometheus.Collector{
		paymentsProcessed, paymentsDuplicate, allocationLeftover, transitions, reconciliationFlags,
	} {
		if err := registerer.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			log.Warn("metric registration failed", zap.Error(err))
		}
	}

	return &WorkflowMetrics{
		paymentsProcessed:   paymentsProcessed,
		paymentsDuplicate:   paymentsDuplicate,
		allocationLeftover:  allocationLeftover,
		transitions:         transitions,
		reconciliationFlags: reconciliationFlags,
	}
}

// ObservePayment records one applied payment and its leftover.
func (m *WorkflowMetrics) ObservePayment(bucket string, leftoverCents int64) {
	if m == nil {
		return
	}
	m.paymentsProcessed.WithLabelValues(bucket).Inc()
	m.allocationLeftover.Observe(float64(leftoverCents))
}

// ObserveDuplicate records an idempotent payment replay.
func (m *WorkflowMetrics) ObserveDuplicate() {
	if m == nil {
		return
	}
	m.paymentsDuplicate.Inc()
}

// ObserveTransition records one applied transition.
func (m *WorkflowMetrics) ObserveTransition(toState string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(toState).Inc()
}

// ObserveReconciliationFlag records a chargeback-driven flag.
func (m *WorkflowMetrics) ObserveReconciliationFlag() {
	if m == nil {
		return
	}
	m.reconciliationFlags.Inc()
}
