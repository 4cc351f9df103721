// Package metrics provides Prometheus metrics for score reconciliation runs.
package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

const subsystem = "reconcile"

// Manager manages all Prometheus metrics for the reconciliation tool.
type Manager struct {
	namespace    string
	enabled      bool
	customLabels map[string]string
	registry     *prometheus.Registry

	// Scan metrics
	recordsScanned   prometheus.Counter
	malformedRecords prometheus.Counter
	identitiesSeen   prometheus.Gauge

	// Reconcile metrics
	duplicateGroups prometheus.Counter
	groupsMerged    prometheus.Counter
	recordsRetired  prometheus.Counter
	groupFailures   *prometheus.CounterVec

	// Run metrics
	runsTotal          *prometheus.CounterVec
	runDuration        prometheus.Histogram
	lastSuccessfulRun  prometheus.Gauge
	storeOperationTime *prometheus.HistogramVec
}

var (
	globalMu      sync.RWMutex
	globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager
)

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager()
}

// Init replaces the global manager with one built from opts. Each call
// starts from a fresh registry, so it is safe to call once per run.
func Init(opts ...Option) *Manager {
	m := NewManager(opts...)
	globalMu.Lock()
	globalManager = m
	globalMu.Unlock()
	return m
}

// Global returns the process-wide manager.
func Global() *Manager {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalManager
}

// NewManager creates a new metrics manager on its own registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:    "scorefix",
		enabled:      true,
		customLabels: make(map[string]string),
		registry:     prometheus.NewRegistry(),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	m.recordsScanned = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   subsystem,
		Name:        "records_scanned_total",
		Help:        "Total number of score records read from the collection",
		ConstLabels: labels,
	})

	m.malformedRecords = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   subsystem,
		Name:        "malformed_records_total",
		Help:        "Records skipped because they carry no usable identity",
		ConstLabels: labels,
	})

	m.identitiesSeen = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   subsystem,
		Name:        "identities",
		Help:        "Distinct normalized identities seen by the last scan",
		ConstLabels: labels,
	})

	m.duplicateGroups = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   subsystem,
		Name:        "duplicate_groups_total",
		Help:        "Identities found with more than one record",
		ConstLabels: labels,
	})

	m.groupsMerged = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   subsystem,
		Name:        "groups_merged_total",
		Help:        "Duplicate groups fully consolidated and retired",
		ConstLabels: labels,
	})

	m.recordsRetired = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   subsystem,
		Name:        "records_retired_total",
		Help:        "Non-canonical records deleted after consolidation",
		ConstLabels: labels,
	})

	m.groupFailures = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   subsystem,
		Name:        "group_failures_total",
		Help:        "Duplicate groups left unfinished, by failing operation",
		ConstLabels: labels,
	}, []string{"operation"})

	m.runsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   subsystem,
		Name:        "runs_total",
		Help:        "Reconciliation runs by outcome",
		ConstLabels: labels,
	}, []string{"outcome"})

	m.runDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   subsystem,
		Name:        "run_duration_seconds",
		Help:        "Wall time of a reconciliation run",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: labels,
	})

	m.lastSuccessfulRun = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   subsystem,
		Name:        "last_success_timestamp_seconds",
		Help:        "Unix time of the last run that completed without a fatal error",
		ConstLabels: labels,
	})

	m.storeOperationTime = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   subsystem,
		Name:        "store_operation_milliseconds",
		Help:        "Latency of collection operations in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: labels,
	}, []string{"operation", "outcome"})
}

// Registry returns the registry the manager's collectors live on.
func (m *Manager) Registry() *prometheus.Registry { return m.registry }

// AddRecordsScanned adds n to the scanned records counter.
func (m *Manager) AddRecordsScanned(n int) {
	if m.enabled {
		m.recordsScanned.Add(float64(n))
	}
}

// RecordMalformedRecord increments the malformed records counter.
func (m *Manager) RecordMalformedRecord() {
	if m.enabled {
		m.malformedRecords.Inc()
	}
}

// SetIdentitiesSeen sets the distinct identity gauge.
func (m *Manager) SetIdentitiesSeen(n int) {
	if m.enabled {
		m.identitiesSeen.Set(float64(n))
	}
}

// RecordDuplicateGroup increments the duplicate groups counter.
func (m *Manager) RecordDuplicateGroup() {
	if m.enabled {
		m.duplicateGroups.Inc()
	}
}

// RecordGroupMerged increments the merged groups counter.
func (m *Manager) RecordGroupMerged() {
	if m.enabled {
		m.groupsMerged.Inc()
	}
}

// RecordRecordRetired increments the retired records counter.
func (m *Manager) RecordRecordRetired() {
	if m.enabled {
		m.recordsRetired.Inc()
	}
}

// RecordGroupFailure counts a group abandoned at operation.
func (m *Manager) RecordGroupFailure(operation string) {
	if m.enabled {
		m.groupFailures.WithLabelValues(operation).Inc()
	}
}

// RecordRun records the outcome and duration of a run. Successful runs
// also move the last-success gauge.
func (m *Manager) RecordRun(outcome string, took time.Duration, finished time.Time) {
	if !m.enabled {
		return
	}
	m.runsTotal.WithLabelValues(outcome).Inc()
	m.runDuration.Observe(took.Seconds())
	if outcome == OutcomeSuccess {
		m.lastSuccessfulRun.Set(float64(finished.Unix()))
	}
}

// RecordStoreOperation records the latency of one store call.
func (m *Manager) RecordStoreOperation(operation, outcome string, latencyMs float64) {
	if m.enabled {
		m.storeOperationTime.WithLabelValues(operation, outcome).Observe(latencyMs)
	}
}

// WriteTextfile writes every metric in the node-exporter textfile format.
// The write goes through a temp file and rename, so collectors never see
// a partial file.
func (m *Manager) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("%w: %v", ErrExport, err)
	}
	return nil
}
