// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-keycustody.
//
// go-keycustody is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package metrics provides Prometheus instrumentation for custody
// operations: unlock attempts by method and outcome, method switches,
// recovery document lifecycle and KDF latency. Account identifiers are
// never used as label values.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// Namespace is the Prometheus namespace for all custody metrics
	Namespace = "keycustody"

	// Label names
	LabelOperation = "operation"
	LabelMethod    = "method"
	LabelMode      = "mode"
	LabelStatus    = "status"
	LabelErrorType = "error_type"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Operation names
	OpSetup    = "setup"
	OpUnlock   = "unlock"
	OpSwitch   = "switch"
	OpRecover  = "recover"
	OpRecovery = "recovery_generate"
	OpExport   = "export"
)

var (
	// OperationsTotal tracks custody operations by type, derivation
	// method, and status.
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "operations_total",
			Help:      "Total number of custody operations by type, method, and status",
		},
		[]string{LabelOperation, LabelMethod, LabelStatus},
	)

	// OperationDuration tracks the duration of custody operations in
	// seconds. Buckets accommodate memory-hard KDF latencies.
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of custody operations in seconds",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{LabelOperation, LabelMethod},
	)

	// UnlockFailuresTotal tracks failed unlock attempts by method and
	// error type (wrong_secret, rate_limited, cancelled).
	UnlockFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "unlock_failures_total",
			Help:      "Total number of failed unlock attempts by method and error type",
		},
		[]string{LabelMethod, LabelErrorType},
	)

	// SwitchesTotal tracks method switches by source and target method.
	SwitchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "method_switches_total",
			Help:      "Total number of completed derivation method switches",
		},
		[]string{"from_method", "to_method"},
	)

	// RecoveryDocumentsTotal tracks recovery document generations and
	// consumptions.
	RecoveryDocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "recovery_documents_total",
			Help:      "Total number of recovery documents generated and consumed",
		},
		[]string{LabelOperation, LabelStatus},
	)

	// AccountsByMode gauges provisioned accounts by operating mode.
	AccountsByMode = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "accounts",
			Help:      "Number of provisioned accounts by operating mode",
		},
		[]string{LabelMode},
	)

	// RateLimitedTotal tracks attempts rejected by the rate limiter.
	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rate_limited_total",
			Help:      "Total number of attempts rejected by the rate limiter",
		},
	)
)

// RecordOperation increments the operation counter with the given
// labels.
func RecordOperation(operation, method, status string) {
	OperationsTotal.WithLabelValues(operation, method, status).Inc()
}

// ObserveDuration records the elapsed time of an operation.
func ObserveDuration(operation, method string, start time.Time) {
	OperationDuration.WithLabelValues(operation, method).Observe(time.Since(start).Seconds())
}

// RecordUnlockFailure increments the unlock failure counter.
func RecordUnlockFailure(method, errorType string) {
	UnlockFailuresTotal.WithLabelValues(method, errorType).Inc()
}

// RecordSwitch increments the method switch counter.
func RecordSwitch(fromMethod, toMethod string) {
	SwitchesTotal.WithLabelValues(fromMethod, toMethod).Inc()
}

// RecordRecoveryDocument increments the recovery document counter.
func RecordRecoveryDocument(operation, status string) {
	RecoveryDocumentsTotal.WithLabelValues(operation, status).Inc()
}
