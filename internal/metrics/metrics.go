// Package metrics exposes inventory operations and reconciliation results as
// prometheus collectors.
package metrics

import (
	"context"
	"net/http"

	"github.com/MarkoPoloResearchLab/stockledger/pkg/inventory"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "stockledger"

// Recorder implements inventory.OperationLogger and records reconciliation runs.
type Recorder struct {
	registry      *prometheus.Registry
	operations    *prometheus.CounterVec
	movedQuantity *prometheus.CounterVec
	discrepancies *prometheus.GaugeVec
	lastReconcile *prometheus.GaugeVec
}

// NewRecorder registers every collector on a dedicated registry.
func NewRecorder() *Recorder {
	recorder := &Recorder{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Inventory operations by name, strategy and outcome.",
		}, []string{"operation", "strategy", "status"}),
		movedQuantity: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "movement_quantity_total",
			Help:      "Absolute quantity moved by successful operations, by movement kind.",
		}, []string{"kind"}),
		discrepancies: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reconcile_discrepancies",
			Help:      "Buckets whose ledger sum disagrees with on-hand at the last run.",
		}, []string{"company_id"}),
		lastReconcile: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "reconcile_last_run_timestamp_seconds",
			Help:      "Unix time of the last completed reconciliation.",
		}, []string{"company_id"}),
	}
	recorder.registry.MustRegister(recorder.operations, recorder.movedQuantity, recorder.discrepancies, recorder.lastReconcile)
	return recorder
}

// LogOperation counts the operation; successful movements also add their quantity.
func (recorder *Recorder) LogOperation(_ context.Context, entry inventory.OperationLog) {
	status := entry.Status
	if status == "" {
		status = inventory.StatusOK
		if entry.Error != nil {
			status = inventory.StatusError
		}
	}
	recorder.operations.WithLabelValues(entry.Operation, entry.Strategy, status).Inc()
	if entry.Error != nil || entry.Kind == "" {
		return
	}
	amount, _ := entry.Quantity.Abs().Float64()
	recorder.movedQuantity.WithLabelValues(entry.Kind.String()).Add(amount)
}

// ObserveReconcile publishes the discrepancy count of one company.
func (recorder *Recorder) ObserveReconcile(companyID inventory.CompanyID, discrepancies int, unixSeconds int64) {
	recorder.discrepancies.WithLabelValues(companyID.String()).Set(float64(discrepancies))
	recorder.lastReconcile.WithLabelValues(companyID.String()).Set(float64(unixSeconds))
}

// Registry returns the registry backing the recorder.
func (recorder *Recorder) Registry() *prometheus.Registry {
	return recorder.registry
}

// Handler serves the registry in the prometheus exposition format.
func (recorder *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(recorder.registry, promhttp.HandlerOpts{})
}
