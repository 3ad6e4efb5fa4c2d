package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements ports.MetricsCollector using Prometheus
type Collector struct {
	roundsTotal       *prometheus.CounterVec
	roundDuration     prometheus.Histogram
	modelSteps        *prometheus.CounterVec
	modelStepDuration *prometheus.HistogramVec
	modelInits        *prometheus.CounterVec
	activeModels      prometheus.Gauge
	workerPoolIdle    prometheus.Gauge
	workerPoolBusy    prometheus.Gauge
	workerPoolStopped prometheus.Gauge
}

// NewCollector creates a collector registered on reg. A nil reg uses the
// default registerer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		roundsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "simorch_rounds_total",
				Help: "Total number of rounds by outcome",
			},
			[]string{"outcome"},
		),
		roundDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "simorch_round_duration_seconds",
				Help:    "Round duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
			},
		),
		modelSteps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "simorch_model_steps_total",
				Help: "Total number of model steps by model and status",
			},
			[]string{"model_id", "status"},
		),
		modelStepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "simorch_model_step_duration_seconds",
				Help:    "Model step duration in seconds",
				Buckets: []float64{0.0001, 0.001, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"model_id"},
		),
		modelInits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "simorch_model_initializations_total",
				Help: "Total number of model initializations by model and status",
			},
			[]string{"model_id", "status"},
		),
		activeModels: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "simorch_active_models",
				Help: "Number of models taking part in the next round",
			},
		),
		workerPoolIdle: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "simorch_worker_pool_idle",
				Help: "Number of idle workers",
			},
		),
		workerPoolBusy: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "simorch_worker_pool_busy",
				Help: "Number of busy workers",
			},
		),
		workerPoolStopped: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "simorch_worker_pool_stopped",
				Help: "Number of stopped workers",
			},
		),
	}
}

// RecordRound records a finished round
func (c *Collector) RecordRound(outcome string, duration time.Duration) {
	c.roundsTotal.WithLabelValues(outcome).Inc()
	c.roundDuration.Observe(duration.Seconds())
}

// RecordModelStep records one model step
func (c *Collector) RecordModelStep(modelID, status string, duration time.Duration) {
	c.modelSteps.WithLabelValues(modelID, status).Inc()
	c.modelStepDuration.WithLabelValues(modelID).Observe(duration.Seconds())
}

// RecordModelInit records one model initialization
func (c *Collector) RecordModelInit(modelID, status string) {
	c.modelInits.WithLabelValues(modelID, status).Inc()
}

// SetActiveModels sets the number of active models
func (c *Collector) SetActiveModels(count int) {
	c.activeModels.Set(float64(count))
}

// RecordWorkerPoolStatus records worker pool status
func (c *Collector) RecordWorkerPoolStatus(idle, busy, stopped int) {
	c.workerPoolIdle.Set(float64(idle))
	c.workerPoolBusy.Set(float64(busy))
	c.workerPoolStopped.Set(float64(stopped))
}
