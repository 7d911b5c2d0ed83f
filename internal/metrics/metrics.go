package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// Backtest metrics
	runsTotal       *prometheus.CounterVec
	runDuration     prometheus.Histogram
	tradesSimulated prometheus.Counter
	bankruptcyStops prometheus.Counter

	// Validation metrics
	validationsTotal   *prometheus.CounterVec
	validationDuration *prometheus.HistogramVec
	monteCarloSims     prometheus.Counter
	overfitWarnings    prometheus.Counter

	// Analysis metrics
	filterAnalyses prometheus.Counter
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verdict_runs_total",
				Help: "Total number of backtest runs",
			},
			[]string{"status", "stage"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "verdict_run_duration_seconds",
				Help:    "Backtest run duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
		),
		tradesSimulated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "verdict_trades_simulated_total",
				Help: "Total number of simulated trades closed",
			},
		),
		bankruptcyStops: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "verdict_bankruptcy_stops_total",
				Help: "Total number of runs halted by the bankruptcy stop",
			},
		),
		validationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verdict_validations_total",
				Help: "Total number of validation runs",
			},
			[]string{"kind", "status"},
		),
		validationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "verdict_validation_duration_seconds",
				Help:    "Validation run duration in seconds",
				Buckets: []float64{0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"kind"},
		),
		monteCarloSims: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "verdict_monte_carlo_simulations_total",
				Help: "Total number of Monte Carlo simulations executed",
			},
		),
		overfitWarnings: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "verdict_overfit_warnings_total",
				Help: "Total number of walk-forward overfit warnings raised",
			},
		),
		filterAnalyses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "verdict_filter_analyses_total",
				Help: "Total number of filter analysis passes",
			},
		),
	}

	reg.MustRegister(r.runsTotal)
	reg.MustRegister(r.runDuration)
	reg.MustRegister(r.tradesSimulated)
	reg.MustRegister(r.bankruptcyStops)
	reg.MustRegister(r.validationsTotal)
	reg.MustRegister(r.validationDuration)
	reg.MustRegister(r.monteCarloSims)
	reg.MustRegister(r.overfitWarnings)
	reg.MustRegister(r.filterAnalyses)

	return r
}

// RecordRun records a completed or failed backtest run.
func (r *Registry) RecordRun(status, stage string, durationSeconds float64, trades int) {
	r.runsTotal.WithLabelValues(status, stage).Inc()
	r.runDuration.Observe(durationSeconds)
	r.tradesSimulated.Add(float64(trades))
}

// RecordBankruptcyStop records a run halted at the capital floor.
func (r *Registry) RecordBankruptcyStop() {
	r.bankruptcyStops.Inc()
}

// RecordValidation records one walk-forward or Monte Carlo validation.
func (r *Registry) RecordValidation(kind, status string, durationSeconds float64) {
	r.validationsTotal.WithLabelValues(kind, status).Inc()
	r.validationDuration.WithLabelValues(kind).Observe(durationSeconds)
}

// RecordMonteCarloSims adds to the simulation counter.
func (r *Registry) RecordMonteCarloSims(n int) {
	r.monteCarloSims.Add(float64(n))
}

// RecordOverfitWarning records a walk-forward overfit warning.
func (r *Registry) RecordOverfitWarning() {
	r.overfitWarnings.Inc()
}

// RecordFilterAnalysis records a filter analysis pass.
func (r *Registry) RecordFilterAnalysis() {
	r.filterAnalyses.Inc()
}
