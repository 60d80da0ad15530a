package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/immansha/renewcast/core/metrics"
)

// PromSink records pipeline events in Prometheus metrics.
type PromSink struct {
	forecastMW  *prometheus.GaugeVec
	actualMW    *prometheus.GaugeVec
	mae         *prometheus.GaugeVec
	samples     *prometheus.GaugeVec
	decisions   *prometheus.CounterVec
	allocatedMW *prometheus.GaugeVec
	changes     *prometheus.CounterVec
	anomalies   *prometheus.CounterVec
	generations *prometheus.CounterVec
	genLatency  *prometheus.HistogramVec
	rows        prometheus.Counter
	rowErrors   prometheus.Counter
	cycle       prometheus.Histogram
}

// NewPromSink registers pipeline metrics on the default Prometheus registerer.
// The metrics endpoint is served separately by StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by an earlier sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{}
	var err error
	if s.forecastMW, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "renewcast_forecast_mw",
		Help: "Latest forecast per plant and quantile",
	}, []string{"plant_id", "quantile"})); err != nil {
		return nil, err
	}
	if s.actualMW, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "renewcast_actual_mw",
		Help: "Latest measured AC power per plant",
	}, []string{"plant_id"})); err != nil {
		return nil, err
	}
	if s.mae, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "renewcast_forecast_mae_mw",
		Help: "Running mean absolute error of the median forecast",
	}, []string{"plant_id"})); err != nil {
		return nil, err
	}
	if s.samples, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "renewcast_forecast_samples",
		Help: "Training samples seen per plant",
	}, []string{"plant_id"})); err != nil {
		return nil, err
	}
	if s.decisions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "renewcast_dispatch_decisions_total",
		Help: "Gated dispatch decisions by status",
	}, []string{"plant_id", "status", "asset_type"})); err != nil {
		return nil, err
	}
	if s.allocatedMW, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "renewcast_dispatch_adjusted_mw",
		Help: "Backup allocation after the compliance gate",
	}, []string{"plant_id"})); err != nil {
		return nil, err
	}
	if s.changes, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "renewcast_dispatch_changes_total",
		Help: "Decisions whose allocation differs from the previous one",
	}, []string{"plant_id"})); err != nil {
		return nil, err
	}
	if s.anomalies, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "renewcast_anomalies_total",
		Help: "Forecast updates carrying the anomaly flag",
	}, []string{"plant_id"})); err != nil {
		return nil, err
	}
	if s.generations, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "renewcast_generation_requests_total",
		Help: "Text generation requests by kind, provider and outcome",
	}, []string{"kind", "provider", "failed"})); err != nil {
		return nil, err
	}
	if s.genLatency, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "renewcast_generation_latency_seconds",
		Help:    "Latency of text generation requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind", "provider"})); err != nil {
		return nil, err
	}
	if s.rows, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "renewcast_pipeline_rows_total",
		Help: "Telemetry rows processed",
	})); err != nil {
		return nil, err
	}
	if s.rowErrors, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "renewcast_pipeline_row_errors_total",
		Help: "Telemetry rows skipped after an error",
	})); err != nil {
		return nil, err
	}
	if s.cycle, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "renewcast_pipeline_cycle_seconds",
		Help:    "Duration of one orchestrator cycle",
		Buckets: prometheus.DefBuckets,
	})); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, err
	}
	return c, nil
}

// RecordForecast updates the forecast gauges.
func (s *PromSink) RecordForecast(ev coremetrics.ForecastEvent) error {
	f := ev.Forecast
	s.forecastMW.WithLabelValues(f.EntityID, "p10").Set(f.P10)
	s.forecastMW.WithLabelValues(f.EntityID, "p50").Set(f.P50)
	s.forecastMW.WithLabelValues(f.EntityID, "p90").Set(f.P90)
	s.actualMW.WithLabelValues(f.EntityID).Set(f.ActualMW)
	s.samples.WithLabelValues(f.EntityID).Set(float64(f.NTrained))
	if f.MAE != nil {
		s.mae.WithLabelValues(f.EntityID).Set(*f.MAE)
	}
	return nil
}

// RecordDispatch counts the gated decision and tracks its allocation.
func (s *PromSink) RecordDispatch(ev coremetrics.DispatchEvent) error {
	d := ev.Dispatch
	assetType := "none"
	if d.AssetType != nil {
		assetType = string(*d.AssetType)
	}
	s.decisions.WithLabelValues(d.EntityID, string(d.Status), assetType).Inc()
	s.allocatedMW.WithLabelValues(d.EntityID).Set(d.AdjustedMW)
	if ev.Changed {
		s.changes.WithLabelValues(d.EntityID).Inc()
	}
	return nil
}

// RecordAnomaly counts anomalies.
func (s *PromSink) RecordAnomaly(ev coremetrics.AnomalyEvent) error {
	s.anomalies.WithLabelValues(ev.EntityID).Inc()
	return nil
}

// RecordGeneration counts generation requests and observes their latency.
func (s *PromSink) RecordGeneration(ev coremetrics.GenerationEvent) error {
	s.generations.WithLabelValues(ev.Kind, ev.Provider, strconv.FormatBool(ev.Failed)).Inc()
	s.genLatency.WithLabelValues(ev.Kind, ev.Provider).Observe(ev.Latency.Seconds())
	return nil
}

// RecordCycle accumulates row counters and the cycle duration.
func (s *PromSink) RecordCycle(ev coremetrics.CycleEvent) error {
	s.rows.Add(float64(ev.Rows))
	s.rowErrors.Add(float64(ev.Errors))
	s.cycle.Observe(ev.Duration.Seconds())
	return nil
}

var _ interface {
	coremetrics.MetricsSink
	coremetrics.DispatchRecorder
	coremetrics.AnomalyRecorder
	coremetrics.GenerationRecorder
	coremetrics.CycleRecorder
} = (*PromSink)(nil)
