package metrics

import (
	"time"

	"github.com/immansha/renewcast/core/model"
)

// ForecastEvent is one forecast update of an entity.
type ForecastEvent struct {
	Forecast model.ForecastRecord
	Time     time.Time
}

// MetricsSink records forecasts for observability purposes. The optional
// Recorder interfaces below extend a sink with further event kinds.
type MetricsSink interface {
	RecordForecast(ev ForecastEvent) error
}

// DispatchEvent is a decision after the compliance gate.
type DispatchEvent struct {
	Dispatch model.GatedDispatch
	Changed  bool
	Time     time.Time
}

// DispatchRecorder records gated dispatch decisions.
type DispatchRecorder interface {
	RecordDispatch(ev DispatchEvent) error
}

// AnomalyEvent is a raised anomaly flag.
type AnomalyEvent struct {
	EntityID   string
	P50        float64
	ActualMW   float64
	Deviations []float64
	Time       time.Time
}

// AnomalyRecorder records anomalies.
type AnomalyRecorder interface {
	RecordAnomaly(ev AnomalyEvent) error
}

// GenerationEvent is one text generation request.
type GenerationEvent struct {
	EntityID string
	Kind     string
	Provider string
	Latency  time.Duration
	Failed   bool
	Time     time.Time
}

// GenerationRecorder records generation requests.
type GenerationRecorder interface {
	RecordGeneration(ev GenerationEvent) error
}

// CycleEvent summarises one orchestrator cycle.
type CycleEvent struct {
	Rows     int
	Errors   int
	Duration time.Duration
	Time     time.Time
}

// CycleRecorder records orchestrator cycles.
type CycleRecorder interface {
	RecordCycle(ev CycleEvent) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordForecast(ForecastEvent) error     { return nil }
func (NopSink) RecordDispatch(DispatchEvent) error     { return nil }
func (NopSink) RecordAnomaly(AnomalyEvent) error       { return nil }
func (NopSink) RecordGeneration(GenerationEvent) error { return nil }
func (NopSink) RecordCycle(CycleEvent) error           { return nil }
