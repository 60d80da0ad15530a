package events

import (
	"time"

	"github.com/immansha/renewcast/core/model"
)

// Event is any value published on the pipeline bus.
type Event interface {
	EventTime() time.Time
}

// ForecastUpdated is published after every forecast update.
type ForecastUpdated struct {
	Forecast model.ForecastRecord
	Time     time.Time
}

func (e ForecastUpdated) EventTime() time.Time { return e.Time }

// DispatchGated is published for every gated decision, approved or held.
// Changed is set when the adjusted allocation differs from the previous
// decision of the same entity.
type DispatchGated struct {
	Dispatch model.GatedDispatch
	Changed  bool
	Time     time.Time
}

func (e DispatchGated) EventTime() time.Time { return e.Time }

// AnomalyDetected is published when a forecast carries the anomaly flag.
type AnomalyDetected struct {
	Forecast model.ForecastRecord
	Time     time.Time
}

func (e AnomalyDetected) EventTime() time.Time { return e.Time }

// Generation kinds.
const (
	KindAdvisory = "advisory"
	KindAnomaly  = "anomaly"
)

// TextGenerated is published after each generation request.
type TextGenerated struct {
	EntityID string
	Kind     string
	Provider string
	Latency  time.Duration
	Failed   bool
	Time     time.Time
}

func (e TextGenerated) EventTime() time.Time { return e.Time }

// CycleCompleted summarises one orchestrator cycle.
type CycleCompleted struct {
	Rows     int
	Errors   int
	Duration time.Duration
	Time     time.Time
}

func (e CycleCompleted) EventTime() time.Time { return e.Time }
