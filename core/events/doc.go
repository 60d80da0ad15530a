// Package events defines the pipeline events emitted on the event bus.
//
// Available event types:
//   - ForecastUpdated: a forecast was produced for an entity
//   - DispatchGated: a dispatch decision left the compliance gate
//   - AnomalyDetected: the forecast anomaly flag was raised
//   - TextGenerated: an advisory or anomaly report was generated
//   - CycleCompleted: the orchestrator finished one polling cycle
package events
