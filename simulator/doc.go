// Package simulator produces synthetic plant telemetry and weather streams
// and a SCADA gateway that acknowledges dispatch commands. Events injected
// through a small JSON file alter the generated readings.
package simulator
