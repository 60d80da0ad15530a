package simulator

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Event types understood by the telemetry producer.
const (
	EventCloud         = "cloud"
	EventInverterFault = "inverter_fault"
	EventDemandSpike   = "demand_spike"
)

// Severities of an injected event.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// InjectedEvent perturbs the readings of one plant until cleared.
type InjectedEvent struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	// InverterEfficiency overrides the nominal efficiency when set.
	InverterEfficiency *float64 `json:"inverter_efficiency,omitempty"`
	InjectedAt         float64  `json:"injected_at"`
}

// LoadEvents reads the event file. A missing or unreadable file means no
// events.
func LoadEvents(path string) map[string]InjectedEvent {
	b, err := os.ReadFile(path)
	if err != nil {
		return map[string]InjectedEvent{}
	}
	var evs map[string]InjectedEvent
	if err := json.Unmarshal(b, &evs); err != nil || evs == nil {
		return map[string]InjectedEvent{}
	}
	return evs
}

// Inject records an event for plantID, replacing any previous one.
func Inject(path, plantID, typ, severity string, now time.Time) error {
	switch typ {
	case EventCloud, EventInverterFault, EventDemandSpike:
	default:
		return fmt.Errorf("unknown event type %q", typ)
	}
	switch severity {
	case SeverityLow, SeverityMedium, SeverityHigh:
	case "":
		severity = SeverityHigh
	default:
		return fmt.Errorf("unknown severity %q", severity)
	}
	evs := LoadEvents(path)
	evs[plantID] = InjectedEvent{
		Type:       typ,
		Severity:   severity,
		InjectedAt: float64(now.UnixNano()) / 1e9,
	}
	b, err := json.MarshalIndent(evs, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// ClearEvents removes every injected event.
func ClearEvents(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
