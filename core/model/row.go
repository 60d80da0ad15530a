package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Keys of the input records.
const (
	KeyPlantID       = "plant_id"
	KeyTimestamp     = "timestamp"
	KeySimulatedHour = "simulated_hour"
	KeyCloudFraction = "cloud_fraction"
	KeyGHI           = "ghi_wm2"
	KeyTempC         = "temp_c"
	KeyACPower       = "ac_power_mw"
	KeyCapacity      = "capacity_mw"
	KeyInverterEff   = "inverter_efficiency"
	KeyState         = "state"
)

// Row is one loosely typed JSON object read from an input stream. Accessors
// never fail: absent or malformed values fall back to the supplied default.
type Row map[string]any

// EntityID returns the plant identifier of the row.
func (r Row) EntityID() string { return r.String(KeyPlantID) }

// Has reports whether key is present with a non-null value.
func (r Row) Has(key string) bool {
	v, ok := r[key]
	return ok && v != nil
}

// String returns the value of key as a string, or "" if absent.
func (r Row) String(key string) string {
	switch v := r[key].(type) {
	case string:
		return v
	case nil:
		return ""
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// Float returns the numeric value of key or def when the value is missing,
// not a number or not finite.
func (r Row) Float(key string, def float64) float64 {
	var f float64
	switch v := r[key].(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int64:
		f = float64(v)
	case json.Number:
		p, err := v.Float64()
		if err != nil {
			return def
		}
		f = p
	case string:
		p, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return def
		}
		f = p
	default:
		return def
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return def
	}
	return f
}

// Time parses key as an RFC 3339 timestamp.
func (r Row) Time(key string) (time.Time, bool) {
	s := r.String(key)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Merge returns a copy of r where keys absent from r are filled from aux.
// Keys already present in r always win.
func (r Row) Merge(aux Row) Row {
	out := make(Row, len(r)+len(aux))
	for k, v := range aux {
		out[k] = v
	}
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Reading is a telemetry sample as emitted by a plant.
type Reading struct {
	PlantID            string    `json:"plant_id"`
	PlantName          string    `json:"plant_name,omitempty"`
	State              string    `json:"state,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
	UnixTS             float64   `json:"unix_ts"`
	SimulatedHour      float64   `json:"simulated_hour"`
	CloudFraction      float64   `json:"cloud_fraction"`
	GHI                float64   `json:"ghi_wm2"`
	ACPowerMW          float64   `json:"ac_power_mw"`
	InverterEfficiency float64   `json:"inverter_efficiency"`
	CapacityMW         float64   `json:"capacity_mw"`
	InjectedEvent      string    `json:"injected_event"`
}

// WeatherReading is an auxiliary weather observation for a plant.
type WeatherReading struct {
	PlantID       string    `json:"plant_id"`
	Source        string    `json:"source"`
	Timestamp     time.Time `json:"timestamp"`
	CloudFraction float64   `json:"cloud_fraction"`
	TempC         float64   `json:"temp_c"`
	WindMS        float64   `json:"wind_ms"`
	Condition     string    `json:"weather_condition"`
}

// RecordEntity returns the plant of the reading.
func (r Reading) RecordEntity() string { return r.PlantID }

// RecordTime returns the reading time.
func (r Reading) RecordTime() time.Time { return r.Timestamp }

// RecordEntity returns the plant of the observation.
func (w WeatherReading) RecordEntity() string { return w.PlantID }

// RecordTime returns the observation time.
func (w WeatherReading) RecordTime() time.Time { return w.Timestamp }
