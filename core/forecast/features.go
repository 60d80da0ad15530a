package forecast

import (
	"math"
	"time"

	"github.com/immansha/renewcast/core/model"
)

// Defaults applied when a reading lacks a field.
const (
	DefaultCloud    = 0.2
	DefaultGHI      = 0.0
	DefaultTempC    = 28.0
	DefaultCapacity = 100.0
)

// Features is the regressor input derived from one reading.
type Features struct {
	HourSin float64
	HourCos float64
	Cloud   float64
	GHI     float64
	TempC   float64
}

// Vector returns the features in a fixed order.
func (f Features) Vector() []float64 {
	return []float64{f.HourSin, f.HourCos, f.Cloud, f.GHI, f.TempC}
}

// Extract derives features from a merged row. The hour comes from
// simulated_hour when present, then from the timestamp, then from now.
func Extract(row model.Row, now time.Time) Features {
	var hour float64
	switch {
	case row.Has(model.KeySimulatedHour):
		hour = row.Float(model.KeySimulatedHour, float64(now.Hour()))
	default:
		if ts, ok := row.Time(model.KeyTimestamp); ok {
			hour = float64(ts.Hour())
		} else {
			hour = float64(now.Hour())
		}
	}
	angle := 2 * math.Pi * hour / 24
	return Features{
		HourSin: math.Sin(angle),
		HourCos: math.Cos(angle),
		Cloud:   row.Float(model.KeyCloudFraction, DefaultCloud),
		GHI:     row.Float(model.KeyGHI, DefaultGHI),
		TempC:   row.Float(model.KeyTempC, DefaultTempC),
	}
}
