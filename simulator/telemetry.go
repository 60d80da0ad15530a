package simulator

import (
	"math"
	"math/rand"
	"time"

	"github.com/immansha/renewcast/core/model"
)

const (
	nominalInverterEff = 0.973
	panelEfficiency    = 0.20
	// panel area per MW of nameplate capacity, in m²
	panelAreaPerMW = 5000.0
	defaultCloud   = 0.2
	solarWindow    = 5.0
)

var cloudSeverity = map[string]float64{
	SeverityLow:    0.3,
	SeverityMedium: 0.5,
	SeverityHigh:   0.75,
}

// Telemetry produces plant readings on a simulated solar clock.
type Telemetry struct {
	rng       *rand.Rand
	start     time.Time
	startHour float64
	hourSpeed float64
}

// NewTelemetry creates a producer whose clock starts at start.
func NewTelemetry(cfg Config, start time.Time) *Telemetry {
	cfg.SetDefaults()
	return &Telemetry{
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		start:     start,
		startHour: cfg.StartHour,
		hourSpeed: cfg.HourSpeed,
	}
}

// SimulatedHour returns the solar hour at now. It wraps within a five hour
// window beginning at the start hour.
func (t *Telemetry) SimulatedHour(now time.Time) float64 {
	elapsed := now.Sub(t.start).Minutes() * t.hourSpeed
	if elapsed < 0 {
		elapsed = 0
	}
	return t.startHour + math.Mod(elapsed, solarWindow)
}

// GHI returns the global horizontal irradiance in W/m² before jitter.
func GHI(hour, cloud float64) float64 {
	if hour < 6 || hour > 18 {
		return 0
	}
	base := 1000 * math.Sin(math.Pi*(hour-6)/12)
	return math.Max(0, base*(1-0.8*cloud))
}

// Reading simulates one telemetry sample of e.
func (t *Telemetry) Reading(e model.Entity, ev InjectedEvent, now time.Time) model.Reading {
	hour := t.SimulatedHour(now)
	base := e.BaseCloud
	if base <= 0 {
		base = defaultCloud
	}
	if ev.Type == EventCloud {
		extra, ok := cloudSeverity[ev.Severity]
		if !ok {
			extra = cloudSeverity[SeverityMedium]
		}
		base = math.Min(1, base+extra)
	}
	cloud := clamp(base+t.uniform(-0.05, 0.05), 0, 1)
	ghi := GHI(hour, cloud) * t.uniform(0.95, 1.05)

	eff := nominalInverterEff
	if ev.InverterEfficiency != nil {
		eff = *ev.InverterEfficiency
	}
	if ev.Type == EventInverterFault {
		eff = t.uniform(0.88, 0.92)
	}
	dc := ghi * e.CapacityMW * panelAreaPerMW * panelEfficiency / 1e6
	ac := clamp(dc*eff, 0, e.CapacityMW)

	injected := ev.Type
	if injected == "" {
		injected = "none"
	}
	now = now.UTC()
	return model.Reading{
		PlantID:            e.ID,
		PlantName:          e.Name,
		State:              e.State,
		Timestamp:          now,
		UnixTS:             float64(now.UnixNano()) / 1e9,
		SimulatedHour:      round(hour, 2),
		CloudFraction:      round(cloud, 3),
		GHI:                round(ghi, 2),
		ACPowerMW:          round(ac, 3),
		InverterEfficiency: round(eff, 4),
		CapacityMW:         e.CapacityMW,
		InjectedEvent:      injected,
	}
}

func (t *Telemetry) uniform(lo, hi float64) float64 {
	return lo + t.rng.Float64()*(hi-lo)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}
