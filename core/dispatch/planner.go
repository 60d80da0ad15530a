package dispatch

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/immansha/renewcast/core/model"
)

const (
	// DefaultDemandMW is used when the catalog has no demand baseline.
	DefaultDemandMW = 70.0
	// DeadBandMW is the requirement at or below which no asset is selected.
	DeadBandMW = 2.0
	// MinReserveMW is the floor of the spinning reserve.
	MinReserveMW = 5.0

	bufferFraction   = 0.3
	reserveFraction  = 0.10
	capacityCoverage = 0.8
	defaultMerit     = 3

	noBackupNote = "No backup required: solar supply sufficient"
)

var meritOrder = map[model.AssetType]int{
	model.AssetHydro:       1,
	model.AssetPumpedHydro: 2,
	model.AssetGas:         3,
	model.AssetCoal:        4,
}

// MeritClass returns the regulator merit class of an asset type.
func MeritClass(t model.AssetType) int {
	if c, ok := meritOrder[t.Normalize()]; ok {
		return c
	}
	return defaultMerit
}

// Planner maps forecasts to backup allocations. It holds no per-entity state.
type Planner struct {
	newID func() string
}

// Option customises a Planner.
type Option func(*Planner)

// WithIDFunc sets the decision id generator.
func WithIDFunc(f func() string) Option {
	return func(p *Planner) {
		if f != nil {
			p.newID = f
		}
	}
}

// NewPlanner returns a Planner generating uuid decision ids.
func NewPlanner(opts ...Option) *Planner {
	p := &Planner{newID: uuid.NewString}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Compute sizes the backup needed to cover the gap between demand and the
// median forecast plus a share of the forecast band, and picks the fastest
// asset able to cover most of it.
func (p *Planner) Compute(f model.ForecastRecord, cfg model.EntityConfig, now time.Time) model.DispatchDecision {
	demand := cfg.DemandMW
	if demand <= 0 {
		demand = DefaultDemandMW
	}
	gap := math.Max(0, demand-f.P50)
	required := gap + (f.P90-f.P10)*bufferFraction
	reserve := math.Max(MinReserveMW, f.P50*reserveFraction)

	d := model.DispatchDecision{
		ID:         p.newID(),
		EntityID:   f.EntityID,
		Timestamp:  now.UTC(),
		P10:        f.P10,
		P50:        f.P50,
		P90:        f.P90,
		DemandMW:   demand,
		GapMW:      round2(gap),
		RequiredMW: round2(required),
		ReserveMW:  round2(reserve),
		MeritClass: defaultMerit,
		ActionNote: noBackupNote,
		Anomaly:    f.Anomaly,
	}

	asset, ok := selectAsset(cfg.Assets, required)
	if !ok {
		return d
	}
	id, typ := asset.ID, asset.Type.Normalize()
	d.SelectedAsset = &id
	d.AssetType = &typ
	d.AllocatedMW = round2(math.Min(required, asset.CapacityMW))
	d.MeritClass = MeritClass(typ)
	by := now.UTC().Add(-time.Duration(asset.RampMinutes) * time.Minute)
	d.ActionNote = fmt.Sprintf("Confirm ramp-up by %s", by.Format("15:04"))
	return d
}

// selectAsset returns the fastest-ramping asset whose capacity covers 80% of
// required, or the fastest asset overall. Equal ramp times keep catalog
// order.
func selectAsset(assets []model.BackupAsset, required float64) (model.BackupAsset, bool) {
	if len(assets) == 0 || required <= DeadBandMW {
		return model.BackupAsset{}, false
	}
	sorted := make([]model.BackupAsset, len(assets))
	copy(sorted, assets)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].RampMinutes < sorted[j].RampMinutes
	})
	for _, a := range sorted {
		if a.CapacityMW >= required*capacityCoverage {
			return a, true
		}
	}
	return sorted[0], true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
