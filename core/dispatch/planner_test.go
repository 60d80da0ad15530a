package dispatch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/immansha/renewcast/core/model"
)

var noon = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func rj01() model.EntityConfig {
	return model.EntityConfig{
		DemandMW: 85,
		Assets: []model.BackupAsset{
			{ID: "Suratgarh_Gas", Type: model.AssetGas, CapacityMW: 120, RampMinutes: 15},
			{ID: "RJ_Hydro_01", Type: model.AssetHydro, CapacityMW: 50, RampMinutes: 5},
		},
	}
}

func fixedID() Option { return WithIDFunc(func() string { return "d-1" }) }

func TestCompute_SelectsFastestCoveringAsset(t *testing.T) {
	p := NewPlanner(fixedID())
	f := model.ForecastRecord{EntityID: "RJ01", P10: 40, P50: 50, P90: 60}
	d := p.Compute(f, rj01(), noon)

	assert.Equal(t, "d-1", d.ID)
	assert.Equal(t, 35.0, d.GapMW)
	assert.Equal(t, 41.0, d.RequiredMW)
	assert.Equal(t, 5.0, d.ReserveMW)
	require.NotNil(t, d.SelectedAsset)
	assert.Equal(t, "RJ_Hydro_01", *d.SelectedAsset)
	assert.Equal(t, model.AssetHydro, *d.AssetType)
	assert.Equal(t, 41.0, d.AllocatedMW)
	assert.Equal(t, 1, d.MeritClass)
	assert.Equal(t, "Confirm ramp-up by 11:55", d.ActionNote)
}

func TestCompute_SkipsAssetsTooSmall(t *testing.T) {
	p := NewPlanner(fixedID())
	f := model.ForecastRecord{EntityID: "RJ01", P10: 0, P50: 0, P90: 0}
	d := p.Compute(f, rj01(), noon)

	// 0.8*85 = 68 exceeds the hydro unit, so the gas unit is chosen.
	require.NotNil(t, d.SelectedAsset)
	assert.Equal(t, "Suratgarh_Gas", *d.SelectedAsset)
	assert.Equal(t, 85.0, d.AllocatedMW)
	assert.Equal(t, 3, d.MeritClass)
	assert.Equal(t, "Confirm ramp-up by 11:45", d.ActionNote)
}

func TestCompute_FallsBackToFastest(t *testing.T) {
	p := NewPlanner(fixedID())
	cfg := model.EntityConfig{DemandMW: 200, Assets: rj01().Assets}
	d := p.Compute(model.ForecastRecord{}, cfg, noon)

	require.NotNil(t, d.SelectedAsset)
	assert.Equal(t, "RJ_Hydro_01", *d.SelectedAsset)
	assert.Equal(t, 50.0, d.AllocatedMW, "allocation capped at capacity")
}

func TestCompute_DeadBand(t *testing.T) {
	p := NewPlanner(fixedID())
	cfg := model.EntityConfig{DemandMW: 70, Assets: rj01().Assets}
	d := p.Compute(model.ForecastRecord{P10: 68, P50: 68, P90: 68}, cfg, noon)

	assert.Equal(t, 2.0, d.RequiredMW)
	assert.Nil(t, d.SelectedAsset)
	assert.Nil(t, d.AssetType)
	assert.Zero(t, d.AllocatedMW)
	assert.Equal(t, 3, d.MeritClass)
	assert.Equal(t, noBackupNote, d.ActionNote)
}

func TestCompute_EqualRampKeepsCatalogOrder(t *testing.T) {
	p := NewPlanner(fixedID())
	cfg := model.EntityConfig{
		DemandMW: 70,
		Assets: []model.BackupAsset{
			{ID: "b_gas", Type: model.AssetGas, CapacityMW: 100, RampMinutes: 10},
			{ID: "a_coal", Type: model.AssetCoal, CapacityMW: 100, RampMinutes: 10},
			{ID: "c_hydro", Type: model.AssetHydro, CapacityMW: 100, RampMinutes: 12},
		},
	}
	for i := 0; i < 5; i++ {
		d := p.Compute(model.ForecastRecord{P50: 20}, cfg, noon)
		require.NotNil(t, d.SelectedAsset)
		assert.Equal(t, "b_gas", *d.SelectedAsset)
		assert.Equal(t, 3, d.MeritClass)
	}
	assert.Equal(t, "b_gas", cfg.Assets[0].ID, "catalog order untouched")
}

func TestCompute_DefaultsAndPassThrough(t *testing.T) {
	p := NewPlanner(fixedID())
	f := model.ForecastRecord{EntityID: "XX01", P10: 60, P50: 80, P90: 100, Anomaly: true}
	d := p.Compute(f, model.EntityConfig{}, noon)

	assert.Equal(t, DefaultDemandMW, d.DemandMW)
	assert.Zero(t, d.GapMW)
	assert.Equal(t, 12.0, d.RequiredMW)
	assert.Equal(t, 8.0, d.ReserveMW)
	assert.Nil(t, d.SelectedAsset, "no catalog, no selection")
	assert.True(t, d.Anomaly)
	assert.Equal(t, noon, d.Timestamp)
}

func TestNewPlanner_GeneratesUniqueIDs(t *testing.T) {
	p := NewPlanner()
	a := p.Compute(model.ForecastRecord{}, model.EntityConfig{}, noon)
	b := p.Compute(model.ForecastRecord{}, model.EntityConfig{}, noon)
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestMeritClass(t *testing.T) {
	assert.Equal(t, 2, MeritClass("Pumped-Hydro"))
	assert.Equal(t, 3, MeritClass("solar"))
}
