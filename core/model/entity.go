package model

import "strings"

// AssetType names the technology of a backup asset.
type AssetType string

const (
	AssetHydro       AssetType = "hydro"
	AssetPumpedHydro AssetType = "pumped_hydro"
	AssetGas         AssetType = "gas"
	AssetCoal        AssetType = "coal"
)

// Normalize folds spelling variants ("Pumped-Hydro") to the canonical form.
func (t AssetType) Normalize() AssetType {
	s := strings.ToLower(strings.TrimSpace(string(t)))
	return AssetType(strings.ReplaceAll(s, "-", "_"))
}

// BackupAsset is a dispatchable plant that can cover a renewable shortfall.
type BackupAsset struct {
	ID          string    `json:"id" yaml:"id"`
	Type        AssetType `json:"type" yaml:"type"`
	CapacityMW  float64   `json:"capacity_mw" yaml:"capacity_mw"`
	RampMinutes int       `json:"ramp_min" yaml:"ramp_min"`
}

// Entity is a generation site tracked independently by the pipeline.
// It is reference data loaded once at startup and never mutated.
type Entity struct {
	ID         string  `json:"id" yaml:"id"`
	Name       string  `json:"name" yaml:"name"`
	CapacityMW float64 `json:"capacity_mw" yaml:"capacity_mw"`
	Lat        float64 `json:"lat" yaml:"lat"`
	Lon        float64 `json:"lon" yaml:"lon"`
	State      string  `json:"state" yaml:"state"`
	// Authority is the regulatory/dispatch authority tag (e.g. the SLDC).
	Authority string `json:"authority" yaml:"authority"`

	DemandMW    float64       `json:"demand_mw" yaml:"demand_mw"`
	Backup      []BackupAsset `json:"backup" yaml:"backup"`
	RampLimitMW float64       `json:"ramp_limit_mw" yaml:"ramp_limit_mw"`
	MustRunMW   float64       `json:"must_run_mw" yaml:"must_run_mw"`
	BaseCloud   float64       `json:"base_cloud" yaml:"base_cloud"`
}

// EntityConfig is the static slice of an Entity the dispatch planner needs.
type EntityConfig struct {
	DemandMW float64
	Assets   []BackupAsset
}

// DispatchConfig extracts the planner configuration of the entity.
func (e Entity) DispatchConfig() EntityConfig {
	assets := make([]BackupAsset, len(e.Backup))
	copy(assets, e.Backup)
	return EntityConfig{DemandMW: e.DemandMW, Assets: assets}
}
