package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/immansha/renewcast/core/model"
)

// Catalog is the static reference data of the tracked plants.
type Catalog struct {
	Plants []model.Entity `json:"plants" yaml:"plants"`
}

// DefaultCatalog returns the three demonstration plants.
func DefaultCatalog() Catalog {
	return Catalog{Plants: []model.Entity{
		{
			ID: "RJ01", Name: "Rajasthan Solar", State: "Rajasthan", Authority: "RLDC",
			CapacityMW: 100, Lat: 27.0238, Lon: 74.2179,
			DemandMW: 85, RampLimitMW: 25, MustRunMW: 20, BaseCloud: 0.15,
			Backup: []model.BackupAsset{
				{ID: "Suratgarh_Gas", Type: model.AssetGas, CapacityMW: 120, RampMinutes: 15},
				{ID: "RJ_Hydro_01", Type: model.AssetHydro, CapacityMW: 50, RampMinutes: 5},
			},
		},
		{
			ID: "GJ01", Name: "Gujarat Solar", State: "Gujarat", Authority: "WRLDC",
			CapacityMW: 80, Lat: 23.2156, Lon: 72.6369,
			DemandMW: 70, RampLimitMW: 20, MustRunMW: 15, BaseCloud: 0.25,
			Backup: []model.BackupAsset{
				{ID: "Dhuvaran_Gas", Type: model.AssetGas, CapacityMW: 100, RampMinutes: 20},
				{ID: "GJ_Pumped_01", Type: model.AssetPumpedHydro, CapacityMW: 40, RampMinutes: 8},
			},
		},
		{
			ID: "TN01", Name: "Tamil Nadu Solar", State: "Tamil Nadu", Authority: "SRLDC",
			CapacityMW: 60, Lat: 10.7905, Lon: 79.8083,
			DemandMW: 55, RampLimitMW: 15, MustRunMW: 12, BaseCloud: 0.30,
			Backup: []model.BackupAsset{
				{ID: "Mettur_Hydro", Type: model.AssetHydro, CapacityMW: 70, RampMinutes: 5},
				{ID: "TN_Gas_01", Type: model.AssetGas, CapacityMW: 80, RampMinutes: 18},
			},
		},
	}}
}

// LoadCatalog reads a YAML (or JSON) catalog. An empty path returns the
// default catalog.
func LoadCatalog(path string) (Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalog{}, err
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Catalog{}, fmt.Errorf("decode catalog: %w", err)
	}
	for i := range c.Plants {
		for j := range c.Plants[i].Backup {
			c.Plants[i].Backup[j].Type = c.Plants[i].Backup[j].Type.Normalize()
		}
	}
	return c, c.Validate()
}

// Validate checks ids and capacities.
func (c Catalog) Validate() error {
	if len(c.Plants) == 0 {
		return fmt.Errorf("catalog has no plants")
	}
	seen := map[string]bool{}
	for _, p := range c.Plants {
		if p.ID == "" {
			return fmt.Errorf("plant without id")
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate plant %s", p.ID)
		}
		seen[p.ID] = true
		if p.CapacityMW <= 0 {
			return fmt.Errorf("plant %s: capacity_mw must be positive", p.ID)
		}
		for _, a := range p.Backup {
			if a.ID == "" || a.CapacityMW <= 0 || a.RampMinutes < 0 {
				return fmt.Errorf("plant %s: invalid backup asset %q", p.ID, a.ID)
			}
		}
	}
	return nil
}

// DispatchConfigs returns the planner configuration by plant id.
func (c Catalog) DispatchConfigs() map[string]model.EntityConfig {
	out := make(map[string]model.EntityConfig, len(c.Plants))
	for _, p := range c.Plants {
		out[p.ID] = p.DispatchConfig()
	}
	return out
}
