package model

import "time"

// Status is the outcome of the compliance gate.
type Status string

const (
	StatusApproved Status = "approved"
	StatusHeld     Status = "held"
)

// DispatchDecision is the backup allocation proposed for one forecast.
type DispatchDecision struct {
	ID            string     `json:"decision_id"`
	EntityID      string     `json:"plant_id"`
	Timestamp     time.Time  `json:"timestamp"`
	P10           float64    `json:"p10_mw"`
	P50           float64    `json:"p50_mw"`
	P90           float64    `json:"p90_mw"`
	DemandMW      float64    `json:"demand_mw"`
	GapMW         float64    `json:"expected_gap_mw"`
	RequiredMW    float64    `json:"total_required_backup_mw"`
	SelectedAsset *string    `json:"selected_asset"`
	AssetType     *AssetType `json:"asset_type"`
	AllocatedMW   float64    `json:"allocated_mw"`
	ReserveMW     float64    `json:"spinning_reserve_mw"`
	MeritClass    int        `json:"cerc_merit_class"`
	ActionNote    string     `json:"action_note"`
	Anomaly       bool       `json:"anomaly_detected"`
}

// GatedDispatch is a DispatchDecision after compliance adjustment.
type GatedDispatch struct {
	DispatchDecision
	Status     Status  `json:"status"`
	Reason     string  `json:"reason"`
	AdjustedMW float64 `json:"adjusted_mw"`
	Context    string  `json:"rag_context_snippet"`
}

// Held reports whether the gate held the decision.
func (g GatedDispatch) Held() bool { return g.Status == StatusHeld }

// AssetName returns the selected asset id or "none".
func (d DispatchDecision) AssetName() string {
	if d.SelectedAsset == nil {
		return "none"
	}
	return *d.SelectedAsset
}

// RecordEntity returns the entity the decision belongs to.
func (d DispatchDecision) RecordEntity() string { return d.EntityID }

// RecordTime returns the decision time.
func (d DispatchDecision) RecordTime() time.Time { return d.Timestamp }
