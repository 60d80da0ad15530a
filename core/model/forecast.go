package model

// ForecastRecord is the output of one forecast update for an entity.
// MAE and Improving stay nil until enough samples have been seen.
type ForecastRecord struct {
	EntityID  string    `json:"plant_id"`
	P10       float64   `json:"p10_mw"`
	P50       float64   `json:"p50_mw"`
	P90       float64   `json:"p90_mw"`
	ActualMW  float64   `json:"actual_mw"`
	MAE       *float64  `json:"mae"`
	Improving *bool     `json:"mae_improving"`
	MAEHist   []float64 `json:"mae_history"`
	NTrained  int       `json:"n_trained"`
	Anomaly   bool      `json:"anomaly_detected"`
	Deviation []float64 `json:"deviation_history"`
}
