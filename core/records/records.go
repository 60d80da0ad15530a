// Package records persists the pipeline outputs as append-only streams and
// reads them back with simple filters.
package records

import (
	"context"
	"time"

	"github.com/immansha/renewcast/core/model"
)

// Stream names of the pipeline outputs.
const (
	StreamDispatch  = "dispatch_commands"
	StreamHeld      = "held_commands"
	StreamAdvisory  = "operator_advisory"
	StreamAnomalies = "anomaly_reports"
)

// Record is a persisted line that can be filtered by entity and time.
type Record interface {
	RecordEntity() string
	RecordTime() time.Time
}

// Query defines filters for retrieving records. Zero values match all.
type Query struct {
	Start    time.Time
	End      time.Time
	EntityID string
	Limit    int
}

func (q Query) match(r Record) bool {
	ts := r.RecordTime()
	if !q.Start.IsZero() && ts.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && ts.After(q.End) {
		return false
	}
	return q.EntityID == "" || r.RecordEntity() == q.EntityID
}

// newest keeps the last n records when n is positive.
func newest[T any](res []T, n int) []T {
	if n > 0 && len(res) > n {
		return res[len(res)-n:]
	}
	return res
}

// Store persists records of one stream and supports querying.
type Store[T Record] interface {
	Append(ctx context.Context, rec T) error
	Query(ctx context.Context, q Query) ([]T, error)
	Close() error
}

// DispatchRef points an advisory at the decision that triggered it.
type DispatchRef struct {
	DecisionID  string  `json:"decision_id"`
	Asset       *string `json:"asset"`
	AllocatedMW float64 `json:"allocated_mw"`
	MeritClass  int     `json:"cerc_merit_class"`
}

// AdvisoryRecord is an operator advisory generated for a gated decision.
type AdvisoryRecord struct {
	Timestamp time.Time   `json:"timestamp"`
	EntityID  string      `json:"plant_id"`
	Type      string      `json:"type"`
	Advisory  string      `json:"advisory"`
	Provider  string      `json:"llm_provider"`
	Ref       DispatchRef `json:"dispatch_ref"`
}

func (r AdvisoryRecord) RecordEntity() string  { return r.EntityID }
func (r AdvisoryRecord) RecordTime() time.Time { return r.Timestamp }

// NewAdvisoryRecord builds the advisory record of a gated decision.
func NewAdvisoryRecord(ts time.Time, g model.GatedDispatch, text, provider string) AdvisoryRecord {
	return AdvisoryRecord{
		Timestamp: ts.UTC(),
		EntityID:  g.EntityID,
		Type:      "dispatch_advisory",
		Advisory:  text,
		Provider:  provider,
		Ref: DispatchRef{
			DecisionID:  g.ID,
			Asset:       g.SelectedAsset,
			AllocatedMW: g.AllocatedMW,
			MeritClass:  g.MeritClass,
		},
	}
}

// AnomalyRecord is an engineering report for a flagged forecast.
type AnomalyRecord struct {
	Timestamp time.Time `json:"timestamp"`
	EntityID  string    `json:"plant_id"`
	Type      string    `json:"type"`
	Report    string    `json:"report"`
	P50       float64   `json:"p50_mw"`
	ActualMW  float64   `json:"actual_mw"`
	Provider  string    `json:"llm_provider"`
}

func (r AnomalyRecord) RecordEntity() string  { return r.EntityID }
func (r AnomalyRecord) RecordTime() time.Time { return r.Timestamp }

// NewAnomalyRecord builds the anomaly record of a forecast.
func NewAnomalyRecord(ts time.Time, f model.ForecastRecord, text, provider string) AnomalyRecord {
	return AnomalyRecord{
		Timestamp: ts.UTC(),
		EntityID:  f.EntityID,
		Type:      "anomaly_report",
		Report:    text,
		P50:       f.P50,
		ActualMW:  f.ActualMW,
		Provider:  provider,
	}
}
