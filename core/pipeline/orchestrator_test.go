package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/immansha/renewcast/core/dispatch"
	"github.com/immansha/renewcast/core/events"
	"github.com/immansha/renewcast/core/forecast"
	"github.com/immansha/renewcast/core/generation"
	"github.com/immansha/renewcast/core/model"
	"github.com/immansha/renewcast/core/records"
	"github.com/immansha/renewcast/internal/eventbus"
)

type memStore[T records.Record] struct {
	mu   sync.Mutex
	recs []T
	err  error
}

func (m *memStore[T]) Append(_ context.Context, r T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.recs = append(m.recs, r)
	return nil
}

func (m *memStore[T]) Query(context.Context, records.Query) ([]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]T(nil), m.recs...), nil
}

func (m *memStore[T]) Close() error { return nil }

func (m *memStore[T]) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.recs)
}

// stubForecaster counts updates per entity and reports the count as the
// trained sample number.
type stubForecaster struct {
	n       map[string]int
	rows    []model.Row
	anomaly map[string]bool
	panicOn string
}

func newStubForecaster() *stubForecaster {
	return &stubForecaster{n: map[string]int{}, anomaly: map[string]bool{}}
}

func (s *stubForecaster) Update(id string, row model.Row) model.ForecastRecord {
	if id == s.panicOn {
		panic("boom")
	}
	s.n[id]++
	s.rows = append(s.rows, row)
	actual := row.Float(model.KeyACPower, 0)
	return model.ForecastRecord{
		EntityID: id,
		P10:      actual - 5,
		P50:      actual,
		P90:      actual + 5,
		ActualMW: actual,
		NTrained: s.n[id],
		Anomaly:  s.anomaly[id],
	}
}

type passGate struct{ held bool }

func (g passGate) Apply(_ context.Context, d model.DispatchDecision) model.GatedDispatch {
	st := model.StatusApproved
	if g.held {
		st = model.StatusHeld
	}
	return model.GatedDispatch{DispatchDecision: d, Status: st, AdjustedMW: d.AllocatedMW}
}

type stubAdvisor struct {
	advisories int
	reports    int
	fail       bool
}

func (a *stubAdvisor) Provider() string { return "stub" }

func (a *stubAdvisor) Advisory(context.Context, model.GatedDispatch, model.Row) string {
	a.advisories++
	if a.fail {
		return generation.Placeholder(errors.New("down"))
	}
	return "advice"
}

func (a *stubAdvisor) AnomalyReport(context.Context, model.ForecastRecord, model.Row) string {
	a.reports++
	return "report"
}

type fixture struct {
	dir      string
	orch     *Orchestrator
	forecast *stubForecaster
	advisor  *stubAdvisor
	dispatch *memStore[model.GatedDispatch]
	advice   *memStore[records.AdvisoryRecord]
	anomaly  *memStore[records.AnomalyRecord]
	bus      *eventbus.TypedBus[events.Event]
}

func newFixture(t *testing.T, gate Gate) *fixture {
	t.Helper()
	f := &fixture{
		dir:      t.TempDir(),
		forecast: newStubForecaster(),
		advisor:  &stubAdvisor{},
		dispatch: &memStore[model.GatedDispatch]{},
		advice:   &memStore[records.AdvisoryRecord]{},
		anomaly:  &memStore[records.AnomalyRecord]{},
		bus:      eventbus.NewTypedWithBuffer[events.Event](256),
	}
	catalog := map[string]model.EntityConfig{
		"RJ01": {DemandMW: 85, Assets: []model.BackupAsset{
			{ID: "Suratgarh_Gas", Type: model.AssetGas, CapacityMW: 120, RampMinutes: 15},
			{ID: "RJ_Hydro_01", Type: model.AssetHydro, CapacityMW: 50, RampMinutes: 5},
		}},
	}
	orch, err := New(Config{DataDir: f.dir},
		Stages{Forecast: f.forecast, Plan: dispatch.NewPlanner(), Gate: gate, Advisor: f.advisor},
		Outputs{Dispatch: f.dispatch, Advisories: f.advice, Anomalies: f.anomaly},
		WithCatalog(catalog), WithBus(f.bus),
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }),
	)
	require.NoError(t, err)
	f.orch = orch
	return f
}

func (f *fixture) telemetry(t *testing.T, lines ...string) {
	appendFile(t, filepath.Join(f.dir, TelemetryFileName), strings.Join(lines, "\n")+"\n")
}

func (f *fixture) weather(t *testing.T, lines ...string) {
	appendFile(t, filepath.Join(f.dir, WeatherFileName), strings.Join(lines, "\n")+"\n")
}

func drain(sub <-chan events.Event) []events.Event {
	var out []events.Event
	for {
		select {
		case ev := <-sub:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestNew_RequiresStages(t *testing.T) {
	_, err := New(Config{}, Stages{}, Outputs{})
	require.Error(t, err)
}

func TestCycle_MergesWeatherWithoutOverriding(t *testing.T) {
	f := newFixture(t, passGate{})
	f.weather(t, `{"plant_id":"RJ01","cloud_fraction":0.9,"temp_c":31}`)
	f.telemetry(t, `{"plant_id":"RJ01","ac_power_mw":40,"cloud_fraction":0.2}`)

	stats, err := f.orch.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Rows)
	require.Len(t, f.forecast.rows, 1)
	row := f.forecast.rows[0]
	assert.Equal(t, 0.2, row.Float(model.KeyCloudFraction, 0), "telemetry keys win")
	assert.Equal(t, 31.0, row.Float(model.KeyTempC, 0), "absent keys filled from weather")
}

func TestCycle_PersistsApprovedAndAdvisesOnSchedule(t *testing.T) {
	f := newFixture(t, passGate{})
	var lines []string
	for i := 0; i < 7; i++ {
		lines = append(lines, `{"plant_id":"RJ01","ac_power_mw":40}`)
	}
	f.telemetry(t, lines...)

	stats, err := f.orch.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, stats.Rows)
	assert.Len(t, f.dispatch.recs, 7)
	// n_trained 1 and 7
	assert.Equal(t, 2, f.advisor.advisories)
	require.Len(t, f.advice.recs, 2)
	adv := f.advice.recs[0]
	assert.Equal(t, "RJ01", adv.EntityID)
	assert.Equal(t, "stub", adv.Provider)
	assert.Equal(t, f.dispatch.recs[0].ID, adv.Ref.DecisionID)
	require.NotNil(t, adv.Ref.Asset)
	assert.Equal(t, "RJ_Hydro_01", *adv.Ref.Asset)

	g, ok := f.orch.Last("RJ01")
	require.True(t, ok)
	assert.Equal(t, model.StatusApproved, g.Status)
}

func TestCycle_HeldDecisionsAreNotPersisted(t *testing.T) {
	f := newFixture(t, passGate{held: true})
	f.telemetry(t, `{"plant_id":"RJ01","ac_power_mw":10}`)
	_, err := f.orch.Cycle(context.Background())
	require.NoError(t, err)
	assert.Empty(t, f.dispatch.recs)
	assert.Len(t, f.advice.recs, 1, "advisories are written for held decisions too")
}

func TestCycle_AnomalyProducesReport(t *testing.T) {
	f := newFixture(t, passGate{})
	f.forecast.anomaly["RJ01"] = true
	sub := f.bus.Subscribe()
	f.telemetry(t, `{"plant_id":"RJ01","ac_power_mw":10}`)

	_, err := f.orch.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, f.advisor.reports)
	require.Len(t, f.anomaly.recs, 1)
	assert.Equal(t, "report", f.anomaly.recs[0].Report)
	assert.Equal(t, 10.0, f.anomaly.recs[0].ActualMW)

	var sawAnomaly bool
	for _, ev := range drain(sub) {
		if _, ok := ev.(events.AnomalyDetected); ok {
			sawAnomaly = true
		}
	}
	assert.True(t, sawAnomaly)
}

func TestCycle_RowErrorsAreSkipped(t *testing.T) {
	f := newFixture(t, passGate{})
	f.forecast.panicOn = "BAD"
	f.telemetry(t,
		`{"plant_id":"BAD","ac_power_mw":10}`,
		`{"ac_power_mw":10}`,
		`{"plant_id":"RJ01","ac_power_mw":10}`,
	)
	stats, err := f.orch.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CycleStats{Rows: 2, Skipped: 1, Errors: 1}, stats)
	assert.Len(t, f.dispatch.recs, 1)
}

func TestCycle_PersistenceFailureDoesNotStopRow(t *testing.T) {
	f := newFixture(t, passGate{})
	f.dispatch.err = errors.New("disk full")
	f.telemetry(t, `{"plant_id":"RJ01","ac_power_mw":10}`)
	stats, err := f.orch.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Errors)
	assert.Equal(t, 1, f.advisor.advisories)
}

func TestCycle_EventsAndChangeDetection(t *testing.T) {
	f := newFixture(t, passGate{})
	f.advisor.fail = true
	sub := f.bus.Subscribe()
	f.telemetry(t,
		`{"plant_id":"RJ01","ac_power_mw":10}`,
		`{"plant_id":"RJ01","ac_power_mw":10}`,
		`{"plant_id":"RJ01","ac_power_mw":60}`,
	)
	_, err := f.orch.Cycle(context.Background())
	require.NoError(t, err)

	var changed []bool
	var gens []events.TextGenerated
	var cycles int
	for _, ev := range drain(sub) {
		switch e := ev.(type) {
		case events.DispatchGated:
			changed = append(changed, e.Changed)
		case events.TextGenerated:
			gens = append(gens, e)
		case events.CycleCompleted:
			cycles++
			assert.Equal(t, 3, e.Rows)
		}
	}
	assert.Equal(t, []bool{true, false, true}, changed)
	require.Len(t, gens, 1)
	assert.True(t, gens[0].Failed)
	assert.Equal(t, events.KindAdvisory, gens[0].Kind)
	assert.Equal(t, 1, cycles)
}

// clipGate holds every decision, stepping the adjusted allocation each call.
type clipGate struct{ mw float64 }

func (g *clipGate) Apply(_ context.Context, d model.DispatchDecision) model.GatedDispatch {
	g.mw += 5
	return model.GatedDispatch{DispatchDecision: d, Status: model.StatusHeld, AdjustedMW: g.mw}
}

func TestCycle_ChangeFollowsRequestedAllocation(t *testing.T) {
	f := newFixture(t, &clipGate{})
	sub := f.bus.Subscribe()
	f.telemetry(t,
		`{"plant_id":"RJ01","ac_power_mw":10}`,
		`{"plant_id":"RJ01","ac_power_mw":10}`,
	)
	_, err := f.orch.Cycle(context.Background())
	require.NoError(t, err)

	var changed []bool
	for _, ev := range drain(sub) {
		if e, ok := ev.(events.DispatchGated); ok {
			changed = append(changed, e.Changed)
		}
	}
	assert.Equal(t, []bool{true, false}, changed)
}

func TestCycle_UnknownEntityUsesDefaults(t *testing.T) {
	f := newFixture(t, passGate{})
	f.telemetry(t, `{"plant_id":"XX99","ac_power_mw":50}`)
	_, err := f.orch.Cycle(context.Background())
	require.NoError(t, err)
	require.Len(t, f.dispatch.recs, 1)
	d := f.dispatch.recs[0]
	assert.Equal(t, dispatch.DefaultDemandMW, d.DemandMW)
	assert.Nil(t, d.SelectedAsset)
}

func restartOrchestrator(t *testing.T, dir string, eng *forecast.Engine, dispatched *memStore[model.GatedDispatch]) *Orchestrator {
	t.Helper()
	orch, err := New(Config{DataDir: dir},
		Stages{Forecast: eng, Plan: dispatch.NewPlanner(), Gate: passGate{}, Advisor: &stubAdvisor{}},
		Outputs{Dispatch: dispatched},
	)
	require.NoError(t, err)
	return orch
}

func TestCycle_RestartResumesAfterSnapshot(t *testing.T) {
	dir := t.TempDir()
	snap := filepath.Join(dir, "models", "state.json")
	var lines []string
	for i := 0; i < 5; i++ {
		lines = append(lines, `{"plant_id":"RJ01","ac_power_mw":40,"simulated_hour":12}`)
	}
	appendFile(t, filepath.Join(dir, TelemetryFileName), strings.Join(lines, "\n")+"\n")

	eng := forecast.NewEngine(forecast.Config{SnapshotPath: snap})
	first := &memStore[model.GatedDispatch]{}
	stats, err := restartOrchestrator(t, dir, eng, first).Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, stats.Rows)
	require.NoError(t, eng.Save())

	restored := forecast.NewEngine(forecast.Config{SnapshotPath: snap})
	require.Equal(t, 5, restored.Trained("RJ01"))
	second := &memStore[model.GatedDispatch]{}
	orch := restartOrchestrator(t, dir, restored, second)
	stats, err = orch.Cycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Rows, "rows already learned are not replayed")
	assert.Equal(t, 5, restored.Trained("RJ01"))
	assert.Zero(t, second.len())

	appendFile(t, filepath.Join(dir, TelemetryFileName), lines[0]+"\n")
	stats, err = orch.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Rows)
	assert.Equal(t, 6, restored.Trained("RJ01"))
}

func TestCycle_CancelledRowsStayPending(t *testing.T) {
	f := newFixture(t, passGate{})
	f.telemetry(t,
		`{"plant_id":"RJ01","ac_power_mw":10}`,
		`{"plant_id":"RJ01","ac_power_mw":20}`,
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stats, err := f.orch.Cycle(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Rows)
	assert.Zero(t, f.orch.telemetry.Offset())

	stats, err = f.orch.Cycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Rows)
	assert.Equal(t, 2, f.dispatch.len())
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t, passGate{})
	f.orch.cfg.PollInterval = 10 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.orch.Run(ctx) }()
	f.telemetry(t, `{"plant_id":"RJ01","ac_power_mw":10}`)
	require.Eventually(t, func() bool {
		return f.dispatch.len() == 1
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}

func TestLogLines(t *testing.T) {
	mae := 3.456
	imp := true
	f := model.ForecastRecord{EntityID: "RJ01", ActualMW: 40.04, P50: 42.17, NTrained: 12, MAE: &mae, Improving: &imp}
	row := model.Row{model.KeyCloudFraction: 0.256, model.KeySimulatedHour: 13.25}
	assert.Equal(t, "[RJ01] ☀ 40.0MW actual | P50=42.2MW | cloud=25% | hour=13.2 | n=12 | MAE=3.46MW↓", forecastLine(f, row))

	f.MAE = nil
	assert.Equal(t, "[RJ01] ☀ 40.0MW actual | P50=42.2MW | cloud=0% | hour=? | n=12", forecastLine(f, model.Row{}))

	asset := "RJ_Hydro_01"
	g := model.GatedDispatch{
		DispatchDecision: model.DispatchDecision{EntityID: "RJ01", SelectedAsset: &asset, AllocatedMW: 90, GapMW: 12.34, MeritClass: 1},
		Status:           model.StatusHeld,
		AdjustedMW:       60,
	}
	assert.Equal(t, "[RJ01] ⚡ RJ_Hydro_01 90.0MW backup | gap=12.3MW | CERC-1 | status=held ◄ DISPATCH CHANGED", dispatchLine(g, true))
	assert.Equal(t, "[RJ01] ⚡ RJ_Hydro_01 90.0MW backup | gap=12.3MW | CERC-1 | status=held", dispatchLine(g, false))
}
