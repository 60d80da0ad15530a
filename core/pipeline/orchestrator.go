package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/immansha/renewcast/core/events"
	"github.com/immansha/renewcast/core/generation"
	"github.com/immansha/renewcast/core/logger"
	"github.com/immansha/renewcast/core/model"
	"github.com/immansha/renewcast/core/monitoring"
	"github.com/immansha/renewcast/core/records"
	"github.com/immansha/renewcast/internal/eventbus"
)

// Forecaster updates the per-entity forecast with one merged reading.
type Forecaster interface {
	Update(entityID string, row model.Row) model.ForecastRecord
}

// Checkpointer keeps input cursors next to the model state so a restart
// resumes after the rows the model already learned from. A Forecaster may
// implement it.
type Checkpointer interface {
	Cursor(stream string) (int64, bool)
	SetCursor(stream string, off int64)
}

// Planner turns a forecast into a backup allocation.
type Planner interface {
	Compute(f model.ForecastRecord, cfg model.EntityConfig, now time.Time) model.DispatchDecision
}

// Gate applies the compliance constraints to a decision.
type Gate interface {
	Apply(ctx context.Context, d model.DispatchDecision) model.GatedDispatch
}

// Advisor writes operator-facing text. It never fails; failures come back
// as placeholder text.
type Advisor interface {
	Provider() string
	Advisory(ctx context.Context, g model.GatedDispatch, row model.Row) string
	AnomalyReport(ctx context.Context, f model.ForecastRecord, row model.Row) string
}

// Stages are the processing steps applied to every row.
type Stages struct {
	Forecast Forecaster
	Plan     Planner
	Gate     Gate
	Advisor  Advisor
}

// Outputs are the append-only logs written by the orchestrator. A nil store
// disables that output.
type Outputs struct {
	Dispatch   records.Store[model.GatedDispatch]
	Advisories records.Store[records.AdvisoryRecord]
	Anomalies  records.Store[records.AnomalyRecord]
}

// CycleStats summarises one cycle.
type CycleStats struct {
	Rows    int
	Skipped int
	Errors  int
}

// Orchestrator reads the input streams and drives every row through the
// stages. It is the only writer of its own state and is not safe for
// concurrent use of Cycle.
type Orchestrator struct {
	cfg     Config
	stages  Stages
	out     Outputs
	catalog map[string]model.EntityConfig
	bus     *eventbus.TypedBus[events.Event]
	log     logger.Logger
	now     func() time.Time

	telemetry  *Tail
	checkpoint Checkpointer
	aux        map[string]model.Row
	last       map[string]model.GatedDispatch
}

// Option customises an Orchestrator.
type Option func(*Orchestrator)

// WithCatalog sets the static per-entity planner configuration. Entities not
// in the catalog are planned with defaults.
func WithCatalog(c map[string]model.EntityConfig) Option {
	return func(o *Orchestrator) {
		for id, cfg := range c {
			o.catalog[id] = cfg
		}
	}
}

// WithBus publishes pipeline events on b.
func WithBus(b *eventbus.TypedBus[events.Event]) Option {
	return func(o *Orchestrator) { o.bus = b }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New creates an Orchestrator. Every stage is required.
func New(cfg Config, st Stages, out Outputs, opts ...Option) (*Orchestrator, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if st.Forecast == nil || st.Plan == nil || st.Gate == nil || st.Advisor == nil {
		return nil, errors.New("pipeline: forecast, plan, gate and advisor stages are required")
	}
	o := &Orchestrator{
		cfg:       cfg,
		stages:    st,
		out:       out,
		catalog:   make(map[string]model.EntityConfig),
		log:       logger.Nop{},
		now:       time.Now,
		telemetry: NewTail(cfg.TelemetryFile),
		aux:       make(map[string]model.Row),
		last:      make(map[string]model.GatedDispatch),
	}
	for _, opt := range opts {
		opt(o)
	}
	if cp, ok := st.Forecast.(Checkpointer); ok {
		o.checkpoint = cp
		if off, ok := cp.Cursor(cfg.TelemetryFile); ok {
			o.telemetry.Commit(off)
			o.log.Infof("resuming %s at offset %d", cfg.TelemetryFile, off)
		}
	}
	return o, nil
}

// Run executes a cycle every poll interval until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.log.Infof("pipeline live: telemetry=%s weather=%s interval=%s", o.cfg.TelemetryFile, o.cfg.WeatherFile, o.cfg.PollInterval)
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if _, err := o.Cycle(ctx); err != nil {
			o.log.Errorf("cycle: %v", err)
			monitoring.CaptureException(err, map[string]string{"component": "pipeline"})
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Cycle refreshes the weather cache, reads the new telemetry rows and
// processes them in order. A failing row is logged and skipped; the error
// returned only reports an unreadable input stream.
func (o *Orchestrator) Cycle(ctx context.Context) (CycleStats, error) {
	start := o.now()
	var stats CycleStats

	if o.cfg.WeatherFile != "" {
		latest, err := ScanLatest(o.cfg.WeatherFile)
		if err != nil {
			o.log.Warnf("weather stream: %v", err)
		}
		for id, row := range latest {
			o.aux[id] = row
		}
	}

	entries, end, err := o.telemetry.Pending()
	interrupted := false
	for _, e := range entries {
		if ctx.Err() != nil {
			interrupted = true
			break
		}
		// committed before the row runs so a snapshot taken while it is
		// learned already points past it
		o.commit(e.End)
		row := e.Row
		id := row.EntityID()
		if id == "" {
			stats.Skipped++
			continue
		}
		stats.Rows++
		if perr := o.processRow(ctx, id, row); perr != nil {
			stats.Errors++
			o.log.Errorf("error processing %s: %v", id, perr)
		}
	}
	if !interrupted {
		o.commit(end)
	}

	o.publish(events.CycleCompleted{Rows: stats.Rows, Errors: stats.Errors, Duration: o.now().Sub(start), Time: o.now()})
	if err != nil {
		return stats, fmt.Errorf("telemetry stream: %w", err)
	}
	return stats, nil
}

func (o *Orchestrator) commit(off int64) {
	if off == o.telemetry.Offset() {
		return
	}
	o.telemetry.Commit(off)
	if o.checkpoint != nil {
		o.checkpoint.SetCursor(o.telemetry.Path(), off)
	}
}

// Last returns the most recent gated decision of an entity.
func (o *Orchestrator) Last(entityID string) (model.GatedDispatch, bool) {
	g, ok := o.last[entityID]
	return g, ok
}

func (o *Orchestrator) processRow(ctx context.Context, id string, row model.Row) (err error) {
	defer func() {
		if perr := monitoring.PanicError(recover(), map[string]string{"component": "pipeline", "plant_id": id}); perr != nil {
			err = perr
		}
	}()

	merged := row.Merge(o.aux[id])

	f := o.stages.Forecast.Update(id, merged)
	now := o.now()
	o.publish(events.ForecastUpdated{Forecast: f, Time: now})
	o.logForecast(f, row)

	d := o.stages.Plan.Compute(f, o.entityConfig(id), now)
	g := o.stages.Gate.Apply(ctx, d)
	if !g.Held() && o.out.Dispatch != nil {
		if aerr := o.out.Dispatch.Append(ctx, g); aerr != nil {
			o.log.Errorf("[%s] write dispatch: %v", id, aerr)
			monitoring.CaptureException(aerr, map[string]string{"component": "pipeline", "stream": records.StreamDispatch})
		}
	}

	prev, seen := o.last[id]
	changed := !seen || prev.AllocatedMW != g.AllocatedMW
	o.last[id] = g
	o.publish(events.DispatchGated{Dispatch: g, Changed: changed, Time: now})
	o.logDispatch(g, changed)

	if f.NTrained%o.cfg.AdvisoryEvery == 1 {
		o.advise(ctx, g, merged)
	}
	if f.Anomaly {
		o.publish(events.AnomalyDetected{Forecast: f, Time: now})
		o.reportAnomaly(ctx, f, merged)
	}
	return nil
}

func (o *Orchestrator) advise(ctx context.Context, g model.GatedDispatch, row model.Row) {
	o.log.Infof("[%s] generating advisory", g.EntityID)
	start := o.now()
	text := o.stages.Advisor.Advisory(ctx, g, row)
	o.generated(g.EntityID, events.KindAdvisory, text, start)
	if o.out.Advisories == nil {
		return
	}
	rec := records.NewAdvisoryRecord(o.now(), g, text, o.stages.Advisor.Provider())
	if err := o.out.Advisories.Append(ctx, rec); err != nil {
		o.log.Errorf("[%s] write advisory: %v", g.EntityID, err)
		return
	}
	o.log.Infof("[%s] advisory written: %s", g.EntityID, preview(text, 100))
}

func (o *Orchestrator) reportAnomaly(ctx context.Context, f model.ForecastRecord, row model.Row) {
	o.log.Warnf("[%s] anomaly detected: underperforming P50 for %d consecutive intervals", f.EntityID, len(f.Deviation))
	start := o.now()
	text := o.stages.Advisor.AnomalyReport(ctx, f, row)
	o.generated(f.EntityID, events.KindAnomaly, text, start)
	if o.out.Anomalies == nil {
		return
	}
	rec := records.NewAnomalyRecord(o.now(), f, text, o.stages.Advisor.Provider())
	if err := o.out.Anomalies.Append(ctx, rec); err != nil {
		o.log.Errorf("[%s] write anomaly report: %v", f.EntityID, err)
		return
	}
	o.log.Warnf("[%s] anomaly report written", f.EntityID)
}

func (o *Orchestrator) generated(id, kind, text string, start time.Time) {
	end := o.now()
	o.publish(events.TextGenerated{
		EntityID: id,
		Kind:     kind,
		Provider: o.stages.Advisor.Provider(),
		Latency:  end.Sub(start),
		Failed:   generation.IsPlaceholder(text),
		Time:     end,
	})
}

func (o *Orchestrator) entityConfig(id string) model.EntityConfig {
	return o.catalog[id]
}

func (o *Orchestrator) publish(ev events.Event) {
	if o.bus != nil {
		o.bus.Publish(ev)
	}
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
