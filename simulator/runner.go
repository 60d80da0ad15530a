package simulator

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/immansha/renewcast/core/model"
	"github.com/immansha/renewcast/core/records"
	"github.com/immansha/renewcast/infra/logger"
)

// Runner appends telemetry and weather rows for every entity on their own
// intervals.
type Runner struct {
	cfg       Config
	entities  []model.Entity
	telemetry *Telemetry
	weather   *Weather
	tStore    records.Store[model.Reading]
	wStore    records.Store[model.WeatherReading]
	log       logger.Logger
	now       func() time.Time
}

// NewRunner opens both output streams.
func NewRunner(cfg Config, entities []model.Entity, log logger.Logger) (*Runner, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("simulator: no entities")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if cfg.Fresh {
		for _, p := range []string{cfg.TelemetryFile, cfg.WeatherFile} {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				return nil, err
			}
		}
	}
	ts, err := records.NewJSONLStore[model.Reading](cfg.TelemetryFile)
	if err != nil {
		return nil, fmt.Errorf("telemetry stream: %w", err)
	}
	ws, err := records.NewJSONLStore[model.WeatherReading](cfg.WeatherFile)
	if err != nil {
		return nil, fmt.Errorf("weather stream: %w", err)
	}
	now := time.Now
	return &Runner{
		cfg:       cfg,
		entities:  entities,
		telemetry: NewTelemetry(cfg, now()),
		weather:   NewWeather(cfg, log),
		tStore:    ts,
		wStore:    ws,
		log:       log,
		now:       now,
	}, nil
}

// Run produces until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	r.log.Infof("telemetry emitter started (%d plants @ %s)", len(r.entities), r.cfg.TelemetryInterval)
	if r.weather.Live() {
		r.log.Infof("weather poller started (OpenWeatherMap @ %s)", r.cfg.WeatherInterval)
	} else {
		r.log.Infof("weather poller started (synthetic @ %s)", r.cfg.WeatherInterval)
	}
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.loop(ctx, r.cfg.TelemetryInterval, r.EmitTelemetry)
	}()
	go func() {
		defer wg.Done()
		r.loop(ctx, r.cfg.WeatherInterval, r.EmitWeather)
	}()
	wg.Wait()
}

func (r *Runner) loop(ctx context.Context, every time.Duration, emit func(context.Context) error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		if err := emit(ctx); err != nil {
			r.log.Errorf("emit: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// EmitTelemetry appends one reading per entity, applying injected events.
func (r *Runner) EmitTelemetry(ctx context.Context) error {
	events := LoadEvents(r.cfg.EventsFile)
	now := r.now()
	for _, e := range r.entities {
		if err := r.tStore.Append(ctx, r.telemetry.Reading(e, events[e.ID], now)); err != nil {
			return err
		}
	}
	return nil
}

// EmitWeather appends one observation per entity.
func (r *Runner) EmitWeather(ctx context.Context) error {
	now := r.now()
	for _, e := range r.entities {
		if err := r.wStore.Append(ctx, r.weather.Observe(ctx, e, now)); err != nil {
			return err
		}
	}
	return nil
}
