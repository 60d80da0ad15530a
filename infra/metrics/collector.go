package metrics

import (
	"context"

	"github.com/immansha/renewcast/core/events"
	coremetrics "github.com/immansha/renewcast/core/metrics"
	"github.com/immansha/renewcast/infra/logger"
	"github.com/immansha/renewcast/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records metrics for
// events. It stops when the context is canceled or the bus is closed. The
// returned channel is closed once the collector has stopped.
func StartEventCollector(ctx context.Context, bus *eventbus.TypedBus[events.Event], sink coremetrics.MetricsSink, log logger.Logger) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := record(sink, ev); err != nil {
					log.Warnf("metrics: %v", err)
				}
			}
		}
	}()
	return done
}

func record(sink coremetrics.MetricsSink, ev events.Event) error {
	switch e := ev.(type) {
	case events.ForecastUpdated:
		return sink.RecordForecast(coremetrics.ForecastEvent{Forecast: e.Forecast, Time: e.Time})
	case events.DispatchGated:
		if r, ok := sink.(coremetrics.DispatchRecorder); ok {
			return r.RecordDispatch(coremetrics.DispatchEvent{Dispatch: e.Dispatch, Changed: e.Changed, Time: e.Time})
		}
	case events.AnomalyDetected:
		if r, ok := sink.(coremetrics.AnomalyRecorder); ok {
			return r.RecordAnomaly(coremetrics.AnomalyEvent{
				EntityID:   e.Forecast.EntityID,
				P50:        e.Forecast.P50,
				ActualMW:   e.Forecast.ActualMW,
				Deviations: e.Forecast.Deviation,
				Time:       e.Time,
			})
		}
	case events.TextGenerated:
		if r, ok := sink.(coremetrics.GenerationRecorder); ok {
			return r.RecordGeneration(coremetrics.GenerationEvent{
				EntityID: e.EntityID,
				Kind:     e.Kind,
				Provider: e.Provider,
				Latency:  e.Latency,
				Failed:   e.Failed,
				Time:     e.Time,
			})
		}
	case events.CycleCompleted:
		if r, ok := sink.(coremetrics.CycleRecorder); ok {
			return r.RecordCycle(coremetrics.CycleEvent{Rows: e.Rows, Errors: e.Errors, Duration: e.Duration, Time: e.Time})
		}
	}
	return nil
}
