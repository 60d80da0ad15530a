package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	apirecords "github.com/immansha/renewcast/api/records"
	"github.com/immansha/renewcast/config"
	"github.com/immansha/renewcast/core/compliance"
	"github.com/immansha/renewcast/core/dispatch"
	"github.com/immansha/renewcast/core/events"
	"github.com/immansha/renewcast/core/forecast"
	"github.com/immansha/renewcast/core/generation"
	coremetrics "github.com/immansha/renewcast/core/metrics"
	"github.com/immansha/renewcast/core/model"
	coremon "github.com/immansha/renewcast/core/monitoring"
	"github.com/immansha/renewcast/core/pipeline"
	"github.com/immansha/renewcast/core/records"
	"github.com/immansha/renewcast/core/retrieval"
	"github.com/immansha/renewcast/infra/logger"
	"github.com/immansha/renewcast/infra/metrics"
	"github.com/immansha/renewcast/infra/monitoring"
	"github.com/immansha/renewcast/infra/mqtt"
	"github.com/immansha/renewcast/internal/eventbus"
)

// Service wires the pipeline stages, the output streams and the optional
// MQTT, metrics and API surfaces.
type Service struct {
	cfg     *config.Config
	log     logger.Logger
	bus     *eventbus.TypedBus[events.Event]
	sink    coremetrics.MetricsSink
	docs    *retrieval.Store
	engine  *forecast.Engine
	orch    *pipeline.Orchestrator
	streams apirecords.Streams
	board   *apirecords.StatusBoard
	mqtt    *mqtt.PahoClient

	closeOnce sync.Once
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	log := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	catalog, err := config.LoadCatalog(cfg.Catalog)
	if err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}

	s := &Service{cfg: cfg, log: log, bus: eventbus.NewTyped[events.Event](), board: apirecords.NewStatusBoard()}
	ok := false
	defer func() {
		if !ok {
			_ = s.Close()
		}
	}()

	if s.sink, err = coremetrics.NewMetricsSink(cfg.Metrics.Sinks); err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	s.docs, err = retrieval.NewStore(cfg.Retrieval, retrieval.WithLogger(logger.New("retrieval")))
	if err != nil {
		return nil, fmt.Errorf("document store: %w", err)
	}
	log.Infof("indexed %d chunks from %s", s.docs.Len(), s.docs.Dir())

	if err := s.openStreams(); err != nil {
		return nil, err
	}

	gen, err := generation.Select(cfg.Generation.Order(), cfg.Generation.Keys, cfg.Generation.Providers)
	if err != nil {
		return nil, fmt.Errorf("generation: %w", err)
	}
	log.Infof("text generation provider: %s", gen.Name())

	s.engine = forecast.NewEngine(cfg.Forecast, forecast.WithLogger(logger.New("forecast")))
	gate := compliance.NewGate(cfg.Compliance, compliance.LimitsFromEntities(catalog.Plants), s.docs, s.streams.Held, logger.New("compliance"))

	s.orch, err = pipeline.New(cfg.Pipeline,
		pipeline.Stages{
			Forecast: s.engine,
			Plan:     dispatch.NewPlanner(),
			Gate:     gate,
			Advisor:  generation.NewAdvisor(gen, s.docs, logger.New("generation")),
		},
		pipeline.Outputs{
			Dispatch:   s.streams.Dispatch,
			Advisories: s.streams.Advisories,
			Anomalies:  s.streams.Anomalies,
		},
		pipeline.WithCatalog(catalog.DispatchConfigs()),
		pipeline.WithBus(s.bus),
		pipeline.WithLogger(logger.New("pipeline")),
	)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	if cfg.MQTT.Enabled() {
		if s.mqtt, err = mqtt.NewPahoClient(cfg.MQTT); err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
	}
	ok = true
	return s, nil
}

func (s *Service) openStreams() error {
	var err error
	if s.streams.Dispatch, err = records.Open[model.GatedDispatch](s.cfg.Records, records.StreamDispatch); err != nil {
		return err
	}
	if s.streams.Held, err = records.Open[model.GatedDispatch](s.cfg.Records, records.StreamHeld); err != nil {
		return err
	}
	if s.streams.Advisories, err = records.Open[records.AdvisoryRecord](s.cfg.Records, records.StreamAdvisory); err != nil {
		return err
	}
	if s.streams.Anomalies, err = records.Open[records.AnomalyRecord](s.cfg.Records, records.StreamAnomalies); err != nil {
		return err
	}
	return nil
}

// Run starts the side services and blocks in the pipeline loop until the
// context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	defer func() {
		if r := recover(); r != nil {
			_ = coremon.PanicError(r, map[string]string{"component": "service"})
			coremon.Flush(2 * time.Second)
			panic(r)
		}
	}()

	go s.docs.Watch(ctx, 0)
	collected := metrics.StartEventCollector(ctx, s.bus, s.sink, logger.New("metrics"))
	watched := s.board.Watch(ctx, s.bus)

	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr, nil); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if addr := s.cfg.API.Addr; addr != "" {
		mux := apirecords.NewMux(s.streams, s.board, s.cfg.API.Token)
		go func() {
			if err := apirecords.Serve(ctx, addr, mux); err != nil {
				s.log.Errorf("api server: %v", err)
			}
		}()
		s.log.Infof("api listening on %s", addr)
	}
	forwarded := closedChan()
	if s.mqtt != nil {
		ack := time.Duration(s.cfg.MQTT.AckTimeoutMS) * time.Millisecond
		forwarded = mqtt.StartForwarder(ctx, s.bus, s.mqtt, s.cfg.MQTT.ForwardAll, ack, logger.New("mqtt_forwarder"))
	}

	s.log.Infof("pipeline started, watching %s", s.cfg.Pipeline.TelemetryFile)
	err := s.orch.Run(ctx)
	<-collected
	<-watched
	<-forwarded
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func closedChan() <-chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}

// Close saves the forecast snapshot and releases every resource. It is safe
// to call more than once.
func (s *Service) Close() error {
	var errs []error
	s.closeOnce.Do(func() {
		if s.engine != nil {
			if err := s.engine.Save(); err != nil {
				errs = append(errs, fmt.Errorf("save forecast snapshot: %w", err))
			}
		}
		if s.mqtt != nil {
			s.mqtt.Disconnect()
		}
		for _, c := range []interface{ Close() error }{s.streams.Dispatch, s.streams.Held, s.streams.Advisories, s.streams.Anomalies} {
			if c == nil {
				continue
			}
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		s.bus.Close()
		coremon.Flush(2 * time.Second)
	})
	return errors.Join(errs...)
}
