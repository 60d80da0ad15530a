package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/immansha/renewcast/core/metrics"
	"github.com/immansha/renewcast/infra/logger"
)

// InfluxConfig locates the InfluxDB bucket.
type InfluxConfig struct {
	URL    string `json:"url"`
	Token  string `json:"token"`
	Org    string `json:"org"`
	Bucket string `json:"bucket"`
}

// InfluxSink writes pipeline events to an InfluxDB instance using the
// official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(cfg InfluxConfig) *InfluxSink {
	base := strings.TrimSuffix(cfg.URL, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, cfg.Token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(cfg InfluxConfig) coremetrics.MetricsSink {
	sink := NewInfluxSink(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// Close releases the client.
func (s *InfluxSink) Close() { s.client.Close() }

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordForecast writes the forecast band and the measured output.
func (s *InfluxSink) RecordForecast(ev coremetrics.ForecastEvent) error {
	f := ev.Forecast
	p := write.NewPointWithMeasurement("forecast").
		AddTag("plant_id", f.EntityID).
		AddTag("component", "forecast_engine").
		AddField("p10_mw", round3(f.P10)).
		AddField("p50_mw", round3(f.P50)).
		AddField("p90_mw", round3(f.P90)).
		AddField("actual_mw", round3(f.ActualMW)).
		AddField("n_trained", f.NTrained).
		AddField("anomaly", f.Anomaly)
	if f.MAE != nil {
		p = p.AddField("mae_mw", round3(*f.MAE))
	}
	return s.write(p.SetTime(ev.Time))
}

// RecordDispatch writes a gated decision.
func (s *InfluxSink) RecordDispatch(ev coremetrics.DispatchEvent) error {
	d := ev.Dispatch
	p := write.NewPointWithMeasurement("dispatch_gated").
		AddTag("plant_id", d.EntityID).
		AddTag("status", string(d.Status)).
		AddTag("asset", d.AssetName()).
		AddTag("decision_id", d.ID).
		AddTag("component", "compliance_gate").
		AddField("required_mw", round3(d.RequiredMW)).
		AddField("allocated_mw", round3(d.AllocatedMW)).
		AddField("adjusted_mw", round3(d.AdjustedMW)).
		AddField("reserve_mw", round3(d.ReserveMW)).
		AddField("merit_class", d.MeritClass).
		AddField("changed", ev.Changed).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordAnomaly writes an anomaly.
func (s *InfluxSink) RecordAnomaly(ev coremetrics.AnomalyEvent) error {
	p := write.NewPointWithMeasurement("anomaly_detected").
		AddTag("plant_id", ev.EntityID).
		AddTag("component", "forecast_engine").
		AddField("p50_mw", round3(ev.P50)).
		AddField("actual_mw", round3(ev.ActualMW)).
		AddField("window", len(ev.Deviations)).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordGeneration writes a generation request.
func (s *InfluxSink) RecordGeneration(ev coremetrics.GenerationEvent) error {
	p := write.NewPointWithMeasurement("text_generated").
		AddTag("plant_id", ev.EntityID).
		AddTag("kind", ev.Kind).
		AddTag("provider", ev.Provider).
		AddTag("failed", strconv.FormatBool(ev.Failed)).
		AddField("latency_ms", round3(ev.Latency.Seconds()*1000)).
		SetTime(ev.Time)
	return s.write(p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
