//go:build !no_containers

package test

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/immansha/renewcast/app"
	"github.com/immansha/renewcast/config"
	"github.com/immansha/renewcast/core/factory"
	"github.com/immansha/renewcast/core/model"
	"github.com/immansha/renewcast/infra/logger"
	"github.com/immansha/renewcast/simulator"
	"github.com/immansha/renewcast/test/util"
)

// TestPipelineForwardsToGateway runs the full service against a real broker:
// simulated telemetry goes through the pipeline, approved decisions are
// published as commands and the simulated gateway acknowledges them.
func TestPipelineForwardsToGateway(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not installed")
	}
	ctx := context.Background()
	broker, cleanup, err := util.StartMosquitto(ctx)
	if err != nil {
		t.Fatalf("start mosquitto: %v", err)
	}
	defer cleanup()

	promAddr, err := util.FreeAddr()
	if err != nil {
		t.Fatalf("free addr: %v", err)
	}

	dir := t.TempDir()
	cfg := &config.Config{}
	cfg.Pipeline.DataDir = dir
	cfg.Pipeline.PollInterval = 100 * time.Millisecond
	cfg.Retrieval.Dir = filepath.Join(dir, "docs")
	cfg.MQTT.Broker = broker
	cfg.MQTT.ClientID = "renewcast-it"
	cfg.MQTT.AckTopic = "plant/+/ack"
	cfg.MQTT.ForwardAll = true
	cfg.MQTT.AckTimeoutMS = 2000
	cfg.Metrics.Sinks = []factory.ModuleConfig{{Type: "prometheus"}}
	cfg.Metrics.PrometheusAddr = promAddr
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}

	svc, err := app.New(cfg)
	if err != nil {
		t.Fatalf("service: %v", err)
	}
	defer func() { _ = svc.Close() }()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	gw := simulator.NewGateway(broker, "plant", simulator.AutoAck{}, logger.NopLogger{})
	go func() {
		if err := gw.Run(runCtx); err != nil {
			t.Errorf("gateway: %v", err)
		}
	}()
	go func() { _ = svc.Run(runCtx) }()

	// a cloudy reading far below demand needs backup
	writeTelemetry(t, cfg.Pipeline.TelemetryFile, model.Row{
		model.KeyPlantID:       "RJ01",
		model.KeyACPower:       20.0,
		model.KeyCapacity:      100.0,
		model.KeySimulatedHour: 12.0,
		model.KeyCloudFraction: 0.7,
	})

	deadline := time.Now().Add(10 * time.Second)
	for gw.Received() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("gateway received no command")
		}
		time.Sleep(50 * time.Millisecond)
	}

	waitCtx, waitCancel := context.WithTimeout(ctx, util.MetricTimeout)
	defer waitCancel()
	if err := util.WaitForMetric(waitCtx, "http://"+promAddr+"/metrics", `plant_id="RJ01",status="approved"}`); err != nil {
		t.Fatalf("metric: %v", err)
	}
}

func writeTelemetry(t *testing.T, path string, rows ...model.Row) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open telemetry: %v", err)
	}
	defer func() { _ = f.Close() }()
	for _, r := range rows {
		if err := json.NewEncoder(f).Encode(r); err != nil {
			t.Fatalf("write telemetry: %v", err)
		}
	}
}
