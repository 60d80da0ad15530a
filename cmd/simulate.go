package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/immansha/renewcast/config"
	"github.com/immansha/renewcast/infra/logger"
	"github.com/immansha/renewcast/simulator"
)

var (
	simGateway  bool
	simDropRate float64
	simAckDelay time.Duration
	simFresh    bool
	injSeverity string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the telemetry and weather producers",
	RunE:  runSimulate,
}

var injectCmd = &cobra.Command{
	Use:   "inject <plant_id> <cloud|inverter_fault|demand_spike>",
	Short: "Inject a disturbance into the simulated telemetry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := simulator.Inject(cfg.Simulator.EventsFile, args[0], args[1], injSeverity, time.Now()); err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "injected %s on %s\n", args[1], args[0])
		return err
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every injected disturbance",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		return simulator.ClearEvents(cfg.Simulator.EventsFile)
	},
}

func init() {
	simulateCmd.Flags().BoolVar(&simGateway, "gateway", false, "also acknowledge dispatch commands over MQTT")
	simulateCmd.Flags().Float64Var(&simDropRate, "drop-rate", 0, "fraction of commands left unacknowledged")
	simulateCmd.Flags().DurationVar(&simAckDelay, "ack-delay", 0, "delay before acknowledging a command")
	simulateCmd.Flags().BoolVar(&simFresh, "fresh", false, "truncate the streams before starting")
	injectCmd.Flags().StringVar(&injSeverity, "severity", simulator.SeverityHigh, "low, medium or high")
	simulateCmd.AddCommand(injectCmd, clearCmd)
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	catalog, err := config.LoadCatalog(cfg.Catalog)
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	simCfg := cfg.Simulator
	simCfg.Fresh = simCfg.Fresh || simFresh
	runner, err := simulator.NewRunner(simCfg, catalog.Plants, logger.New("simulator"))
	if err != nil {
		return err
	}

	if simGateway {
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("gateway needs mqtt.broker")
		}
		var strat simulator.AckStrategy = simulator.AutoAck{Delay: simAckDelay}
		if simDropRate > 0 {
			strat = &simulator.RandomAck{Delay: simAckDelay, DropRate: simDropRate}
		}
		gw := simulator.NewGateway(cfg.MQTT.Broker, cfg.MQTT.CommandPrefix, strat, logger.New("gateway"))
		go func() {
			if err := gw.Run(ctx); err != nil {
				logger.New("gateway").Errorf("gateway stopped: %v", err)
			}
		}()
	}

	runner.Run(ctx)
	return nil
}
