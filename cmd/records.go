package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/immansha/renewcast/core/model"
	"github.com/immansha/renewcast/core/records"
)

var (
	recPlant string
	recLimit int
	recSince time.Duration
)

var recordsCmd = &cobra.Command{
	Use:       "records <dispatch|held|advisory|anomalies>",
	Short:     "Print the newest records of an output stream as JSON lines",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"dispatch", "held", "advisory", "anomalies"},
	RunE:      runRecords,
}

func init() {
	recordsCmd.Flags().StringVar(&recPlant, "plant", "", "only records of this plant")
	recordsCmd.Flags().IntVarP(&recLimit, "limit", "n", 20, "number of records")
	recordsCmd.Flags().DurationVar(&recSince, "since", 0, "only records newer than this")
	rootCmd.AddCommand(recordsCmd)
}

func runRecords(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	q := records.Query{EntityID: recPlant, Limit: recLimit}
	if recSince > 0 {
		q.Start = time.Now().Add(-recSince)
	}
	out := cmd.OutOrStdout()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	switch args[0] {
	case "dispatch":
		return dump[model.GatedDispatch](ctx, out, cfg.Records, records.StreamDispatch, q)
	case "held":
		return dump[model.GatedDispatch](ctx, out, cfg.Records, records.StreamHeld, q)
	case "advisory":
		return dump[records.AdvisoryRecord](ctx, out, cfg.Records, records.StreamAdvisory, q)
	case "anomalies":
		return dump[records.AnomalyRecord](ctx, out, cfg.Records, records.StreamAnomalies, q)
	}
	return fmt.Errorf("unknown stream %q", args[0])
}

func dump[T records.Record](ctx context.Context, w io.Writer, cfg records.Config, stream string, q records.Query) error {
	store, err := records.Open[T](cfg, stream)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	recs, err := store.Query(ctx, q)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	for _, r := range recs {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}
