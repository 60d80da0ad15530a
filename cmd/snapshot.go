package cmd

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/stat"

	"github.com/immansha/renewcast/core/forecast"
)

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Summarise the saved forecast model state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		snap, err := forecast.ReadSnapshot(cfg.Forecast.SnapshotPath)
		if err != nil {
			return err
		}
		return writeSnapshot(cmd.OutOrStdout(), snap)
	},
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
}

func writeSnapshot(w io.Writer, snap forecast.Snapshot) error {
	if _, err := fmt.Fprintf(w, "saved %s, %d plants\n", snap.SavedAt.Format("2006-01-02 15:04:05Z07:00"), len(snap.Entities)); err != nil {
		return err
	}
	ids := make([]string, 0, len(snap.Entities))
	for id := range snap.Entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "PLANT\tN\tMAE\tMAE_MEAN\tMAE_STD\tDEV_MEAN\tDEV_MAX")
	for _, id := range ids {
		e := snap.Entities[id]
		mae := 0.0
		if e.MAECount > 0 {
			mae = e.MAESum / float64(e.MAECount)
		}
		maeMean, maeStd := meanStd(e.MAEHistory)
		devMean, _ := meanStd(e.Deviations)
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\n",
			id, e.NTrained, mae, maeMean, maeStd, devMean, maxOf(e.Deviations))
	}
	return tw.Flush()
}

func meanStd(xs []float64) (float64, float64) {
	switch len(xs) {
	case 0:
		return 0, 0
	case 1:
		return xs[0], 0
	}
	return stat.MeanStdDev(xs, nil)
}

func maxOf(xs []float64) float64 {
	m := 0.0
	for _, x := range xs {
		if x > m {
			m = x
		}
	}
	return m
}
