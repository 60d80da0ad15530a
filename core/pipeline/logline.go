package pipeline

import (
	"fmt"
	"strings"

	"github.com/immansha/renewcast/core/model"
)

func (o *Orchestrator) logForecast(f model.ForecastRecord, row model.Row) {
	o.log.Infof("%s", forecastLine(f, row))
}

func (o *Orchestrator) logDispatch(g model.GatedDispatch, changed bool) {
	o.log.Infof("%s", dispatchLine(g, changed))
}

func forecastLine(f model.ForecastRecord, row model.Row) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] ☀ %.1fMW actual | P50=%.1fMW | cloud=%d%%",
		f.EntityID, f.ActualMW, f.P50, int(row.Float(model.KeyCloudFraction, 0)*100))
	if row.Has(model.KeySimulatedHour) {
		fmt.Fprintf(&b, " | hour=%.1f", row.Float(model.KeySimulatedHour, 0))
	} else {
		b.WriteString(" | hour=?")
	}
	fmt.Fprintf(&b, " | n=%d", f.NTrained)
	if f.MAE != nil {
		arrow := "~"
		if f.Improving != nil && *f.Improving {
			arrow = "↓"
		}
		fmt.Fprintf(&b, " | MAE=%.2fMW%s", *f.MAE, arrow)
	}
	return b.String()
}

func dispatchLine(g model.GatedDispatch, changed bool) string {
	line := fmt.Sprintf("[%s] ⚡ %s %.1fMW backup | gap=%.1fMW | CERC-%d | status=%s",
		g.EntityID, g.AssetName(), g.AllocatedMW, g.GapMW, g.MeritClass, g.Status)
	if changed {
		line += " ◄ DISPATCH CHANGED"
	}
	return line
}
