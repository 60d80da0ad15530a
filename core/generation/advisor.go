package generation

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/immansha/renewcast/core/logger"
	"github.com/immansha/renewcast/core/model"
	"github.com/immansha/renewcast/core/retrieval"
)

const advisorySystem = `You are a Grid Intelligence Agent for India's renewable energy grid.
Write a precise, actionable one-paragraph dispatch advisory for grid operators.
Include: current forecast conditions, the dispatch decision made, regulatory basis
from the CERC documents provided, recommended operator action with timing, and
reserve guidance. Be specific with MW numbers. Cite the document you reference.`

const anomalySystem = `You are a Grid Intelligence Agent analyzing renewable energy anomalies.
Write a clear technical anomaly report for engineers. Include: statistical deviation
summary, most likely technical root cause, reference to applicable plant specs or
maintenance protocols from the documents provided, and recommended immediate action
with specific steps.`

const (
	noDocuments       = "No regulatory documents available."
	expectedInverter  = 0.973
	defaultRetrieveTO = 2 * time.Second
)

// Advisor writes advisories and anomaly reports grounded on retrieved
// documents.
type Advisor struct {
	gen       Generator
	retriever retrieval.Retriever
	log       logger.Logger
	timeout   time.Duration
}

// NewAdvisor creates an Advisor. A nil generator means the demo provider.
func NewAdvisor(gen Generator, r retrieval.Retriever, log logger.Logger) *Advisor {
	if gen == nil {
		gen = Demo{}
	}
	if r == nil {
		r = retrieval.NopRetriever{}
	}
	if log == nil {
		log = logger.Nop{}
	}
	return &Advisor{gen: gen, retriever: r, log: log, timeout: defaultRetrieveTO}
}

// Provider returns the name of the generator in use.
func (a *Advisor) Provider() string { return a.gen.Name() }

// Advisory writes the operator advisory for a gated decision. row is the
// merged reading that produced it.
func (a *Advisor) Advisory(ctx context.Context, g model.GatedDispatch, row model.Row) string {
	docs := a.rag(ctx, fmt.Sprintf("CERC merit order class %d dispatch rules solar backup", g.MeritClass))
	state := row.String(model.KeyState)
	if state == "" {
		state = "India"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Plant: %s (%s)\n", g.EntityID, state)
	fmt.Fprintf(&b, "Current cloud cover: %.0f%%\n", row.Float(model.KeyCloudFraction, 0.2)*100)
	fmt.Fprintf(&b, "GHI: %.0f W/m²\n", row.Float(model.KeyGHI, 500))
	fmt.Fprintf(&b, "Actual generation: %.1f MW\n", row.Float(model.KeyACPower, 0))
	fmt.Fprintf(&b, "P10 forecast: %.1f MW\n", g.P10)
	fmt.Fprintf(&b, "P50 forecast: %.1f MW\n", g.P50)
	fmt.Fprintf(&b, "P90 forecast: %.1f MW\n", g.P90)
	fmt.Fprintf(&b, "Demand: %.1f MW\n", g.DemandMW)
	fmt.Fprintf(&b, "Dispatch decision: Allocate %.1f MW from %s\n", g.AllocatedMW, g.AssetName())
	fmt.Fprintf(&b, "Compliance status: %s (%s)\n", g.Status, g.Reason)
	if g.Held() {
		fmt.Fprintf(&b, "Held allocation: %.1f MW\n", g.AdjustedMW)
	}
	fmt.Fprintf(&b, "CERC merit order class: %d\n", g.MeritClass)
	fmt.Fprintf(&b, "Action required: %s\n", g.ActionNote)
	fmt.Fprintf(&b, "Spinning reserve: %.1f MW\n\n", g.ReserveMW)
	fmt.Fprintf(&b, "Regulatory context from live document index:\n%s\n\n", docs)
	b.WriteString("Write the operator dispatch advisory in one paragraph.\n")
	return a.call(ctx, advisorySystem, b.String())
}

// AnomalyReport writes the engineering report for a flagged forecast.
func (a *Advisor) AnomalyReport(ctx context.Context, f model.ForecastRecord, row model.Row) string {
	var devPct float64
	if f.P50 > 0 {
		devPct = (f.ActualMW - f.P50) / f.P50 * 100
	}
	devs := make([]string, len(f.Deviation))
	for i, d := range f.Deviation {
		devs[i] = fmt.Sprintf("%.0f%%", d*100)
	}
	docs := a.rag(ctx, fmt.Sprintf("plant %s inverter efficiency maintenance inspection protocol", f.EntityID))

	var b strings.Builder
	fmt.Fprintf(&b, "Plant: %s\n", f.EntityID)
	fmt.Fprintf(&b, "Actual generation: %.1f MW\n", f.ActualMW)
	fmt.Fprintf(&b, "P50 forecast: %.1f MW\n", f.P50)
	fmt.Fprintf(&b, "Deviation: %.1f%%\n", devPct)
	fmt.Fprintf(&b, "Consecutive underperformance intervals: %d\n", len(f.Deviation))
	fmt.Fprintf(&b, "Deviation values: [%s]\n", strings.Join(devs, ", "))
	fmt.Fprintf(&b, "Measured inverter efficiency: %.1f%%\n", row.Float(model.KeyInverterEff, expectedInverter)*100)
	fmt.Fprintf(&b, "Expected inverter efficiency: %.1f%%\n\n", math.Round(expectedInverter*1000)/10)
	fmt.Fprintf(&b, "Plant specifications and protocols:\n%s\n\n", docs)
	b.WriteString("Generate the anomaly report with root cause and recommended action.\n")
	return a.call(ctx, anomalySystem, b.String())
}

func (a *Advisor) call(ctx context.Context, system, user string) string {
	out, err := a.gen.Generate(ctx, system, user)
	if err != nil {
		a.log.Warnf("%s generation failed: %v", a.gen.Name(), err)
		return Placeholder(err)
	}
	return out
}

func (a *Advisor) rag(ctx context.Context, query string) string {
	qctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	chunks, err := a.retriever.Query(qctx, query, 3)
	if err != nil {
		a.log.Warnf("document lookup: %v", err)
		return noDocuments
	}
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("[From %s]\n%s", c.Source, text))
	}
	if len(parts) == 0 {
		return noDocuments
	}
	return strings.Join(parts, "\n\n")
}
