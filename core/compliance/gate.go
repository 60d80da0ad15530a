// Package compliance applies ramp-rate and must-run rules to dispatch
// decisions before they reach the control system.
package compliance

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/immansha/renewcast/core/logger"
	"github.com/immansha/renewcast/core/model"
	"github.com/immansha/renewcast/core/retrieval"
)

const (
	// DefaultRampLimitMW applies to entities without a configured limit.
	DefaultRampLimitMW = 999.0
	// SnippetLength bounds the regulatory context attached to a record.
	SnippetLength = 400
	// DefaultTopK is the number of chunks retrieved per decision.
	DefaultTopK = 3
	// DefaultRetrievalTimeout bounds one retrieval call.
	DefaultRetrievalTimeout = 2 * time.Second

	// NoContext is the context used when retrieval returns nothing.
	NoContext = "No regulatory context found."
	// ContextUnavailable is the context used when retrieval fails.
	ContextUnavailable = "Regulatory context unavailable."

	ReasonApproved = "All constraints satisfied"
	ReasonMustRun  = "CERC must-run constraint violated"

	mustRunPhrase = "must-run"
)

// Limits are the per-entity constraints. A zero MustRunMW means no floor.
type Limits struct {
	RampMW    float64 `json:"ramp_limit_mw"`
	MustRunMW float64 `json:"must_run_mw"`
}

// LimitsFromEntities extracts the constraints of a catalog.
func LimitsFromEntities(entities []model.Entity) map[string]Limits {
	out := make(map[string]Limits, len(entities))
	for _, e := range entities {
		out[e.ID] = Limits{RampMW: e.RampLimitMW, MustRunMW: e.MustRunMW}
	}
	return out
}

// HeldLog persists held decisions.
type HeldLog interface {
	Append(ctx context.Context, rec model.GatedDispatch) error
}

// Config defines gate settings.
type Config struct {
	TopK             int           `json:"top_k"`
	RetrievalTimeout time.Duration `json:"retrieval_timeout"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.TopK <= 0 {
		c.TopK = DefaultTopK
	}
	if c.RetrievalTimeout <= 0 {
		c.RetrievalTimeout = DefaultRetrievalTimeout
	}
}

// Gate holds the last gated decision of every entity.
type Gate struct {
	cfg       Config
	limits    map[string]Limits
	retriever retrieval.Retriever
	held      HeldLog
	log       logger.Logger

	mu     sync.Mutex
	memory map[string]model.GatedDispatch
}

// NewGate creates a gate. A nil retriever yields no context and a nil held
// log disables the side-log.
func NewGate(cfg Config, limits map[string]Limits, r retrieval.Retriever, held HeldLog, log logger.Logger) *Gate {
	cfg.SetDefaults()
	if r == nil {
		r = retrieval.NopRetriever{}
	}
	if log == nil {
		log = logger.Nop{}
	}
	l := make(map[string]Limits, len(limits))
	for k, v := range limits {
		l[k] = v
	}
	return &Gate{cfg: cfg, limits: l, retriever: r, held: held, log: log, memory: make(map[string]model.GatedDispatch)}
}

// Apply checks d against the previous requested allocation of the same
// entity and the must-run floor. The result always replaces the entity's memory; held
// results are also written to the held log.
func (g *Gate) Apply(ctx context.Context, d model.DispatchDecision) model.GatedDispatch {
	regCtx := g.context(ctx, d.EntityID)
	lim := g.limitsFor(d.EntityID)

	g.mu.Lock()
	prior, hasPrior := g.memory[d.EntityID]
	g.mu.Unlock()

	allocated := d.AllocatedMW
	status := model.StatusApproved
	reason := ReasonApproved

	if hasPrior {
		prev := prior.AllocatedMW
		if ramp := math.Abs(allocated - prev); ramp > lim.RampMW {
			status = model.StatusHeld
			reason = fmt.Sprintf("Ramp rate exceeded: %.1fMW vs limit %.1fMW per decision interval", ramp, lim.RampMW)
			if allocated >= prev {
				allocated = prev + lim.RampMW
			} else {
				allocated = prev - lim.RampMW
			}
		}
	}

	if status == model.StatusApproved && lim.MustRunMW > 0 && allocated < lim.MustRunMW &&
		strings.Contains(strings.ToLower(regCtx), mustRunPhrase) {
		status = model.StatusHeld
		reason = ReasonMustRun
		allocated = lim.MustRunMW
	}

	gated := model.GatedDispatch{
		DispatchDecision: d,
		Status:           status,
		Reason:           reason,
		AdjustedMW:       math.Round(allocated*100) / 100,
		Context:          truncate(regCtx, SnippetLength),
	}

	g.mu.Lock()
	g.memory[d.EntityID] = gated
	g.mu.Unlock()

	if gated.Held() && g.held != nil {
		if err := g.held.Append(ctx, gated); err != nil {
			g.log.Errorf("held log append for %s: %v", d.EntityID, err)
		}
	}
	return gated
}

// Last returns the most recent gated decision of entityID.
func (g *Gate) Last(entityID string) (model.GatedDispatch, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.memory[entityID]
	return rec, ok
}

func (g *Gate) limitsFor(entityID string) Limits {
	lim := g.limits[entityID]
	if lim.RampMW <= 0 {
		lim.RampMW = DefaultRampLimitMW
	}
	return lim
}

// context fetches the regulatory text for an entity. Failures and timeouts
// degrade to a placeholder.
func (g *Gate) context(ctx context.Context, entityID string) string {
	qctx, cancel := context.WithTimeout(ctx, g.cfg.RetrievalTimeout)
	defer cancel()
	q := fmt.Sprintf("ramp rate limits and must-run obligations for plant %s", entityID)
	chunks, err := g.retriever.Query(qctx, q, g.cfg.TopK)
	if err != nil {
		g.log.Warnf("regulatory context for %s: %v", entityID, err)
		return ContextUnavailable
	}
	if text := retrieval.JoinContext(chunks); text != "" {
		return text
	}
	return NoContext
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
