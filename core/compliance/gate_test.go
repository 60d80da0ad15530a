package compliance

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/immansha/renewcast/core/model"
	"github.com/immansha/renewcast/core/retrieval"
)

type staticRetriever struct {
	chunks []retrieval.Chunk
	err    error
	query  string
	topK   int
}

func (s *staticRetriever) Query(_ context.Context, text string, topK int) ([]retrieval.Chunk, error) {
	s.query, s.topK = text, topK
	return s.chunks, s.err
}

type blockingRetriever struct{}

func (blockingRetriever) Query(ctx context.Context, _ string, _ int) ([]retrieval.Chunk, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type memHeld struct {
	recs []model.GatedDispatch
	err  error
}

func (m *memHeld) Append(_ context.Context, rec model.GatedDispatch) error {
	m.recs = append(m.recs, rec)
	return m.err
}

func decision(id string, mw float64) model.DispatchDecision {
	return model.DispatchDecision{ID: "d", EntityID: id, AllocatedMW: mw}
}

func TestApply_RampClipUp(t *testing.T) {
	held := &memHeld{}
	g := NewGate(Config{}, map[string]Limits{"GJ01": {RampMW: 20}}, nil, held, nil)
	ctx := context.Background()

	first := g.Apply(ctx, decision("GJ01", 40))
	assert.Equal(t, model.StatusApproved, first.Status)
	assert.Equal(t, 40.0, first.AdjustedMW)

	second := g.Apply(ctx, decision("GJ01", 90))
	assert.Equal(t, model.StatusHeld, second.Status)
	assert.Equal(t, 60.0, second.AdjustedMW)
	assert.Equal(t, 90.0, second.AllocatedMW, "requested allocation preserved")
	assert.Contains(t, strings.ToLower(second.Reason), "ramp")
	require.Len(t, held.recs, 1)
	assert.Equal(t, second, held.recs[0])

	last, ok := g.Last("GJ01")
	require.True(t, ok)
	assert.Equal(t, second, last)
}

func TestApply_RampClipDownFromRequestedPrior(t *testing.T) {
	g := NewGate(Config{}, map[string]Limits{"TN01": {RampMW: 15}}, nil, nil, nil)
	ctx := context.Background()
	g.Apply(ctx, decision("TN01", 60))
	down := g.Apply(ctx, decision("TN01", 10))
	assert.True(t, down.Held())
	assert.Equal(t, 45.0, down.AdjustedMW)

	// The clipped tick does not carry over: the prior request was already 10.
	down = g.Apply(ctx, decision("TN01", 10))
	assert.Equal(t, model.StatusApproved, down.Status)
	assert.Equal(t, 10.0, down.AdjustedMW)
}

func TestApply_RepeatedRequestApprovedAfterClip(t *testing.T) {
	g := NewGate(Config{}, map[string]Limits{"GJ01": {RampMW: 20}}, nil, nil, nil)
	ctx := context.Background()
	g.Apply(ctx, decision("GJ01", 40))
	clipped := g.Apply(ctx, decision("GJ01", 90))
	require.True(t, clipped.Held())
	assert.Equal(t, 60.0, clipped.AdjustedMW)

	again := g.Apply(ctx, decision("GJ01", 90))
	assert.Equal(t, model.StatusApproved, again.Status)
	assert.Equal(t, ReasonApproved, again.Reason)
	assert.Equal(t, 90.0, again.AdjustedMW)
}

func TestApply_NoPriorNoRampCheck(t *testing.T) {
	g := NewGate(Config{}, map[string]Limits{"RJ01": {RampMW: 5}}, nil, nil, nil)
	got := g.Apply(context.Background(), decision("RJ01", 100))
	assert.Equal(t, model.StatusApproved, got.Status)
	assert.Equal(t, ReasonApproved, got.Reason)
}

func TestApply_DefaultRampLimit(t *testing.T) {
	g := NewGate(Config{}, nil, nil, nil, nil)
	ctx := context.Background()
	g.Apply(ctx, decision("XX01", 0))
	got := g.Apply(ctx, decision("XX01", 500))
	assert.Equal(t, model.StatusApproved, got.Status)
}

func TestApply_MustRun(t *testing.T) {
	limits := map[string]Limits{"RJ01": {RampMW: 25, MustRunMW: 20}}

	with := &staticRetriever{chunks: []retrieval.Chunk{{Text: "Solar is MUST-RUN under IEGC.", Source: "cerc.txt"}}}
	held := &memHeld{}
	g := NewGate(Config{}, limits, with, held, nil)
	got := g.Apply(context.Background(), decision("RJ01", 10))
	assert.Equal(t, model.StatusHeld, got.Status)
	assert.Equal(t, 20.0, got.AdjustedMW)
	assert.Equal(t, ReasonMustRun, got.Reason)
	assert.Equal(t, "[cerc.txt] Solar is MUST-RUN under IEGC.", got.Context)
	assert.Equal(t, "ramp rate limits and must-run obligations for plant RJ01", with.query)
	assert.Equal(t, DefaultTopK, with.topK)
	assert.Len(t, held.recs, 1)

	without := &staticRetriever{chunks: []retrieval.Chunk{{Text: "Ramp limits apply.", Source: "grid.txt"}}}
	g = NewGate(Config{}, limits, without, nil, nil)
	got = g.Apply(context.Background(), decision("RJ01", 10))
	assert.Equal(t, model.StatusApproved, got.Status)
	assert.Equal(t, 10.0, got.AdjustedMW)
}

func TestApply_MustRunSkippedWhenRampHeld(t *testing.T) {
	with := &staticRetriever{chunks: []retrieval.Chunk{{Text: "must-run", Source: "c"}}}
	g := NewGate(Config{}, map[string]Limits{"RJ01": {RampMW: 25, MustRunMW: 20}}, with, nil, nil)
	ctx := context.Background()
	g.Apply(ctx, decision("RJ01", 50))
	got := g.Apply(ctx, decision("RJ01", 0))
	assert.Equal(t, 25.0, got.AdjustedMW)
	assert.Contains(t, got.Reason, "Ramp rate exceeded")
}

func TestApply_RetrievalFailures(t *testing.T) {
	g := NewGate(Config{}, map[string]Limits{"RJ01": {MustRunMW: 20}}, &staticRetriever{err: errors.New("index offline")}, nil, nil)
	got := g.Apply(context.Background(), decision("RJ01", 10))
	assert.Equal(t, ContextUnavailable, got.Context)
	assert.Equal(t, model.StatusApproved, got.Status)

	g = NewGate(Config{}, nil, &staticRetriever{}, nil, nil)
	got = g.Apply(context.Background(), decision("RJ01", 10))
	assert.Equal(t, NoContext, got.Context)

	g = NewGate(Config{RetrievalTimeout: 20 * time.Millisecond}, nil, blockingRetriever{}, nil, nil)
	start := time.Now()
	got = g.Apply(context.Background(), decision("RJ01", 10))
	assert.Equal(t, ContextUnavailable, got.Context)
	assert.Less(t, time.Since(start), time.Second)
}

func TestApply_SnippetTruncated(t *testing.T) {
	long := strings.Repeat("x", 1000)
	g := NewGate(Config{}, nil, &staticRetriever{chunks: []retrieval.Chunk{{Text: long, Source: "s"}}}, nil, nil)
	got := g.Apply(context.Background(), decision("RJ01", 10))
	assert.Len(t, got.Context, SnippetLength)
	assert.True(t, strings.HasPrefix(got.Context, "[s] x"))
}

func TestApply_HeldLogErrorIgnored(t *testing.T) {
	held := &memHeld{err: errors.New("disk full")}
	g := NewGate(Config{}, map[string]Limits{"RJ01": {RampMW: 1}}, nil, held, nil)
	g.Apply(context.Background(), decision("RJ01", 0))
	got := g.Apply(context.Background(), decision("RJ01", 10))
	assert.True(t, got.Held())
	last, _ := g.Last("RJ01")
	assert.Equal(t, 1.0, last.AdjustedMW)
}

func TestLimitsFromEntities(t *testing.T) {
	l := LimitsFromEntities([]model.Entity{{ID: "RJ01", RampLimitMW: 25, MustRunMW: 20}})
	assert.Equal(t, Limits{RampMW: 25, MustRunMW: 20}, l["RJ01"])
}
