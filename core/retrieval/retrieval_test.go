package retrieval

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeDoc(t *testing.T, dir, name, text string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(text), 0o644))
}

func TestChunkText_Windows(t *testing.T) {
	text := strings.Repeat("a", 1000)
	chunks := ChunkText(text, "doc.txt", 400, 80)
	require.Len(t, chunks, 4)
	assert.Len(t, chunks[0].Text, 400)
	assert.Len(t, chunks[3].Text, 40)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, "doc.txt", c.Source)
	}
	assert.Empty(t, ChunkText("   \n  ", "blank.txt", 400, 80))
}

func TestHashEmbedder_UnitAndDeterministic(t *testing.T) {
	e := HashEmbedder{}
	a := e.Embed("ramp limits")
	require.Len(t, a, DefaultEmbedDim)
	var norm float64
	for _, v := range a {
		norm += v * v
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-9)
	assert.Equal(t, a, e.Embed("ramp limits"))
	assert.NotEqual(t, a, e.Embed("ramp limit"))
}

func TestStore_QueryRanksExactMatchFirst(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "cerc.txt", "Solar plants carry must-run status under the grid code.")
	writeDoc(t, dir, "ramp.txt", "Ramp rate limits apply per decision interval.")
	writeDoc(t, dir, "notes.csv", "ignored")

	s, err := NewStore(Config{Dir: dir})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	got, err := s.Query(context.Background(), "Ramp rate limits apply per decision interval.", 3)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "ramp.txt", got[0].Source)
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)
	assert.Greater(t, got[0].Score, got[1].Score)
}

func TestStore_IndexesPDFText(t *testing.T) {
	dir := t.TempDir()
	b, err := os.ReadFile(filepath.Join("testdata", "grid_code.pdf"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "grid_code.pdf"), b, 0o644))

	s, err := NewStore(Config{Dir: dir})
	require.NoError(t, err)
	got, err := s.Query(context.Background(), "must-run obligations", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "grid_code.pdf", got[0].Source)
	assert.Contains(t, strings.ToLower(got[0].Text), "must-run status")
}

func TestStore_UnreadablePDFIndexedByName(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "scan.pdf", "%PDF-1.4\nnot really a pdf")
	s, err := NewStore(Config{Dir: dir})
	require.NoError(t, err)
	got, err := s.Query(context.Background(), "scan", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "[PDF: scan.pdf]", got[0].Text)
}

func TestStore_EmptyDirectory(t *testing.T) {
	s, err := NewStore(Config{Dir: filepath.Join(t.TempDir(), "docs")})
	require.NoError(t, err)
	got, err := s.Query(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_CancelledContext(t *testing.T) {
	s, err := NewStore(Config{Dir: t.TempDir()})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Query(ctx, "x", 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_ChangedAndRebuild(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "a.txt", "first version")
	s, err := NewStore(Config{Dir: dir})
	require.NoError(t, err)

	changed, err := s.Changed()
	require.NoError(t, err)
	assert.False(t, changed)

	writeDoc(t, dir, "a.txt", "second version")
	changed, err = s.Changed()
	require.NoError(t, err)
	assert.True(t, changed)

	require.NoError(t, s.Rebuild())
	got, err := s.Query(context.Background(), "second version", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "second version", got[0].Text)
}

func TestStore_WatchPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewStore(Config{Dir: dir})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		s.Watch(ctx, 20*time.Millisecond)
		close(done)
	}()

	writeDoc(t, dir, "new.txt", "must-run obligations for plant RJ01")
	assert.Eventually(t, func() bool { return s.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestConfig_Validate(t *testing.T) {
	_, err := NewStore(Config{Dir: t.TempDir(), ChunkSize: 50, ChunkOverlap: 50})
	assert.Error(t, err)
}

func TestJoinContext(t *testing.T) {
	got := JoinContext([]Chunk{
		{Text: " must-run applies ", Source: "cerc.txt"},
		{Text: "  "},
		{Text: "no source"},
	})
	assert.Equal(t, "[cerc.txt] must-run applies\n\n[?] no source", got)
}
