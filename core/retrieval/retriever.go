package retrieval

import (
	"context"
	"fmt"
	"strings"
)

// Chunk is one scored passage of a source document.
type Chunk struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Index  int     `json:"chunk_idx"`
	Score  float64 `json:"score"`
}

// Retriever answers free-text queries with the topK best matching chunks,
// best first. An empty result means no context.
type Retriever interface {
	Query(ctx context.Context, text string, topK int) ([]Chunk, error)
}

// NopRetriever never returns context.
type NopRetriever struct{}

func (NopRetriever) Query(context.Context, string, int) ([]Chunk, error) { return nil, nil }

// JoinContext renders chunks as "[source] text" paragraphs.
func JoinContext(chunks []Chunk) string {
	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}
		src := c.Source
		if src == "" {
			src = "?"
		}
		parts = append(parts, fmt.Sprintf("[%s] %s", src, text))
	}
	return strings.Join(parts, "\n\n")
}

// ChunkText splits text into windows of size runes advancing by
// size-overlap. Blank windows are dropped.
func ChunkText(text, source string, size, overlap int) []Chunk {
	if size <= 0 {
		size = DefaultChunkSize
	}
	step := size - overlap
	if step <= 0 {
		step = size
	}
	runes := []rune(text)
	var out []Chunk
	for i := 0; i < len(runes); i += step {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		w := string(runes[i:end])
		if strings.TrimSpace(w) == "" {
			continue
		}
		out = append(out, Chunk{Text: w, Source: source, Index: len(out)})
	}
	return out
}
