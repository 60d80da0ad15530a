package retrieval

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/immansha/renewcast/core/logger"
)

const (
	// DefaultChunkSize is the chunk window in characters.
	DefaultChunkSize = 400
	// DefaultChunkOverlap is the overlap between consecutive windows.
	DefaultChunkOverlap = 80
)

// Config defines the document store settings.
type Config struct {
	Dir          string   `json:"dir"`
	ChunkSize    int      `json:"chunk_size"`
	ChunkOverlap int      `json:"chunk_overlap"`
	Extensions   []string `json:"extensions"`
	EmbedDim     int      `json:"embed_dim"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Dir == "" {
		c.Dir = "docs"
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.ChunkOverlap <= 0 {
		c.ChunkOverlap = DefaultChunkOverlap
	}
	if len(c.Extensions) == 0 {
		c.Extensions = []string{".txt", ".md", ".pdf"}
	}
	if c.EmbedDim <= 0 {
		c.EmbedDim = DefaultEmbedDim
	}
}

// Validate checks the chunk geometry.
func (c Config) Validate() error {
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk_overlap %d must be smaller than chunk_size %d", c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

type index struct {
	chunks  []Chunk
	vectors [][]float64
	hashes  map[string]string
}

// Store is an in-memory vector index over the files of one directory.
type Store struct {
	cfg Config
	emb Embedder
	log logger.Logger

	mu  sync.RWMutex
	idx *index
}

// StoreOption customises a Store.
type StoreOption func(*Store)

// WithEmbedder replaces the hash embedder.
func WithEmbedder(e Embedder) StoreOption {
	return func(s *Store) {
		if e != nil {
			s.emb = e
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

// NewStore creates the document directory if needed and builds the first
// index.
func NewStore(cfg Config, opts ...StoreOption) (*Store, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Store{
		cfg: cfg,
		emb: HashEmbedder{Dim: cfg.EmbedDim},
		log: logger.Nop{},
		idx: &index{hashes: map[string]string{}},
	}
	for _, o := range opts {
		o(s)
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("docs dir: %w", err)
	}
	if err := s.Rebuild(); err != nil {
		return nil, err
	}
	return s, nil
}

// Rebuild re-reads every document and swaps the new index in.
func (s *Store) Rebuild() error {
	files, err := s.documents()
	if err != nil {
		return err
	}
	next := &index{hashes: make(map[string]string, len(files))}
	for _, path := range files {
		b, err := os.ReadFile(path)
		if err != nil {
			s.log.Warnf("read %s: %v", path, err)
			continue
		}
		name := filepath.Base(path)
		next.hashes[name] = digest(b)
		chunks := ChunkText(s.extract(name, b), name, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
		for _, c := range chunks {
			next.chunks = append(next.chunks, c)
			next.vectors = append(next.vectors, s.emb.Embed(c.Text))
		}
		s.log.Debugf("indexed %s: %d chunks", name, len(chunks))
	}
	s.mu.Lock()
	s.idx = next
	s.mu.Unlock()
	s.log.Infof("document index ready: %d chunks from %d files", len(next.chunks), len(next.hashes))
	return nil
}

// Changed reports whether the document set differs from the indexed one.
func (s *Store) Changed() (bool, error) {
	files, err := s.documents()
	if err != nil {
		return false, err
	}
	s.mu.RLock()
	indexed := s.idx.hashes
	s.mu.RUnlock()
	if len(files) != len(indexed) {
		return true, nil
	}
	for _, path := range files {
		b, err := os.ReadFile(path)
		if err != nil {
			return true, nil
		}
		if indexed[filepath.Base(path)] != digest(b) {
			return true, nil
		}
	}
	return false, nil
}

// Len returns the number of indexed chunks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.idx.chunks)
}

// Query returns the topK chunks most similar to text. Ties keep document
// order.
func (s *Store) Query(ctx context.Context, text string, topK int) ([]Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}
	q := s.emb.Embed(text)

	s.mu.RLock()
	idx := s.idx
	s.mu.RUnlock()

	if len(idx.chunks) == 0 {
		return nil, nil
	}
	scored := make([]Chunk, len(idx.chunks))
	for i, c := range idx.chunks {
		c.Score = floats.Dot(q, idx.vectors[i])
		scored[i] = c
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if topK > len(scored) {
		topK = len(scored)
	}
	return scored[:topK], nil
}

// Dir returns the watched directory.
func (s *Store) Dir() string { return s.cfg.Dir }

func (s *Store) documents() ([]string, error) {
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !s.wanted(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(s.cfg.Dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) wanted(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range s.cfg.Extensions {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// extract returns the indexable text of a file. A PDF without extractable
// text is indexed by name.
func (s *Store) extract(name string, b []byte) string {
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return string(b)
	}
	text, err := pdfText(b)
	if err != nil {
		s.log.Warnf("extract %s: %v", name, err)
	}
	if text == "" {
		return fmt.Sprintf("[PDF: %s]", name)
	}
	return text
}

func digest(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}
