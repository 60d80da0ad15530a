package records

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// JSONLStore stores records in a JSONL file, one object per line.
type JSONLStore[T Record] struct {
	path string
	mu   sync.Mutex
}

// NewJSONLStore creates the file and its directory if needed. Failure here
// means the stream cannot be written at all.
func NewJSONLStore[T Record](path string) (*JSONLStore[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	if cerr := f.Close(); cerr != nil {
		return nil, cerr
	}
	return &JSONLStore[T]{path: path}, nil
}

// Path returns the file path.
func (s *JSONLStore[T]) Path() string { return s.path }

func (s *JSONLStore[T]) Append(ctx context.Context, rec T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return json.NewEncoder(f).Encode(rec)
}

func (s *JSONLStore[T]) Query(ctx context.Context, q Query) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	res, err := scan[T](ctx, f, q)
	if err != nil {
		return nil, err
	}
	return newest(res, q.Limit), nil
}

func (s *JSONLStore[T]) Close() error { return nil }

// scan decodes matching lines of r. Malformed lines are skipped.
func scan[T Record](ctx context.Context, r io.Reader, q Query) ([]T, error) {
	var res []T
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var rec T
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			continue
		}
		if q.match(rec) {
			res = append(res, rec)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

const maxLine = 4 << 20
