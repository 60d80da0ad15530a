package records

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// RotatingJSONLStore stores records in a JSONL file with size based rotation.
type RotatingJSONLStore[T Record] struct {
	logger *lumberjack.Logger
	path   string
	mu     sync.Mutex
}

// NewRotatingJSONLStore creates a store with rotation options in megabytes
// and days.
func NewRotatingJSONLStore[T Record](path string, maxSizeMB, maxBackups, maxAgeDays int) (*RotatingJSONLStore[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
	}
	return &RotatingJSONLStore[T]{logger: lj, path: path}, nil
}

// Append writes the record and rotates the file if needed.
func (s *RotatingJSONLStore[T]) Append(ctx context.Context, rec T) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.logger.Write(append(b, '\n'))
	return err
}

// Query reads rotated backups first, then the live file.
func (s *RotatingJSONLStore[T]) Query(ctx context.Context, q Query) ([]T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ext := filepath.Ext(s.path)
	prefix := s.path[:len(s.path)-len(ext)]
	backups, err := filepath.Glob(prefix + "-*" + ext)
	if err != nil {
		return nil, err
	}
	// lumberjack backup names embed a sortable timestamp.
	sort.Strings(backups)
	var res []T
	for _, f := range append(backups, s.path) {
		file, err := os.Open(f)
		if err != nil {
			continue
		}
		part, err := scan[T](ctx, file, q)
		_ = file.Close()
		if err != nil {
			return nil, err
		}
		res = append(res, part...)
	}
	return newest(res, q.Limit), nil
}

// Close closes the underlying writer.
func (s *RotatingJSONLStore[T]) Close() error {
	return s.logger.Close()
}
