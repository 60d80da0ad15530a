package pipeline

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/immansha/renewcast/core/model"
)

const maxLine = 1 << 20

// Tail reads an append-only JSONL file incrementally. The cursor is a byte
// offset and only advances past complete lines, so a line being written by
// the producer is picked up on the next read.
type Tail struct {
	path   string
	offset int64
}

// NewTail returns a Tail positioned at the start of path.
func NewTail(path string) *Tail { return &Tail{path: path} }

// Offset returns the current cursor.
func (t *Tail) Offset() int64 { return t.offset }

// Path returns the followed file.
func (t *Tail) Path() string { return t.path }

// Commit moves the cursor to off, the end of the last consumed line.
func (t *Tail) Commit(off int64) {
	if off >= 0 {
		t.offset = off
	}
}

// Entry is one decoded line and the offset just past it.
type Entry struct {
	Row model.Row
	End int64
}

// ReadNew returns the rows appended since the previous call and moves the
// cursor past them. A missing file yields no rows. Malformed lines are
// skipped.
func (t *Tail) ReadNew() ([]model.Row, error) {
	entries, end, err := t.Pending()
	if err != nil {
		return nil, err
	}
	t.Commit(end)
	rows := make([]model.Row, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, e.Row)
	}
	return rows, nil
}

// Pending decodes the complete lines after the cursor without moving it. end
// is the offset past the last complete line, malformed ones included. If the
// file shrank it is assumed to have been recreated and the cursor restarts
// at 0.
func (t *Tail) Pending() (entries []Entry, end int64, err error) {
	f, err := os.Open(t.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, t.offset, nil
		}
		return nil, t.offset, fmt.Errorf("open %s: %w", t.path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, t.offset, err
	}
	if st.Size() < t.offset {
		t.offset = 0
	}
	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return nil, t.offset, err
	}

	end = t.offset
	r := bufio.NewReaderSize(f, 64*1024)
	for {
		line, rerr := r.ReadBytes('\n')
		if errors.Is(rerr, io.EOF) {
			// partial trailing line: leave it for the next read
			break
		}
		if rerr != nil {
			return entries, end, rerr
		}
		end += int64(len(line))
		if row, ok := decodeRow(line); ok {
			entries = append(entries, Entry{Row: row, End: end})
		}
	}
	return entries, end, nil
}

// ScanLatest reads the whole file and keeps the newest row per entity.
// Rows without an entity id are ignored.
func ScanLatest(path string) (map[string]model.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]model.Row{}, nil
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	latest := make(map[string]model.Row)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	for sc.Scan() {
		row, ok := decodeRow(sc.Bytes())
		if !ok {
			continue
		}
		if id := row.EntityID(); id != "" {
			latest[id] = row
		}
	}
	return latest, sc.Err()
}

func decodeRow(line []byte) (model.Row, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, false
	}
	var row model.Row
	if err := json.Unmarshal(line, &row); err != nil || row == nil {
		return nil, false
	}
	return row, true
}
