package forecast

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SnapshotVersion is the schema version written by WriteSnapshot.
const SnapshotVersion = 1

// ErrSnapshotVersion is returned for a snapshot written with another schema.
var ErrSnapshotVersion = errors.New("snapshot version mismatch")

// Snapshot is the persisted form of every site's model state.
type Snapshot struct {
	Version  int                       `json:"version"`
	SavedAt  time.Time                 `json:"saved_at"`
	Entities map[string]EntitySnapshot `json:"entities"`

	// Cursors maps an input stream path to the byte offset consumed when
	// the snapshot was taken.
	Cursors map[string]int64 `json:"cursors,omitempty"`
}

// EntitySnapshot is the persisted state of one site.
type EntitySnapshot struct {
	NTrained   int                        `json:"n_trained"`
	MAESum     float64                    `json:"mae_sum"`
	MAECount   int                        `json:"mae_count"`
	MAEHistory []float64                  `json:"mae_history"`
	Deviations []float64                  `json:"deviation_history"`
	Regressors map[string]json.RawMessage `json:"regressors,omitempty"`
}

// ReadSnapshot loads and validates the snapshot at path.
func ReadSnapshot(path string) (Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return Snapshot{}, fmt.Errorf("%w: got %d want %d", ErrSnapshotVersion, snap.Version, SnapshotVersion)
	}
	return snap, nil
}

// WriteSnapshot writes snap to a temporary file next to path and renames it
// into place.
func WriteSnapshot(path string, snap Snapshot) error {
	snap.Version = SnapshotVersion
	b, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
