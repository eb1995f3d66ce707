package store

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
)

// Snapshot is the serialized state of the in-memory index backends. The
// bleve backend persists itself; the memory backends round-trip through
// this structure between CLI runs.
type Snapshot struct {
	Dimensions int
	Vectors    map[string][]float32
	Postings   map[string]map[string]int
}

// VectorDumper is implemented by vector indexes that can export their
// live vectors for snapshotting.
type VectorDumper interface {
	Dump() map[string][]float32
}

// LexicalDumper is implemented by lexical indexes that can export their
// per-chunk token frequencies for snapshotting.
type LexicalDumper interface {
	Dump() map[string]map[string]int
}

// SaveSnapshot gob-encodes the snapshot to path atomically (write to a
// temp file, then rename).
func SaveSnapshot(path string, snap *Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("create snapshot temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(snap); err != nil {
		tmp.Close()
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads a snapshot from path. A missing file returns
// (nil, nil).
func LoadSnapshot(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	var snap Snapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// Restore replays a snapshot into freshly created indexes via the normal
// upsert path, so it works for any backend combination.
func Restore(snap *Snapshot, vector VectorIndex, lexical LexicalIndex) error {
	if snap == nil {
		return nil
	}
	if snap.Dimensions != vector.Dimensions() {
		return fmt.Errorf("snapshot dimensions %d do not match index dimensions %d",
			snap.Dimensions, vector.Dimensions())
	}
	for id, vec := range snap.Vectors {
		if err := vector.Upsert(id, vec); err != nil {
			return fmt.Errorf("restore vector %s: %w", id, err)
		}
	}
	for id, tokens := range snap.Postings {
		if err := lexical.Upsert(id, tokens); err != nil {
			return fmt.Errorf("restore postings %s: %w", id, err)
		}
	}
	return nil
}

// Capture builds a snapshot from indexes that support dumping. Indexes
// that persist themselves (bleve) simply contribute nothing.
func Capture(vector VectorIndex, lexical LexicalIndex) *Snapshot {
	snap := &Snapshot{Dimensions: vector.Dimensions()}
	if d, ok := vector.(VectorDumper); ok {
		snap.Vectors = d.Dump()
	}
	if d, ok := lexical.(LexicalDumper); ok {
		snap.Postings = d.Dump()
	}
	return snap
}
