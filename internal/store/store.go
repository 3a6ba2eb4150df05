package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/glassbox-ml/lime/internal/explain"
)

// Record is one row of the explanation output table, the sole interface
// consumed by downstream visualization and reporting.
type Record struct {
	InstanceID      string  `json:"instance_id"`
	Label           string  `json:"label"`
	Feature         string  `json:"feature_description"`
	Weight          float64 `json:"feature_weight"`
	ModelFit        float64 `json:"model_fit"`
	ModelPrediction float64 `json:"model_prediction"`
}

// Flatten converts explain results into output records, skipping failed
// instances (their errors travel separately).
func Flatten(results []explain.Result) []Record {
	var out []Record
	for _, r := range results {
		for _, exp := range r.Explanations {
			for _, fw := range exp.Features {
				out = append(out, Record{
					InstanceID:      exp.InstanceID,
					Label:           exp.Label,
					Feature:         fw.Description,
					Weight:          fw.Weight,
					ModelFit:        exp.ModelFit,
					ModelPrediction: exp.ModelPrediction,
				})
			}
		}
	}
	return out
}

// Store persists explanation batches. First write wins for a batch ID.
type Store interface {
	// Put stores a batch of records with TTL.
	Put(ctx context.Context, batchID string, recs []Record, ttl time.Duration) error

	// Get retrieves a stored batch. Returns nil if not found or expired.
	Get(ctx context.Context, batchID string) ([]Record, error)

	// Close releases resources.
	Close() error
}

// MemoryStore is an in-memory store with optional file snapshot.
type MemoryStore struct {
	mu       sync.RWMutex
	batches  map[string]*entry
	snapshot string // optional file path for persistence
}

type entry struct {
	Records   []Record  `json:"records"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewMemoryStore creates an in-memory store, loading the snapshot if present.
func NewMemoryStore(snapshotPath string) *MemoryStore {
	ms := &MemoryStore{
		batches:  make(map[string]*entry),
		snapshot: snapshotPath,
	}
	if snapshotPath != "" {
		ms.loadSnapshot()
	}
	return ms
}

func (m *MemoryStore) Put(ctx context.Context, batchID string, recs []Record, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.batches[batchID]; ok && time.Now().Before(e.ExpiresAt) {
		return nil // first write wins
	}
	m.batches[batchID] = &entry{
		Records:   append([]Record(nil), recs...),
		ExpiresAt: time.Now().Add(ttl),
	}

	if m.snapshot != "" {
		return m.saveSnapshot()
	}
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, batchID string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.batches[batchID]
	if !ok {
		return nil, nil
	}
	if time.Now().After(e.ExpiresAt) {
		return nil, nil // expired
	}
	return e.Records, nil
}

func (m *MemoryStore) Close() error {
	if m.snapshot != "" {
		m.mu.RLock()
		defer m.mu.RUnlock()
		return m.saveSnapshot()
	}
	return nil
}

// saveSnapshot writes the batches to disk. Caller must hold at least a read
// lock.
func (m *MemoryStore) saveSnapshot() error {
	data, err := json.Marshal(m.batches)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	tmp := m.snapshot + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return os.Rename(tmp, m.snapshot)
}

func (m *MemoryStore) loadSnapshot() {
	data, err := os.ReadFile(m.snapshot)
	if err != nil {
		return // no snapshot yet
	}
	var batches map[string]*entry
	if err := json.Unmarshal(data, &batches); err != nil {
		fmt.Printf("Warning: snapshot %s is corrupt, starting empty: %v\n", m.snapshot, err)
		return
	}
	m.batches = batches
}
