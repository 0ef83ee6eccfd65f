// Package txlog journals settled write submissions keyed by the caller's
// idempotency key. On-chain writes are not idempotent, so a transport-level
// retry of the same intent must replay the recorded outcome instead of
// submitting a second transaction.
package txlog

import (
	"context"
	"sync"
	"time"
)

// Record is the stored outcome of one write submission.
type Record struct {
	Kind        string    `json:"kind"`
	TxHash      string    `json:"txHash"`
	StatusCode  int       `json:"statusCode"`
	Response    []byte    `json:"response"`
	SubmittedAt time.Time `json:"submittedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Store abstracts journal persistence.
type Store interface {
	Get(ctx context.Context, key string) (*Record, error)
	Save(ctx context.Context, key string, record Record) error
}

// MemoryStore keeps the journal in process memory. Used in tests and in dev
// runs without a database.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]Record)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	if time.Now().After(rec.ExpiresAt) {
		return nil, nil
	}
	return &rec, nil
}

func (m *MemoryStore) Save(_ context.Context, key string, record Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = record
	return nil
}
