// Package result holds the dashboard's single current analysis result.
package result

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/insight-dashboard/insight/internal/models"
)

// ErrEmpty is returned when no analysis has completed yet.
var ErrEmpty = errors.New("no analysis result yet")

// Meta describes where the current result came from.
type Meta struct {
	FileID     string    `json:"fileId"`
	FileName   string    `json:"fileName"`
	JobID      string    `json:"jobId"`
	ReceivedAt time.Time `json:"receivedAt"`
	Generation uint64    `json:"generation"`
}

// Snapshot is an immutable view of the current result.
type Snapshot struct {
	Result *models.AnalysisResult
	Raw    json.RawMessage
	Meta   Meta
}

// Store keeps exactly one result. Replace swaps it wholesale so readers
// always see a complete snapshot.
type Store struct {
	mu         sync.RWMutex
	current    *Snapshot
	generation uint64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Current returns the current snapshot or ErrEmpty.
func (s *Store) Current() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.current == nil {
		return nil, ErrEmpty
	}
	return s.current, nil
}

// Replace installs a new result and returns its generation number.
func (s *Store) Replace(res *models.AnalysisResult, raw json.RawMessage, meta Meta) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	meta.Generation = s.generation
	if meta.ReceivedAt.IsZero() {
		meta.ReceivedAt = time.Now()
	}
	s.current = &Snapshot{Result: res, Raw: raw, Meta: meta}
	return s.generation
}

// Clear drops the current result. Generation numbers keep increasing.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}
