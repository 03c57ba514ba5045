package repository

import (
	"context"
	"slices"
	"sync"

	"github.com/m2tx/tutor_agent/internal/model"
)

// MemorySessionRepository keeps sessions in process memory. It is used when
// MongoDB is disabled.
type MemorySessionRepository struct {
	maxEntries int

	mu       sync.RWMutex
	sessions map[string][]model.HistoryEntry
}

// NewMemorySessionRepository keeps at most maxEntries per session; zero
// means DefaultMaxHistoryEntries.
func NewMemorySessionRepository(maxEntries int) *MemorySessionRepository {
	return &MemorySessionRepository{
		maxEntries: capOrDefault(maxEntries),
		sessions:   make(map[string][]model.HistoryEntry),
	}
}

func (r *MemorySessionRepository) Save(_ context.Context, sessionID string, history []model.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sessionID] = slices.Clone(newest(history, r.maxEntries))
	return nil
}

func (r *MemorySessionRepository) Append(_ context.Context, sessionID string, entries ...model.HistoryEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	history := append(r.sessions[sessionID], entries...)
	r.sessions[sessionID] = slices.Clone(newest(history, r.maxEntries))
	return nil
}

func (r *MemorySessionRepository) Load(_ context.Context, sessionID string) ([]model.HistoryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	history, ok := r.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	return slices.Clone(history), nil
}

func (r *MemorySessionRepository) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sessionID)
	return nil
}
