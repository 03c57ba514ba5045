package repository

import (
	"context"

	"github.com/m2tx/tutor_agent/internal/model"
)

// DefaultMaxHistoryEntries bounds a stored session. Older exchanges are
// dropped first so the router and agents always see the latest turns.
const DefaultMaxHistoryEntries = 50

// SessionRepository stores the tutoring history of a chat session.
type SessionRepository interface {
	// Save replaces the history of sessionID, keeping only the newest
	// entries when it exceeds the repository's cap.
	Save(ctx context.Context, sessionID string, history []model.HistoryEntry) error

	// Append atomically adds entries to the end of the history, creating
	// the session when needed.
	Append(ctx context.Context, sessionID string, entries ...model.HistoryEntry) error

	// Load returns nil, nil if the session does not exist.
	Load(ctx context.Context, sessionID string) ([]model.HistoryEntry, error)

	// Delete is a no-op if the session does not exist.
	Delete(ctx context.Context, sessionID string) error
}

// newest keeps the last limit entries of history.
func newest(history []model.HistoryEntry, limit int) []model.HistoryEntry {
	if limit > 0 && len(history) > limit {
		return history[len(history)-limit:]
	}
	return history
}

func capOrDefault(limit int) int {
	if limit <= 0 {
		return DefaultMaxHistoryEntries
	}
	return limit
}
