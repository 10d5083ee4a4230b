package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/brettboylen/profile-analytics/db"
)

const (
	historyKey        = "search_history"
	defaultMaxHistory = 10
)

// History keeps the most recently analyzed usernames, newest first
type History struct {
	store db.Store
	limit int
	mutex sync.Mutex
}

// NewHistory creates a history over store holding at most limit usernames
func NewHistory(store db.Store, limit int) *History {
	if limit <= 0 {
		limit = defaultMaxHistory
	}
	return &History{
		store: store,
		limit: limit,
	}
}

// Add moves username to the front of the history
func (h *History) Add(ctx context.Context, username string) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	entries, err := h.load(ctx)
	if err != nil {
		return err
	}

	updated := make([]string, 0, h.limit)
	updated = append(updated, username)
	for _, e := range entries {
		if e != username && len(updated) < h.limit {
			updated = append(updated, e)
		}
	}

	raw, err := json.Marshal(updated)
	if err != nil {
		return fmt.Errorf("history encode: %w", err)
	}
	if err := h.store.Set(ctx, historyKey, string(raw)); err != nil {
		return fmt.Errorf("history save: %w", err)
	}

	return nil
}

// List returns the history, newest first
func (h *History) List(ctx context.Context) ([]string, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	return h.load(ctx)
}

func (h *History) load(ctx context.Context) ([]string, error) {
	raw, found, err := h.store.Get(ctx, historyKey)
	if err != nil {
		return nil, fmt.Errorf("history load: %w", err)
	}

	entries := make([]string, 0)
	if !found {
		return entries, nil
	}

	// a corrupt history starts over
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return make([]string, 0), nil
	}

	return entries, nil
}
