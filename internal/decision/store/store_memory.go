// Package store persists final decisions. The in-memory store backs tests and
// single-process deployments; the Postgres store is used when a database is
// configured.
package store

import (
	"context"
	"slices"
	"sync"

	"underwriter/internal/decision/models"
	"underwriter/internal/decision/ports"
	"underwriter/pkg/platform/sentinel"
)

var _ ports.DecisionStore = (*InMemoryStore)(nil)

type InMemoryStore struct {
	mu      sync.RWMutex
	records []*models.DecisionRecord
	latest  map[string]*models.DecisionRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{latest: make(map[string]*models.DecisionRecord)}
}

func (s *InMemoryStore) Save(_ context.Context, record *models.DecisionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *record
	cp.TriggeredRules = slices.Clone(record.TriggeredRules)
	s.records = append(s.records, &cp)
	if prev, ok := s.latest[cp.ApplicationID]; !ok || !cp.CreatedAt.Before(prev.CreatedAt) {
		s.latest[cp.ApplicationID] = &cp
	}
	return nil
}

// Get returns the latest decision for an application.
func (s *InMemoryStore) Get(_ context.Context, applicationID string) (*models.DecisionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.latest[applicationID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *record
	return &cp, nil
}

// ListRecent returns up to limit decisions, newest first.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]*models.DecisionRecord, error) {
	s.mu.RLock()
	all := slices.Clone(s.records)
	s.mu.RUnlock()

	slices.SortStableFunc(all, func(a, b *models.DecisionRecord) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit >= 0 && limit < len(all) {
		all = all[:limit]
	}
	out := make([]*models.DecisionRecord, len(all))
	for i, r := range all {
		cp := *r
		out[i] = &cp
	}
	return out, nil
}
