// Package store offers optional persistence for completed analyses. The
// pipeline only requires the AnalysisStore hook; durability is up to the
// host.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/surakshanet/surakshanet/internal/models"
)

// ErrAnalysisNotFound is returned when no record exists for the given id.
var ErrAnalysisNotFound = errors.New("analysis not found")

// AnalysisStore persists completed analysis results.
type AnalysisStore interface {
	SaveAnalysis(ctx context.Context, result *models.AnalysisResult) error
	GetAnalysis(ctx context.Context, analysisID string) (*models.AnalysisResult, error)
	RecentAnalyses(ctx context.Context, limit int) ([]models.AnalysisResult, error)
}

// MemoryStore keeps results in process memory. It is the default store and
// the reference for the AnalysisStore contract.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[string]models.AnalysisResult
	ordered []string
	maxKeep int
}

// NewMemoryStore creates a store retaining at most maxKeep results; values
// at or below zero keep everything.
func NewMemoryStore(maxKeep int) *MemoryStore {
	return &MemoryStore{
		byID:    make(map[string]models.AnalysisResult),
		maxKeep: maxKeep,
	}
}

// SaveAnalysis implements AnalysisStore.
func (s *MemoryStore) SaveAnalysis(_ context.Context, result *models.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byID[result.AnalysisID]; !exists {
		s.ordered = append(s.ordered, result.AnalysisID)
		if s.maxKeep > 0 && len(s.ordered) > s.maxKeep {
			evicted := s.ordered[0]
			s.ordered = s.ordered[1:]
			delete(s.byID, evicted)
		}
	}
	s.byID[result.AnalysisID] = *result
	return nil
}

// GetAnalysis implements AnalysisStore.
func (s *MemoryStore) GetAnalysis(_ context.Context, analysisID string) (*models.AnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result, ok := s.byID[analysisID]
	if !ok {
		return nil, ErrAnalysisNotFound
	}
	return &result, nil
}

// RecentAnalyses implements AnalysisStore, newest first.
func (s *MemoryStore) RecentAnalyses(_ context.Context, limit int) ([]models.AnalysisResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := append([]string(nil), s.ordered...)
	// ordered is insertion order; walk backwards for newest first.
	var out []models.AnalysisResult
	for i := len(ids) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, s.byID[ids[i]])
	}
	return out, nil
}
