package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/surakshanet/surakshanet/internal/models"
)

func sample(id string, score float64) *models.AnalysisResult {
	return &models.AnalysisResult{
		AnalysisID:     id,
		ThreatScore:    score,
		ThreatCategory: models.CategoryMedium,
		ThreatType:     "phishing",
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	require.NoError(t, s.SaveAnalysis(ctx, sample("a-1", 42)))

	got, err := s.GetAnalysis(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, 42.0, got.ThreatScore)

	_, err = s.GetAnalysis(ctx, "missing")
	assert.ErrorIs(t, err, ErrAnalysisNotFound)
}

func TestMemoryStoreOverwrite(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()

	require.NoError(t, s.SaveAnalysis(ctx, sample("a-1", 10)))
	require.NoError(t, s.SaveAnalysis(ctx, sample("a-1", 99)))

	got, err := s.GetAnalysis(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, 99.0, got.ThreatScore)

	recent, err := s.RecentAnalyses(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}

func TestMemoryStoreRecentNewestFirst(t *testing.T) {
	s := NewMemoryStore(0)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.SaveAnalysis(ctx, sample(fmt.Sprintf("a-%d", i), float64(i))))
	}

	recent, err := s.RecentAnalyses(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "a-4", recent[0].AnalysisID)
	assert.Equal(t, "a-2", recent[2].AnalysisID)
}

func TestMemoryStoreEviction(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.SaveAnalysis(ctx, sample(fmt.Sprintf("a-%d", i), float64(i))))
	}

	_, err := s.GetAnalysis(ctx, "a-0")
	assert.ErrorIs(t, err, ErrAnalysisNotFound, "oldest entry evicted")
	_, err = s.GetAnalysis(ctx, "a-2")
	assert.NoError(t, err)
}
