package memory

import (
	"context"
	"fmt"
	"testing"
	"time"

	"netqos/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleRepositoryCursor(t *testing.T) {
	repo := NewMemorySampleRepository()
	ctx := context.Background()
	base := time.Now()

	require.NoError(t, repo.Append(ctx,
		domain.TrafficSample{Timestamp: base, SourceEndpoint: "a"},
		domain.TrafficSample{Timestamp: base.Add(time.Second), SourceEndpoint: "b"},
	))

	samples, cursor, err := repo.SamplesSince(ctx, base.Add(-time.Second))
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, base.Add(time.Second), cursor)

	// The cursor excludes already-seen samples.
	samples, cursor, err = repo.SamplesSince(ctx, cursor)
	require.NoError(t, err)
	assert.Empty(t, samples)
	assert.Equal(t, base.Add(time.Second), cursor)

	require.NoError(t, repo.Append(ctx,
		domain.TrafficSample{Timestamp: base.Add(2 * time.Second), SourceEndpoint: "c"},
	))
	samples, _, err = repo.SamplesSince(ctx, cursor)
	require.NoError(t, err)
	require.Len(t, samples, 1)
	assert.Equal(t, "c", samples[0].SourceEndpoint)
}

func TestRuleRepositoryOrdering(t *testing.T) {
	repo := NewMemoryRuleRepository()
	ctx := context.Background()

	for _, r := range domain.DefaultRules() {
		require.NoError(t, repo.Upsert(ctx, r))
	}

	rules, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 4)

	// Priority descending, canonical class order within a priority.
	assert.Equal(t, domain.ClassVideo, rules[0].TrafficClass)
	assert.Equal(t, domain.ClassVoice, rules[1].TrafficClass)
	assert.Equal(t, domain.ClassFile, rules[2].TrafficClass)
	assert.Equal(t, domain.ClassBackground, rules[3].TrafficClass)
}

func TestRuleRepositoryGetMissing(t *testing.T) {
	repo := NewMemoryRuleRepository()

	_, err := repo.Get(context.Background(), domain.ClassVideo)
	assert.ErrorIs(t, err, domain.ErrRuleNotFound)
}

func TestAlertRepositoryRecentNewestFirst(t *testing.T) {
	repo := NewMemoryAlertRepository()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, domain.Alert{ID: "a-1", Title: "first"}))
	require.NoError(t, repo.Save(ctx, domain.Alert{ID: "a-2", Title: "second"}))
	require.NoError(t, repo.Save(ctx, domain.Alert{ID: "a-3", Title: "third"}))

	alerts, err := repo.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, domain.AlertID("a-3"), alerts[0].ID)
	assert.Equal(t, domain.AlertID("a-2"), alerts[1].ID)
}

func TestAlertRepositoryResolve(t *testing.T) {
	repo := NewMemoryAlertRepository()
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, domain.Alert{ID: "a-1"}))
	require.NoError(t, repo.Resolve(ctx, "a-1"))

	alerts, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.True(t, alerts[0].Resolved)

	assert.ErrorIs(t, repo.Resolve(ctx, "nope"), domain.ErrAlertNotFound)
}

func TestAlertRepositoryBounded(t *testing.T) {
	repo := NewMemoryAlertRepository()
	ctx := context.Background()

	for i := 0; i < maxStoredAlerts+10; i++ {
		require.NoError(t, repo.Save(ctx, domain.Alert{ID: domain.AlertID(fmt.Sprintf("a-%d", i))}))
	}

	alerts, err := repo.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, alerts, maxStoredAlerts)
}
