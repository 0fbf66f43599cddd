package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "underwriter/pkg/platform/audit"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := NewInMemoryStore()

	require.NoError(t, s.Append(ctx, audit.Event{ID: "1", Subject: "APP-1", Timestamp: base}))
	require.NoError(t, s.Append(ctx, audit.Event{ID: "2", Subject: "APP-2", Timestamp: base.Add(2 * time.Minute)}))
	require.NoError(t, s.Append(ctx, audit.Event{ID: "3", Subject: "APP-1", Timestamp: base.Add(time.Minute)}))

	t.Run("by subject in append order", func(t *testing.T) {
		events, err := s.ListBySubject(ctx, "APP-1")
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "1", events[0].ID)
		assert.Equal(t, "3", events[1].ID)
	})

	t.Run("recent newest first", func(t *testing.T) {
		events, err := s.ListRecent(ctx, 2)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "2", events[0].ID)
		assert.Equal(t, "3", events[1].ID)
	})

	t.Run("clear", func(t *testing.T) {
		s.Clear()
		events, err := s.ListRecent(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}
