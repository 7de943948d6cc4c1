package state

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/api/schemas"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	newSession := func() *schemas.ApplicationSession {
		s := schemas.NewApplicationSession("sess-1", "applicant-1", "https://jobs.example.com/apply", start)
		s.AnsweredFields["email"] = "pat@example.com"
		require.NoError(t, s.CompletePage(0, start))
		return s
	}

	t.Run("round trip restores the session", func(t *testing.T) {
		store := NewMemoryStore(time.Hour)
		require.NoError(t, store.Save(ctx, newSession()))

		got, err := store.Load(ctx, "sess-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "pat@example.com", got.AnsweredFields["email"])
		assert.Equal(t, []int{0}, got.PagesCompleted)
	})

	t.Run("loaded session is a copy", func(t *testing.T) {
		store := NewMemoryStore(time.Hour)
		require.NoError(t, store.Save(ctx, newSession()))

		first, err := store.Load(ctx, "sess-1")
		require.NoError(t, err)
		first.AnsweredFields["email"] = "mutated"

		second, err := store.Load(ctx, "sess-1")
		require.NoError(t, err)
		assert.Equal(t, "pat@example.com", second.AnsweredFields["email"])
	})

	t.Run("missing checkpoint returns nil, nil", func(t *testing.T) {
		store := NewMemoryStore(time.Hour)
		got, err := store.Load(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("stale checkpoint is discarded with the sentinel", func(t *testing.T) {
		store := NewMemoryStore(time.Hour)
		now := start
		store.SetClock(func() time.Time { return now })
		require.NoError(t, store.Save(ctx, newSession()))

		now = start.Add(time.Hour + time.Minute)
		got, err := store.Load(ctx, "sess-1")
		assert.ErrorIs(t, err, ErrCheckpointStale)
		assert.Nil(t, got)

		// Discarded for good: the next load finds nothing.
		got, err = store.Load(ctx, "sess-1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("checkpoint just inside the window resumes", func(t *testing.T) {
		store := NewMemoryStore(time.Hour)
		now := start
		store.SetClock(func() time.Time { return now })
		require.NoError(t, store.Save(ctx, newSession()))

		now = start.Add(time.Hour - time.Second)
		got, err := store.Load(ctx, "sess-1")
		require.NoError(t, err)
		require.NotNil(t, got)
	})

	t.Run("clear removes the checkpoint", func(t *testing.T) {
		store := NewMemoryStore(time.Hour)
		require.NoError(t, store.Save(ctx, newSession()))
		require.NoError(t, store.Clear(ctx, "sess-1"))

		got, err := store.Load(ctx, "sess-1")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
