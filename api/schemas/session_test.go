package schemas

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompletePage(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	t.Run("progress is strictly page by page", func(t *testing.T) {
		s := NewApplicationSession("s1", "a1", "https://jobs.example.com/apply", now)

		require.NoError(t, s.CompletePage(0, now))
		require.NoError(t, s.CompletePage(1, now))
		assert.Equal(t, []int{0, 1}, s.PagesCompleted)
		assert.Equal(t, 2, s.CurrentPageIndex)
	})

	t.Run("skipping a page is rejected", func(t *testing.T) {
		s := NewApplicationSession("s1", "a1", "https://jobs.example.com/apply", now)

		err := s.CompletePage(1, now)
		require.Error(t, err, "page 1 cannot complete before page 0")

		require.NoError(t, s.CompletePage(0, now))
		err = s.CompletePage(3, now)
		require.Error(t, err)
		assert.Equal(t, []int{0}, s.PagesCompleted)
	})

	t.Run("re-completing a page is idempotent", func(t *testing.T) {
		s := NewApplicationSession("s1", "a1", "https://jobs.example.com/apply", now)

		require.NoError(t, s.CompletePage(0, now))
		require.NoError(t, s.CompletePage(0, now.Add(time.Minute)))
		assert.Equal(t, []int{0}, s.PagesCompleted)
		assert.Equal(t, 1, s.CurrentPageIndex)
	})

	t.Run("negative index is rejected", func(t *testing.T) {
		s := NewApplicationSession("s1", "a1", "https://jobs.example.com/apply", now)
		assert.Error(t, s.CompletePage(-1, now))
	})
}

func TestSessionBookkeeping(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	s := NewApplicationSession("s1", "a1", "https://jobs.example.com/apply", now)

	t.Run("failure counters accumulate per kind", func(t *testing.T) {
		s.CountFailure(FailureTransient)
		s.CountFailure(FailureTransient)
		s.CountFailure(FailureValidation)
		assert.Equal(t, 2, s.FailureCounters[FailureTransient])
		assert.Equal(t, 1, s.FailureCounters[FailureValidation])
	})

	t.Run("unresolved fields are de-duplicated", func(t *testing.T) {
		s.MarkUnresolved("salary_expectation")
		s.MarkUnresolved("salary_expectation")
		assert.Equal(t, []string{"salary_expectation"}, s.UnresolvedFields)
	})

	t.Run("transitions land in history", func(t *testing.T) {
		s.RecordTransition(PageIdentity{Key: "personal"}, PageIdentity{Key: "screening"}, now)
		require.Len(t, s.NavigationHistory, 1)
		assert.Equal(t, "personal", s.NavigationHistory[0].FromPage)
		assert.Equal(t, "screening", s.NavigationHistory[0].ToPage)
	})

	t.Run("terminal tracks status", func(t *testing.T) {
		assert.False(t, s.Terminal())
		s.Status = StatusCompleted
		assert.True(t, s.Terminal())
	})
}
