package profile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestNewFileStore(t *testing.T) {
	t.Run("single profile object", func(t *testing.T) {
		path := writeProfile(t, `{"applicant_id":"a1","full_name":"Pat Morgan","email":"pat@example.com"}`)
		s, err := NewFileStore(path)
		require.NoError(t, err)

		p, err := s.Lookup(context.Background(), "a1")
		require.NoError(t, err)
		assert.Equal(t, "Pat Morgan", p.FullName)
	})

	t.Run("array of profiles", func(t *testing.T) {
		path := writeProfile(t, `[{"applicant_id":"a1","email":"a@x.com"},{"applicant_id":"a2","email":"b@x.com"}]`)
		s, err := NewFileStore(path)
		require.NoError(t, err)

		p, err := s.Lookup(context.Background(), "a2")
		require.NoError(t, err)
		assert.Equal(t, "b@x.com", p.Email)
	})

	t.Run("unknown applicant", func(t *testing.T) {
		path := writeProfile(t, `{"applicant_id":"a1"}`)
		s, err := NewFileStore(path)
		require.NoError(t, err)

		_, err = s.Lookup(context.Background(), "ghost")
		assert.Error(t, err)
	})

	t.Run("missing applicant id is rejected", func(t *testing.T) {
		path := writeProfile(t, `[{"full_name":"No ID"}]`)
		_, err := NewFileStore(path)
		assert.Error(t, err)
	})

	t.Run("malformed file is rejected", func(t *testing.T) {
		path := writeProfile(t, `{not json`)
		_, err := NewFileStore(path)
		assert.Error(t, err)
	})
}
