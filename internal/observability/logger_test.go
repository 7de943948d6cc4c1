package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/config"
)

func TestInitialized(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	assert.False(t, Initialized(), "no logger before initialization")
	// Uninitialized access still yields a usable fallback.
	require.NotNil(t, GetLogger())
	assert.False(t, Initialized(), "the fallback does not count as initialized")

	InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "merlin-apply"})
	assert.True(t, Initialized())
	require.NotNil(t, GetLogger())
}
