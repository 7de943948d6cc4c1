package result

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/api/schemas"
)

func TestJSONLSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.jsonl")
	sink, err := NewJSONLSink(path, zap.NewNop())
	require.NoError(t, err)

	emit := func(id string, status schemas.SessionStatus) {
		require.NoError(t, sink.Emit(context.Background(), &schemas.ApplicationResult{
			SessionID:      id,
			TargetURL:      "https://jobs.example.com/apply",
			Status:         status,
			PagesCompleted: []int{0, 1},
			FinishedAt:     time.Now().UTC(),
		}))
	}

	emit("sess-1", schemas.StatusCompleted)
	emit("sess-2", schemas.StatusFailed)
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var records []schemas.ApplicationResult
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var r schemas.ApplicationResult
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		records = append(records, r)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, records, 2)
	assert.Equal(t, "sess-1", records[0].SessionID)
	assert.Equal(t, schemas.StatusCompleted, records[0].Status)
	assert.Equal(t, schemas.StatusFailed, records[1].Status)
}

func TestJSONLSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.jsonl")

	for i := 0; i < 2; i++ {
		sink, err := NewJSONLSink(path, zap.NewNop())
		require.NoError(t, err)
		require.NoError(t, sink.Emit(context.Background(), &schemas.ApplicationResult{SessionID: "s"}))
		require.NoError(t, sink.Close())
	}

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, len(splitLines(raw)))
}

func splitLines(b []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, c := range b {
		if c == '\n' {
			lines = append(lines, b[start:i])
			start = i + 1
		}
	}
	return lines
}
