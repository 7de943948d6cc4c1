// Package result emits the one terminal record per session. Anything built
// on top of the record (persistence, analytics, notification) is out of
// scope for the engine.
package result

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/api/schemas"
)

// JSONLSink appends one JSON line per terminal session record.
type JSONLSink struct {
	mu  sync.Mutex
	w   io.Writer
	c   io.Closer
	log *zap.Logger
}

// NewJSONLSink opens the sink. path "-" writes to stdout.
func NewJSONLSink(path string, logger *zap.Logger) (*JSONLSink, error) {
	sink := &JSONLSink{log: logger.Named("result")}
	if path == "-" {
		sink.w = os.Stdout
		return sink, nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open result sink %q: %w", path, err)
	}
	sink.w = f
	sink.c = f
	return sink, nil
}

// Emit writes the terminal record.
func (s *JSONLSink) Emit(ctx context.Context, r *schemas.ApplicationResult) error {
	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal application result: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to write application result: %w", err)
	}
	s.log.Info("Emitted application result",
		zap.String("session_id", r.SessionID),
		zap.String("status", string(r.Status)))
	return nil
}

// Close releases the underlying file, if any.
func (s *JSONLSink) Close() error {
	if s.c == nil {
		return nil
	}
	return s.c.Close()
}
