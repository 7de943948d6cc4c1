// Package profile provides the read-only applicant profile lookup. The
// engine never writes this store.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/api/schemas"
)

// FileStore reads applicant profiles from a JSON file holding either a
// single profile or an array of them.
type FileStore struct {
	profiles map[string]*schemas.ApplicantProfile
}

// NewFileStore loads and indexes the profile file.
func NewFileStore(path string) (*FileStore, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile file %q: %w", path, err)
	}

	var many []schemas.ApplicantProfile
	if err := json.Unmarshal(raw, &many); err != nil {
		var one schemas.ApplicantProfile
		if err := json.Unmarshal(raw, &one); err != nil {
			return nil, fmt.Errorf("failed to parse profile file %q: %w", path, err)
		}
		many = []schemas.ApplicantProfile{one}
	}

	s := &FileStore{profiles: map[string]*schemas.ApplicantProfile{}}
	for i := range many {
		p := many[i]
		if p.ApplicantID == "" {
			return nil, fmt.Errorf("profile file %q: entry %d has no applicant_id", path, i)
		}
		s.profiles[p.ApplicantID] = &p
	}
	return s, nil
}

// Lookup returns the profile for the applicant id.
func (s *FileStore) Lookup(ctx context.Context, applicantID string) (*schemas.ApplicantProfile, error) {
	p, ok := s.profiles[applicantID]
	if !ok {
		return nil, fmt.Errorf("no profile for applicant %q", applicantID)
	}
	return p, nil
}
