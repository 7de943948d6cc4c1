package schemas

import (
	"fmt"
	"sort"
	"time"
)

// -- Session Schemas --

// SessionStatus describes the lifecycle state of an application session.
type SessionStatus string

const (
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
	StatusFailed     SessionStatus = "failed"
	StatusAbandoned  SessionStatus = "abandoned"
)

// PageTransition is one entry in the session's navigation history.
type PageTransition struct {
	FromPage  string    `json:"from_page"`
	ToPage    string    `json:"to_page"`
	FromIndex int       `json:"from_index"`
	ToIndex   int       `json:"to_index"`
	At        time.Time `json:"at"`
}

// ApplicationSession is the unit of work for one form-completion attempt.
// It is exclusively owned by the engine for its lifetime and never shared
// across sessions; all retry counters live here rather than process-wide.
type ApplicationSession struct {
	SessionID        string           `json:"session_id"`
	ApplicantID      string           `json:"applicant_id"`
	TargetURL        string           `json:"target_url"`
	CurrentPageIndex int              `json:"current_page_index"`
	TotalPagesKnown  *int             `json:"total_pages_known,omitempty"`
	PagesCompleted   []int            `json:"pages_completed"`
	NavigationHistory []PageTransition `json:"navigation_history"`

	// AnsweredFields is the checkpoint payload: field selector -> submitted
	// value, captured after every answered question.
	AnsweredFields map[string]string `json:"answered_fields"`

	// ValidationErrors maps a field identifier to the last error seen on it.
	ValidationErrors map[string]string `json:"validation_errors"`

	// UnresolvedFields lists required fields the engine declined to guess.
	UnresolvedFields []string `json:"unresolved_fields"`

	// FailureCounters counts every classified failure for observability.
	// Nothing is silently dropped.
	FailureCounters map[FailureKind]int `json:"failure_counters"`

	DocumentAssetsUsed map[DocumentKind]AssetChoice `json:"document_assets_used"`

	Status    SessionStatus `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// NewApplicationSession initializes a session in the in_progress state.
func NewApplicationSession(sessionID, applicantID, targetURL string, now time.Time) *ApplicationSession {
	return &ApplicationSession{
		SessionID:          sessionID,
		ApplicantID:        applicantID,
		TargetURL:          targetURL,
		CurrentPageIndex:   0,
		PagesCompleted:     []int{},
		NavigationHistory:  []PageTransition{},
		AnsweredFields:     map[string]string{},
		ValidationErrors:   map[string]string{},
		UnresolvedFields:   []string{},
		FailureCounters:    map[FailureKind]int{},
		DocumentAssetsUsed: map[DocumentKind]AssetChoice{},
		Status:             StatusInProgress,
		StartedAt:          now,
		UpdatedAt:          now,
	}
}

// CompletePage records page idx as completed and moves the current index
// forward. A session can never skip a page it has not completed: idx must be
// at most one past the highest completed page.
func (s *ApplicationSession) CompletePage(idx int, now time.Time) error {
	if idx < 0 {
		return fmt.Errorf("page index must be non-negative, got %d", idx)
	}
	if max, ok := s.maxCompleted(); ok && idx > max+1 {
		return fmt.Errorf("cannot complete page %d: page %d has not been completed", idx, max+1)
	} else if !ok && idx > 0 {
		return fmt.Errorf("cannot complete page %d: no earlier page has been completed", idx)
	}
	for _, p := range s.PagesCompleted {
		if p == idx {
			return nil // already recorded; progress is monotonic
		}
	}
	s.PagesCompleted = append(s.PagesCompleted, idx)
	sort.Ints(s.PagesCompleted)
	s.CurrentPageIndex = s.PagesCompleted[len(s.PagesCompleted)-1] + 1
	s.UpdatedAt = now
	return nil
}

// RecordTransition appends one navigation step to the history.
func (s *ApplicationSession) RecordTransition(from, to PageIdentity, at time.Time) {
	s.NavigationHistory = append(s.NavigationHistory, PageTransition{
		FromPage:  from.Key,
		ToPage:    to.Key,
		FromIndex: s.CurrentPageIndex,
		ToIndex:   s.CurrentPageIndex + 1,
		At:        at,
	})
	s.UpdatedAt = at
}

// CountFailure increments the per-session counter for the given failure kind.
func (s *ApplicationSession) CountFailure(kind FailureKind) {
	if s.FailureCounters == nil {
		s.FailureCounters = map[FailureKind]int{}
	}
	s.FailureCounters[kind]++
}

// MarkUnresolved records a required field the engine refused to guess.
func (s *ApplicationSession) MarkUnresolved(fieldID string) {
	for _, f := range s.UnresolvedFields {
		if f == fieldID {
			return
		}
	}
	s.UnresolvedFields = append(s.UnresolvedFields, fieldID)
}

// Terminal reports whether the session has reached a final status.
func (s *ApplicationSession) Terminal() bool {
	return s.Status != StatusInProgress
}

func (s *ApplicationSession) maxCompleted() (int, bool) {
	if len(s.PagesCompleted) == 0 {
		return 0, false
	}
	return s.PagesCompleted[len(s.PagesCompleted)-1], true
}
