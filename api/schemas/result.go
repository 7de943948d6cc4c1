package schemas

import (
	"fmt"
	"time"
)

// -- Failure Taxonomy --

// FailureKind classifies a step failure. Transient and validation failures
// are recovered locally; structural and confidence failures always surface
// in the terminal result with enough detail to address the root cause.
type FailureKind string

const (
	// FailureTransient covers network or timeout errors on navigation and
	// DOM observation. Retried with backoff up to a cap, then escalated to
	// structural.
	FailureTransient FailureKind = "transient"
	// FailureValidation covers fields rejected after a submit attempt.
	FailureValidation FailureKind = "validation"
	// FailureStructural covers an expected control or page-identity signal
	// not being found: the portal changed, or the selector configuration is
	// stale. Never retried.
	FailureStructural FailureKind = "structural"
	// FailureConfidence covers answers that cannot be produced above
	// threshold with assistance unavailable.
	FailureConfidence FailureKind = "confidence"
	// FailureUpload covers rejected or timed-out file attachments.
	FailureUpload FailureKind = "upload"
)

// StepError wraps an error with its taxonomy classification and the page
// and field it occurred on.
type StepError struct {
	Kind    FailureKind
	Page    string
	FieldID string
	// MissingSignal names the absent selector or marker for structural
	// failures, recorded for operator review.
	MissingSignal string
	Err           error
}

func (e *StepError) Error() string {
	if e.FieldID != "" {
		return fmt.Sprintf("%s failure on page %q field %q: %v", e.Kind, e.Page, e.FieldID, e.Err)
	}
	return fmt.Sprintf("%s failure on page %q: %v", e.Kind, e.Page, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// NewStepError builds a classified step error.
func NewStepError(kind FailureKind, page string, err error) *StepError {
	return &StepError{Kind: kind, Page: page, Err: err}
}

// -- Terminal Result --

// StructuralFailure is one missing-signal record surfaced for review.
type StructuralFailure struct {
	Page          string `json:"page"`
	MissingSignal string `json:"missing_signal"`
}

// ApplicationResult is the single record emitted per session on terminal
// status. Persistence, analytics and notification on top of it are out of
// scope for the engine.
type ApplicationResult struct {
	SessionID          string                       `json:"session_id"`
	TargetURL          string                       `json:"target_url"`
	Status             SessionStatus                `json:"status"`
	PagesCompleted     []int                        `json:"pages_completed"`
	UnresolvedFields   []string                     `json:"unresolved_fields"`
	DocumentAssetsUsed map[DocumentKind]AssetChoice `json:"document_assets_used"`
	FailureCounters    map[FailureKind]int          `json:"failure_counters"`
	StructuralFailures []StructuralFailure          `json:"structural_failures,omitempty"`
	Duration           time.Duration                `json:"duration"`
	FinishedAt         time.Time                    `json:"finished_at"`
}
