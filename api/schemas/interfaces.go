package schemas

import (
	"context"
	"time"
)

// -- Browser Driver --

// BrowserDriver abstracts the browser-automation capability the engine
// consumes but does not implement. All operations are context-bounded; a
// snapshot is the only way page state crosses into the engine.
type BrowserDriver interface {
	// Navigate loads the given URL and waits for the page to settle.
	Navigate(ctx context.Context, url string) error
	// CaptureSnapshot returns an immutable capture of the current page.
	CaptureSnapshot(ctx context.Context) (*Snapshot, error)
	// Click activates the control addressed by the XPath selector.
	Click(ctx context.Context, selector string) error
	// Fill types text into the control with human-plausible cadence.
	Fill(ctx context.Context, selector, text string) error
	// SelectOption chooses an option of a select control by value.
	SelectOption(ctx context.Context, selector, value string) error
	// SetChecked sets a checkbox or radio control state by activating it
	// the way a user would (click), never by script mutation.
	SetChecked(ctx context.Context, selector string, checked bool) error
	// AttachFile activates the visible upload control and supplies path
	// through the browser's native file-selection affordance. It must never
	// force a hidden input into an interactable state.
	AttachFile(ctx context.Context, selector, path string) error
	// WaitStable blocks until the DOM stops mutating or the timeout
	// elapses.
	WaitStable(ctx context.Context, timeout time.Duration) error
}

// -- External Assistance --

// AssistRequest carries one screening question plus minimal applicant
// context to the external language-model collaborator.
type AssistRequest struct {
	QuestionText string      `json:"question_text"`
	Kind         ControlKind `json:"control_kind"`
	Options      []QuestionOption `json:"options,omitempty"`
	// ProfileContext is a compact free-text summary of the relevant
	// profile fields, never the full profile.
	ProfileContext string `json:"profile_context"`
}

// AssistAnswer is the collaborator's reply.
type AssistAnswer struct {
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// AssistClient is the optional, fallible external assistance collaborator.
// Its absence or failure must never abort a session, only reduce it to the
// unresolved-field path.
type AssistClient interface {
	Answer(ctx context.Context, req AssistRequest) (AssistAnswer, error)
}

// -- Checkpoint Store --

// CheckpointStore is the durable store for serialized sessions, keyed by
// session id. Only the form-state manager writes it.
type CheckpointStore interface {
	// Save serializes the session, stamping the save time.
	Save(ctx context.Context, sess *ApplicationSession) error
	// Load restores a session if its checkpoint is younger than the
	// staleness window; stale checkpoints are discarded and reported via
	// a sentinel error so the caller starts fresh.
	Load(ctx context.Context, sessionID string) (*ApplicationSession, error)
	// Clear removes the checkpoint after a terminal outcome.
	Clear(ctx context.Context, sessionID string) error
}

// -- Profile Store --

// ProfileStore is the read-only applicant profile lookup.
type ProfileStore interface {
	Lookup(ctx context.Context, applicantID string) (*ApplicantProfile, error)
}

// -- Result Sink --

// ResultSink receives the one terminal record per session.
type ResultSink interface {
	Emit(ctx context.Context, result *ApplicationResult) error
}

// -- Pacing --

// Pacer inserts human-plausible variable delays between interactions.
// Fixed or periodic pacing is a detectable automation signature, so
// implementations must never produce a constant interval.
type Pacer interface {
	// Pause blocks for a cognitively plausible think-time.
	Pause(ctx context.Context) error
	// KeyDelay returns the delay to insert before typing the i-th rune of
	// text.
	KeyDelay(text []rune, i int) time.Duration
}
