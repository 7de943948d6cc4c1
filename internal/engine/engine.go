// Package engine runs the application session pipeline: identify the page,
// answer its questions, attach requested documents, survive validation
// rejections, advance, checkpoint. The engine owns the session for its whole
// lifetime and is the only writer of its state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/api/schemas"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/attachment"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/config"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/domutil"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/navigator"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/screening"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/selectors"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/state"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/synthesis"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/validation"
)

// Deps bundles the collaborators the engine orchestrates. Everything the
// engine touches outside its own state arrives through one of these.
type Deps struct {
	Driver      schemas.BrowserDriver
	Registry    *selectors.Registry
	Detector    *screening.Detector
	Validator   *validation.Handler
	Synthesizer *synthesis.Synthesizer
	Attachments *attachment.Handler
	Checkpoints schemas.CheckpointStore
	Profiles    schemas.ProfileStore
	Sink        schemas.ResultSink
	Logger      *zap.Logger
}

// Engine completes one multi-page application per Run call.
type Engine struct {
	cfg  config.EngineConfig
	docs config.DocumentsConfig
	deps Deps
	log  *zap.Logger

	now   func() time.Time
	newID func() string
}

// New assembles the engine.
func New(cfg config.EngineConfig, docs config.DocumentsConfig, deps Deps) *Engine {
	return &Engine{
		cfg:   cfg,
		docs:  docs,
		deps:  deps,
		log:   deps.Logger.Named("engine"),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Request identifies one application to complete.
type Request struct {
	TargetURL   string
	ApplicantID string
	// ResumeSessionID, when set, resumes from that session's checkpoint if a
	// non-stale one exists. A stale or missing checkpoint starts fresh.
	ResumeSessionID string
}

// run is the mutable state of one Run call.
type run struct {
	sess       *schemas.ApplicationSession
	profile    *schemas.ApplicantProfile
	portal     *selectors.Portal
	nav        *navigator.Navigator
	assets     map[schemas.DocumentKind]*schemas.DocumentAsset
	structural []schemas.StructuralFailure
}

// Run executes the session to a terminal status and emits exactly one
// result record. The returned error reports infrastructure problems
// (profile lookup, sink failures); an application that fails on the portal
// is a failed result, not an error.
func (e *Engine) Run(ctx context.Context, req Request) (*schemas.ApplicationResult, error) {
	sess, err := e.openSession(ctx, req)
	if err != nil {
		return nil, err
	}

	r := &run{sess: sess}
	r.profile, err = e.deps.Profiles.Lookup(ctx, req.ApplicantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load applicant profile: %w", err)
	}

	host, err := hostOf(req.TargetURL)
	if err != nil {
		return nil, err
	}
	portal, ok := e.deps.Registry.ForHost(host)
	if !ok {
		r.fail(schemas.FailureStructural)
		r.structural = append(r.structural, schemas.StructuralFailure{
			Page:          "",
			MissingSignal: "portal mapping for host " + host,
		})
		e.log.Error("No selector mapping for portal host", zap.String("host", host))
		return e.finish(ctx, r)
	}
	r.portal = portal
	r.nav = navigator.New(portal, e.deps.Driver, e.cfg.NavigationTimeout, e.log)
	r.assets = e.buildAssets()
	if n := len(portal.Pages); n > 0 {
		r.sess.TotalPagesKnown = &n
	}

	e.log.Info("Session started",
		zap.String("session_id", sess.SessionID),
		zap.String("portal", portal.Name),
		zap.String("url", req.TargetURL),
		zap.Int("resume_page", sess.CurrentPageIndex))

	if err := e.drive(ctx, r); err != nil {
		e.classifyTerminal(r, err)
	}
	return e.finish(ctx, r)
}

// drive runs the page loop to completion or the first unrecoverable error.
func (e *Engine) drive(ctx context.Context, r *run) error {
	var snap *schemas.Snapshot
	err := e.retryTransient(ctx, r.sess, "", func() error {
		if err := e.deps.Driver.Navigate(ctx, r.sess.TargetURL); err != nil {
			return schemas.NewStepError(schemas.FailureTransient, "",
				fmt.Errorf("failed to open target url: %w", err))
		}
		var err error
		snap, err = e.deps.Driver.CaptureSnapshot(ctx)
		if err != nil {
			return schemas.NewStepError(schemas.FailureTransient, "", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for pages := 0; ; pages++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if pages >= e.cfg.MaxPages {
			r.structural = append(r.structural, schemas.StructuralFailure{
				Page:          fmt.Sprintf("page-%d", r.sess.CurrentPageIndex),
				MissingSignal: "terminal page within page budget",
			})
			return schemas.NewStepError(schemas.FailureStructural, "",
				fmt.Errorf("no terminal page after %d pages", pages))
		}

		id := r.nav.DetectCurrentPage(snap)
		if id.Unresolved() {
			r.structural = append(r.structural, schemas.StructuralFailure{
				Page:          snap.URL,
				MissingSignal: "page identity (url pattern + marker)",
			})
			return schemas.NewStepError(schemas.FailureStructural, snap.URL,
				fmt.Errorf("page could not be identified against portal %s@%s", r.portal.Name, r.portal.Version))
		}

		if r.nav.IsFinalPage(id) {
			// Completion is only ever declared here, on an identified
			// confirmation page.
			r.sess.Status = schemas.StatusCompleted
			r.sess.UpdatedAt = e.now()
			e.log.Info("Confirmation page reached",
				zap.String("page", id.Key),
				zap.Ints("pages_completed", r.sess.PagesCompleted))
			return nil
		}

		if err := e.answerPage(ctx, r, snap, id); err != nil {
			return err
		}

		// Interactions mutated the live page; decisions need a fresh capture.
		snap, err = e.capture(ctx, r.sess, id.Key)
		if err != nil {
			return err
		}

		next, to, err := e.advanceWithRecovery(ctx, r, snap, id)
		if err != nil {
			return err
		}

		if err := r.sess.CompletePage(r.sess.CurrentPageIndex, e.now()); err != nil {
			return schemas.NewStepError(schemas.FailureStructural, id.Key, err)
		}
		e.checkpoint(ctx, r.sess)
		e.log.Info("Page completed",
			zap.String("page", id.Key),
			zap.String("next", to.Key),
			zap.Int("page_index", r.sess.CurrentPageIndex-1))
		snap = next
	}
}

// -- Question answering --

// answerPage detects and answers every unanswered question on the page in
// document order, checkpointing after each one. Required questions that end
// up unresolved fail the session; optional ones are recorded and skipped.
func (e *Engine) answerPage(ctx context.Context, r *run, snap *schemas.Snapshot, id schemas.PageIdentity) error {
	questions := e.deps.Detector.DetectQuestions(snap)
	var requiredUnresolved []string

	for _, q := range questions {
		if _, done := r.sess.AnsweredFields[q.QuestionID]; done {
			continue // answered before checkpoint resume
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if q.Kind == schemas.ControlFile {
			if err := e.attachDocument(ctx, r, id, q); err != nil {
				return err
			}
			e.checkpoint(ctx, r.sess)
			continue
		}

		cand := e.deps.Synthesizer.Synthesize(ctx, q, r.profile)
		if cand.Unresolved {
			r.sess.CountFailure(schemas.FailureConfidence)
			r.sess.MarkUnresolved(q.QuestionID)
			if q.Required {
				requiredUnresolved = append(requiredUnresolved, q.QuestionID)
			}
			e.log.Warn("Question left unresolved",
				zap.String("question", q.QuestionID),
				zap.String("label", q.RawLabel),
				zap.Bool("required", q.Required),
				zap.Float64("confidence", cand.Confidence))
			continue
		}

		if err := e.applyAnswer(ctx, q, cand.Value); err != nil {
			return err
		}
		r.sess.AnsweredFields[q.QuestionID] = cand.Value.Flat()
		r.sess.UpdatedAt = e.now()
		e.checkpoint(ctx, r.sess)
		e.log.Debug("Question answered",
			zap.String("question", q.QuestionID),
			zap.String("intent", string(cand.Intent)),
			zap.String("source", string(cand.Source)),
			zap.Float64("confidence", cand.Confidence))
	}

	if len(requiredUnresolved) > 0 {
		step := schemas.NewStepError(schemas.FailureConfidence, id.Key,
			fmt.Errorf("%d required question(s) unresolved without assistance", len(requiredUnresolved)))
		step.FieldID = requiredUnresolved[0]
		return step
	}
	return nil
}

// applyAnswer performs the control-kind-appropriate interaction.
func (e *Engine) applyAnswer(ctx context.Context, q schemas.ScreeningQuestion, val schemas.AnswerValue) error {
	var err error
	switch q.Kind {
	case schemas.ControlText, schemas.ControlTextArea, schemas.ControlRange:
		err = e.deps.Driver.Fill(ctx, q.Selector, val.Text)
	case schemas.ControlSelect:
		err = e.deps.Driver.SelectOption(ctx, q.Selector, val.Option)
	case schemas.ControlRadioGroup:
		sel, selErr := radioOptionSelector(q, val.Option)
		if selErr != nil {
			return schemas.NewStepError(schemas.FailureStructural, "", selErr)
		}
		err = e.deps.Driver.SetChecked(ctx, sel, true)
	case schemas.ControlCheckbox:
		err = e.deps.Driver.SetChecked(ctx, q.Selector, val.Checked)
	default:
		return schemas.NewStepError(schemas.FailureStructural, "",
			fmt.Errorf("no interaction for control kind %q", q.Kind))
	}
	if err != nil {
		step := schemas.NewStepError(schemas.FailureTransient, "",
			fmt.Errorf("failed to apply answer: %w", err))
		step.FieldID = q.QuestionID
		return step
	}
	return nil
}

// radioOptionSelector targets one option of a radio group by group name and
// option value. Groups detected without a name cannot be addressed per
// option and are reported as structural.
func radioOptionSelector(q schemas.ScreeningQuestion, option string) (string, error) {
	if q.GroupName == "" {
		return "", fmt.Errorf("radio group %q has no name attribute to target options by", q.QuestionID)
	}
	return fmt.Sprintf(`//input[@type='radio'][@name=%s][@value=%s]`,
		domutil.XPathLiteral(q.GroupName), domutil.XPathLiteral(option)), nil
}

// -- Documents --

// attachDocument satisfies one file-request question. Upload failures on a
// required control fail the session; optional uploads degrade to an
// unresolved field.
func (e *Engine) attachDocument(ctx context.Context, r *run, id schemas.PageIdentity, q schemas.ScreeningQuestion) error {
	kind := documentKindFor(q)
	asset, ok := r.assets[kind]
	if !ok {
		r.sess.CountFailure(schemas.FailureUpload)
		if q.Required {
			step := schemas.NewStepError(schemas.FailureUpload, id.Key,
				fmt.Errorf("no %s document configured", kind))
			step.FieldID = q.QuestionID
			return step
		}
		r.sess.MarkUnresolved(q.QuestionID)
		return nil
	}

	selector := q.Selector
	if s := r.portal.UploadControls[string(kind)]; s != "" {
		selector = s
	}

	res, err := e.deps.Attachments.Attach(ctx, selector, asset)
	if err != nil {
		r.sess.CountFailure(schemas.FailureUpload)
		if q.Required {
			step := schemas.NewStepError(schemas.FailureUpload, id.Key, err)
			step.FieldID = q.QuestionID
			return step
		}
		r.sess.MarkUnresolved(q.QuestionID)
		e.log.Warn("Optional upload failed",
			zap.String("question", q.QuestionID),
			zap.Error(err))
		return nil
	}

	r.sess.DocumentAssetsUsed[kind] = res.Used
	r.sess.AnsweredFields[q.QuestionID] = res.Path
	r.sess.UpdatedAt = e.now()
	return nil
}

// documentKindFor infers which document a file control requests from its
// label and identifier. Anything not recognizably a cover letter is treated
// as the resume.
func documentKindFor(q schemas.ScreeningQuestion) schemas.DocumentKind {
	hint := strings.ToLower(q.RawLabel + " " + q.QuestionID)
	if strings.Contains(hint, "cover") || strings.Contains(hint, "letter") {
		return schemas.DocumentCoverLetter
	}
	return schemas.DocumentResume
}

func (e *Engine) buildAssets() map[schemas.DocumentKind]*schemas.DocumentAsset {
	assets := map[schemas.DocumentKind]*schemas.DocumentAsset{}
	if e.docs.ResumePath != "" || e.docs.DefaultResumePath != "" {
		assets[schemas.DocumentResume] = &schemas.DocumentAsset{
			Kind:                schemas.DocumentResume,
			CustomPath:          e.docs.ResumePath,
			DefaultFallbackPath: e.docs.DefaultResumePath,
		}
	}
	if e.docs.CoverLetterPath != "" || e.docs.DefaultCoverLetterPath != "" {
		assets[schemas.DocumentCoverLetter] = &schemas.DocumentAsset{
			Kind:                schemas.DocumentCoverLetter,
			CustomPath:          e.docs.CoverLetterPath,
			DefaultFallbackPath: e.docs.DefaultCoverLetterPath,
		}
	}
	return assets
}

// -- Navigation with validation recovery --

// advanceWithRecovery activates the navigation control and, when the portal
// rejects the submission, runs the bounded correction loop: detect failed
// fields, apply a correction per field, re-submit. The loop ends when a new
// page is reached or a field exhausts its correction budget.
func (e *Engine) advanceWithRecovery(
	ctx context.Context,
	r *run,
	snap *schemas.Snapshot,
	from schemas.PageIdentity,
) (*schemas.Snapshot, schemas.PageIdentity, error) {
	attempts := map[string]int{}
	current := snap
	stuck := 0

	for {
		control := r.nav.FindNavigationControl(current)
		if control == nil {
			r.structural = append(r.structural, schemas.StructuralFailure{
				Page:          from.Key,
				MissingSignal: "navigation control (next/submit)",
			})
			return nil, schemas.PageIdentity{}, schemas.NewStepError(schemas.FailureStructural, from.Key,
				fmt.Errorf("no navigation control found on completed page"))
		}

		var next *schemas.Snapshot
		var to schemas.PageIdentity
		err := e.retryTransient(ctx, r.sess, from.Key, func() error {
			var stepErr error
			next, to, stepErr = r.nav.Advance(ctx, r.sess, from, control)
			return stepErr
		})
		if err != nil {
			return nil, schemas.PageIdentity{}, err
		}

		if to.Key != from.Key {
			return next, to, nil
		}

		// Same page after activation: either a validation rejection or the
		// page has not finished reacting yet.
		failures := e.deps.Validator.DetectFailures(next)
		if len(failures) == 0 {
			stuck++
			if stuck > e.cfg.MaxTransientRetries {
				r.structural = append(r.structural, schemas.StructuralFailure{
					Page:          from.Key,
					MissingSignal: "page transition after navigation control",
				})
				return nil, schemas.PageIdentity{}, schemas.NewStepError(schemas.FailureStructural, from.Key,
					fmt.Errorf("page never advanced and reported no validation failures"))
			}
			r.sess.CountFailure(schemas.FailureTransient)
			current = next
			continue
		}
		stuck = 0

		for i := range failures {
			f := &failures[i]
			r.sess.CountFailure(schemas.FailureValidation)
			r.sess.ValidationErrors[f.FieldID] = f.Message
			attempts[f.FieldID]++
			f.AttemptCount = attempts[f.FieldID]

			if f.AttemptCount > e.cfg.MaxCorrectionAttempts {
				step := schemas.NewStepError(schemas.FailureValidation, from.Key,
					fmt.Errorf("field rejected after %d correction attempts: %s", e.cfg.MaxCorrectionAttempts, f.Message))
				step.FieldID = f.FieldID
				return nil, schemas.PageIdentity{}, step
			}

			corrected := e.deps.Validator.SuggestCorrection(f, r.sess.AnsweredFields[f.FieldID])
			e.log.Warn("Validation rejection",
				zap.String("page", from.Key),
				zap.String("field", f.FieldID),
				zap.String("message", f.Message),
				zap.String("via", string(f.DetectedVia)),
				zap.Int("attempt", f.AttemptCount),
				zap.Stringp("suggested_correction", f.SuggestedCorrection))

			if corrected == nil {
				step := schemas.NewStepError(schemas.FailureValidation, from.Key,
					fmt.Errorf("no correction known for rejection: %s", f.Message))
				step.FieldID = f.FieldID
				return nil, schemas.PageIdentity{}, step
			}
			if err := e.deps.Driver.Fill(ctx, f.Selector, *corrected); err != nil {
				step := schemas.NewStepError(schemas.FailureTransient, from.Key,
					fmt.Errorf("failed to apply correction: %w", err))
				step.FieldID = f.FieldID
				return nil, schemas.PageIdentity{}, step
			}
			r.sess.AnsweredFields[f.FieldID] = *corrected
		}
		r.sess.UpdatedAt = e.now()
		e.checkpoint(ctx, r.sess)

		current, err = e.capture(ctx, r.sess, from.Key)
		if err != nil {
			return nil, schemas.PageIdentity{}, err
		}
	}
}

// -- Session lifecycle --

// openSession resumes from a checkpoint when requested and possible,
// otherwise starts a fresh session.
func (e *Engine) openSession(ctx context.Context, req Request) (*schemas.ApplicationSession, error) {
	if req.ResumeSessionID != "" {
		sess, err := e.deps.Checkpoints.Load(ctx, req.ResumeSessionID)
		switch {
		case errors.Is(err, state.ErrCheckpointStale):
			e.log.Warn("Checkpoint expired; starting fresh",
				zap.String("session_id", req.ResumeSessionID))
		case err != nil:
			return nil, fmt.Errorf("failed to load checkpoint: %w", err)
		case sess == nil:
			e.log.Warn("No checkpoint found; starting fresh",
				zap.String("session_id", req.ResumeSessionID))
		default:
			sess.Status = schemas.StatusInProgress
			e.log.Info("Resuming from checkpoint",
				zap.String("session_id", sess.SessionID),
				zap.Ints("pages_completed", sess.PagesCompleted),
				zap.Int("answered_fields", len(sess.AnsweredFields)))
			return sess, nil
		}
	}
	return schemas.NewApplicationSession(e.newID(), req.ApplicantID, req.TargetURL, e.now()), nil
}

// classifyTerminal maps the pipeline error onto the session's terminal
// status. Cancellation abandons the session but keeps its checkpoint so it
// can be resumed; everything else is a failure.
func (e *Engine) classifyTerminal(r *run, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		r.sess.Status = schemas.StatusAbandoned
		r.sess.UpdatedAt = e.now()
		// Checkpoint with a background context; the session context is gone.
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		e.checkpoint(saveCtx, r.sess)
		e.log.Warn("Session abandoned; checkpoint retained for resume",
			zap.String("session_id", r.sess.SessionID))
		return
	}

	var step *schemas.StepError
	if errors.As(err, &step) {
		r.sess.CountFailure(step.Kind)
		if step.FieldID != "" {
			r.sess.MarkUnresolved(step.FieldID)
		}
		if step.Kind == schemas.FailureStructural && step.MissingSignal != "" {
			r.structural = append(r.structural, schemas.StructuralFailure{
				Page:          step.Page,
				MissingSignal: step.MissingSignal,
			})
		}
		e.log.Error("Session failed",
			zap.String("session_id", r.sess.SessionID),
			zap.String("kind", string(step.Kind)),
			zap.String("page", step.Page),
			zap.Error(err))
	} else {
		e.log.Error("Session failed", zap.String("session_id", r.sess.SessionID), zap.Error(err))
	}
	r.fail("")
}

func (r *run) fail(kind schemas.FailureKind) {
	if kind != "" {
		r.sess.CountFailure(kind)
	}
	r.sess.Status = schemas.StatusFailed
}

// finish emits the one terminal record and clears the checkpoint for
// sessions that will never resume.
func (e *Engine) finish(ctx context.Context, r *run) (*schemas.ApplicationResult, error) {
	now := e.now()
	if r.sess.Status == schemas.StatusInProgress {
		r.sess.Status = schemas.StatusFailed
	}

	res := &schemas.ApplicationResult{
		SessionID:          r.sess.SessionID,
		TargetURL:          r.sess.TargetURL,
		Status:             r.sess.Status,
		PagesCompleted:     r.sess.PagesCompleted,
		UnresolvedFields:   r.sess.UnresolvedFields,
		DocumentAssetsUsed: r.sess.DocumentAssetsUsed,
		FailureCounters:    r.sess.FailureCounters,
		StructuralFailures: r.structural,
		Duration:           now.Sub(r.sess.StartedAt),
		FinishedAt:         now,
	}

	emitCtx := ctx
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		emitCtx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}

	if r.sess.Status != schemas.StatusAbandoned {
		if err := e.deps.Checkpoints.Clear(emitCtx, r.sess.SessionID); err != nil {
			e.log.Warn("Failed to clear checkpoint", zap.Error(err))
		}
	}
	if err := e.deps.Sink.Emit(emitCtx, res); err != nil {
		return res, fmt.Errorf("failed to emit application result: %w", err)
	}
	return res, nil
}

// -- Helpers --

// checkpoint persists the session. Checkpointing is best-effort: a store
// outage must not abort a session that is otherwise progressing.
func (e *Engine) checkpoint(ctx context.Context, sess *schemas.ApplicationSession) {
	if err := e.deps.Checkpoints.Save(ctx, sess); err != nil {
		e.log.Warn("Checkpoint save failed",
			zap.String("session_id", sess.SessionID),
			zap.Error(err))
	}
}

// capture waits for the DOM to settle, then takes a fresh snapshot, with
// transient retry around both.
func (e *Engine) capture(ctx context.Context, sess *schemas.ApplicationSession, page string) (*schemas.Snapshot, error) {
	var snap *schemas.Snapshot
	err := e.retryTransient(ctx, sess, page, func() error {
		if err := e.deps.Driver.WaitStable(ctx, e.cfg.StabilizeTimeout); err != nil {
			return schemas.NewStepError(schemas.FailureTransient, page, err)
		}
		var err error
		snap, err = e.deps.Driver.CaptureSnapshot(ctx)
		if err != nil {
			return schemas.NewStepError(schemas.FailureTransient, page, err)
		}
		return nil
	})
	return snap, err
}

// retryTransient retries the operation on transient step errors with a
// constant backoff up to the configured cap, counting every occurrence.
// Exhaustion escalates to a structural failure: persistent transience means
// the portal or network is not in a state the selectors describe.
func (e *Engine) retryTransient(ctx context.Context, sess *schemas.ApplicationSession, page string, op func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(e.cfg.TransientBackoff), uint64(e.cfg.MaxTransientRetries)),
		ctx)

	err := backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		var step *schemas.StepError
		if errors.As(err, &step) && step.Kind == schemas.FailureTransient {
			sess.CountFailure(schemas.FailureTransient)
			e.log.Warn("Transient failure, retrying...",
				zap.String("page", page),
				zap.Error(err))
			return err
		}
		return backoff.Permanent(err)
	}, policy)

	if err == nil {
		return nil
	}
	var step *schemas.StepError
	if errors.As(err, &step) && step.Kind == schemas.FailureTransient {
		esc := schemas.NewStepError(schemas.FailureStructural, page,
			fmt.Errorf("transient retries exhausted: %w", err))
		esc.MissingSignal = fmt.Sprintf("stable portal response after %d transient retries", e.cfg.MaxTransientRetries)
		return esc
	}
	return err
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid target url %q: %w", rawURL, err)
	}
	if u.Hostname() == "" {
		return "", fmt.Errorf("target url %q has no host", rawURL)
	}
	return u.Hostname(), nil
}
