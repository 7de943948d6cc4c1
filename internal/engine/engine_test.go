package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/api/schemas"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/attachment"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/config"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/screening"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/selectors"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/state"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/synthesis"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/validation"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// -- Fake portal --
//
// fakePortal simulates a multi-page application portal behind the
// BrowserDriver interface: interactions mutate field values, navigation
// validates and either advances or renders field errors, and snapshots are
// re-rendered from current state. It lets the whole pipeline run without a
// browser.

type fakeOption struct{ value, label string }

type fakeField struct {
	name     string
	label    string
	kind     string // text, tel, email, textarea, select, radio, checkbox, file
	required bool
	options  []fakeOption
}

type fakePage struct {
	key    string
	url    string
	title  string
	fields []fakeField
	submit bool // render the submit control instead of next
	final  bool
}

type fakePortal struct {
	pages  []fakePage
	idx    int
	values map[string]string
	errors map[string]string
	// rules validate a field's value on navigation; non-empty return is the
	// rejection message.
	rules map[string]func(string) string

	attachFailures int
	attached       []string
	filled         []string
	navClicks      []string
	waits          []time.Duration
}

var (
	idRe    = regexp.MustCompile(`@id='([^']+)'`)
	nameRe  = regexp.MustCompile(`@name='([^']+)'`)
	valueRe = regexp.MustCompile(`@value='([^']+)'`)
)

func newFakePortal(pages []fakePage) *fakePortal {
	return &fakePortal{
		pages:  pages,
		values: map[string]string{},
		errors: map[string]string{},
		rules:  map[string]func(string) string{},
	}
}

func (f *fakePortal) page() fakePage { return f.pages[f.idx] }

func (f *fakePortal) Navigate(ctx context.Context, url string) error { return nil }

func (f *fakePortal) CaptureSnapshot(ctx context.Context) (*schemas.Snapshot, error) {
	return schemas.ParseSnapshot(f.page().url, f.render(), time.Now())
}

func (f *fakePortal) Click(ctx context.Context, selector string) error {
	if !strings.Contains(selector, "@id='next'") && !strings.Contains(selector, "@id='submit'") {
		return nil // focus clicks and option clicks are modeled elsewhere
	}
	if strings.Contains(selector, "@id='submit'") {
		f.navClicks = append(f.navClicks, "submit")
	} else {
		f.navClicks = append(f.navClicks, "next")
	}
	f.errors = map[string]string{}
	for _, field := range f.page().fields {
		if rule, ok := f.rules[field.name]; ok {
			if msg := rule(f.values[field.name]); msg != "" {
				f.errors[field.name] = msg
			}
		}
	}
	if len(f.errors) == 0 && f.idx < len(f.pages)-1 {
		f.idx++
	}
	return nil
}

func (f *fakePortal) Fill(ctx context.Context, selector, text string) error {
	m := idRe.FindStringSubmatch(selector)
	if m == nil {
		return fmt.Errorf("fake portal cannot address %q", selector)
	}
	f.values[m[1]] = text
	f.filled = append(f.filled, m[1])
	delete(f.errors, m[1])
	return nil
}

func (f *fakePortal) SelectOption(ctx context.Context, selector, value string) error {
	m := idRe.FindStringSubmatch(selector)
	if m == nil {
		return fmt.Errorf("fake portal cannot address %q", selector)
	}
	f.values[m[1]] = value
	return nil
}

func (f *fakePortal) SetChecked(ctx context.Context, selector string, checked bool) error {
	if name := nameRe.FindStringSubmatch(selector); name != nil {
		if value := valueRe.FindStringSubmatch(selector); value != nil {
			f.values[name[1]] = value[1] // radio option
			return nil
		}
	}
	if m := idRe.FindStringSubmatch(selector); m != nil {
		if checked {
			f.values[m[1]] = "on"
		} else {
			delete(f.values, m[1])
		}
		return nil
	}
	return fmt.Errorf("fake portal cannot address %q", selector)
}

func (f *fakePortal) AttachFile(ctx context.Context, selector, path string) error {
	if f.attachFailures > 0 {
		f.attachFailures--
		return errors.New("upload rejected")
	}
	f.attached = append(f.attached, path)
	return nil
}

func (f *fakePortal) WaitStable(ctx context.Context, timeout time.Duration) error {
	f.waits = append(f.waits, timeout)
	return nil
}

func (f *fakePortal) render() string {
	p := f.page()
	var b strings.Builder
	fmt.Fprintf(&b, "<html><body><h1>%s</h1><form>", p.title)
	for _, field := range p.fields {
		f.renderField(&b, field)
		if msg := f.errors[field.name]; msg != "" {
			fmt.Fprintf(&b, `<div class="error">%s</div>`, msg)
		}
	}
	b.WriteString("</form>")
	if !p.final {
		if p.submit {
			b.WriteString(`<button id="submit">Submit application</button>`)
		} else {
			b.WriteString(`<button id="next">Continue</button>`)
		}
	}
	b.WriteString("</body></html>")
	return b.String()
}

func (f *fakePortal) renderField(b *strings.Builder, field fakeField) {
	req := ""
	if field.required {
		req = " required"
	}
	switch field.kind {
	case "radio":
		fmt.Fprintf(b, "<fieldset><legend>%s</legend>", field.label)
		for i, opt := range field.options {
			checked := ""
			if f.values[field.name] == opt.value {
				checked = " checked"
			}
			r := ""
			if field.required && i == 0 {
				r = " required"
			}
			id := fmt.Sprintf("%s_%s", field.name, opt.value)
			fmt.Fprintf(b, `<input type="radio" id=%q name=%q value=%q%s%s><label for=%q>%s</label>`,
				id, field.name, opt.value, r, checked, id, opt.label)
		}
		b.WriteString("</fieldset>")
	case "select":
		fmt.Fprintf(b, `<label for=%q>%s</label><select id=%q name=%q%s><option value="">Select...</option>`,
			field.name, field.label, field.name, field.name, req)
		for _, opt := range field.options {
			selected := ""
			if f.values[field.name] == opt.value {
				selected = " selected"
			}
			fmt.Fprintf(b, `<option value=%q%s>%s</option>`, opt.value, selected, opt.label)
		}
		b.WriteString("</select>")
	case "checkbox":
		checked := ""
		if f.values[field.name] != "" {
			checked = " checked"
		}
		fmt.Fprintf(b, `<input type="checkbox" id=%q name=%q%s%s><label for=%q>%s</label>`,
			field.name, field.name, req, checked, field.name, field.label)
	case "textarea":
		fmt.Fprintf(b, `<label for=%q>%s</label><textarea id=%q name=%q%s>%s</textarea>`,
			field.name, field.label, field.name, field.name, req, f.values[field.name])
	case "file":
		fmt.Fprintf(b, `<label for=%q>%s</label><input type="file" id=%q name=%q>`,
			field.name, field.label, field.name, field.name)
	default:
		fmt.Fprintf(b, `<label for=%q>%s</label><input type=%q id=%q name=%q%s value=%q>`,
			field.name, field.label, field.kind, field.name, field.name, req, f.values[field.name])
	}
}

// -- Supporting fakes --

type noopPacer struct{}

func (noopPacer) Pause(ctx context.Context) error           { return ctx.Err() }
func (noopPacer) KeyDelay(text []rune, i int) time.Duration { return 0 }

type memProfiles struct{ p *schemas.ApplicantProfile }

func (m memProfiles) Lookup(ctx context.Context, id string) (*schemas.ApplicantProfile, error) {
	if m.p == nil || m.p.ApplicantID != id {
		return nil, fmt.Errorf("no profile for applicant %q", id)
	}
	return m.p, nil
}

// spyStore records the most recent checkpoint save on top of the real
// memory store.
type spyStore struct {
	*state.MemoryStore
	lastSaved *schemas.ApplicationSession
}

func (s *spyStore) Save(ctx context.Context, sess *schemas.ApplicationSession) error {
	s.lastSaved = sess
	return s.MemoryStore.Save(ctx, sess)
}

type captureSink struct{ results []*schemas.ApplicationResult }

func (s *captureSink) Emit(ctx context.Context, r *schemas.ApplicationResult) error {
	s.results = append(s.results, r)
	return nil
}

func boolPtr(b bool) *bool { return &b }

// -- Fixtures --

const targetURL = "https://jobs.example.com/apply/personal"

func standardPages() []fakePage {
	return []fakePage{
		{
			key:   "personal",
			url:   "https://jobs.example.com/apply/personal",
			title: "Personal Information",
			fields: []fakeField{
				{name: "full_name", label: "Full Name", kind: "text", required: true},
				{name: "email", label: "Email address", kind: "email", required: true},
				{name: "phone", label: "Phone number", kind: "tel", required: true},
			},
		},
		{
			key:   "screening",
			url:   "https://jobs.example.com/apply/screening",
			title: "Screening Questions",
			fields: []fakeField{
				{name: "work_auth", label: "Are you legally authorized to work in Canada?", kind: "radio", required: true,
					options: []fakeOption{{"yes", "Yes"}, {"no", "No"}}},
				{name: "education", label: "Highest level of education", kind: "select", required: true,
					options: []fakeOption{{"bachelors", "Bachelor's degree"}, {"masters", "Master's degree"}}},
				{name: "commit", label: "Can you commit to full-time work?", kind: "checkbox", required: true},
				{name: "resume_upload", label: "Resume", kind: "file"},
			},
			submit: true,
		},
		{
			key:   "done",
			url:   "https://jobs.example.com/apply/done",
			title: "Thank you!",
			final: true,
		},
	}
}

func standardProfile() *schemas.ApplicantProfile {
	return &schemas.ApplicantProfile{
		ApplicantID:       "applicant-1",
		FullName:          "Pat Morgan",
		Email:             "pat@example.com",
		Phone:             "(555) 010-2030",
		Skills:            []string{"Python", "SQL"},
		TenureYears:       7,
		EducationLevel:    "Bachelor's degree",
		WorkAuthorization: boolPtr(true),
	}
}

func standardPortalMapping(t *testing.T) *selectors.Registry {
	t.Helper()
	registry, err := selectors.NewRegistry(zap.NewNop(), &selectors.Portal{
		Name:    "acme-jobs",
		Version: "2026-08",
		Hosts:   []string{"jobs.example.com"},
		Pages: []selectors.PageRule{
			{Key: "personal", Kind: "form", URLPattern: `/apply/personal`,
				Markers: []string{`//h1[contains(text(),'Personal')]`}},
			{Key: "screening", Kind: "form", URLPattern: `/apply/screening`,
				Markers: []string{`//h1[contains(text(),'Screening')]`}},
			{Key: "done", Kind: "confirmation", URLPattern: `/apply/done`,
				Markers: []string{`//h1[contains(text(),'Thank')]`}, Final: true},
		},
		NextControls:   []string{`//button[@id='next']`},
		SubmitControls: []string{`//button[@id='submit']`},
	})
	require.NoError(t, err)
	return registry
}

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		EscalationThreshold:   0.6,
		MaxCorrectionAttempts: 3,
		MaxUploadAttempts:     3,
		MaxTransientRetries:   2,
		TransientBackoff:      time.Millisecond,
		NavigationTimeout:     200 * time.Millisecond,
		StabilizeTimeout:      50 * time.Millisecond,
		MaxPages:              10,
	}
}

type harness struct {
	engine *Engine
	portal *fakePortal
	store  *spyStore
	sink   *captureSink
}

func newHarness(t *testing.T, portal *fakePortal, profile *schemas.ApplicantProfile) *harness {
	return newHarnessWithLogger(t, portal, profile, zap.NewNop())
}

func newHarnessWithLogger(t *testing.T, portal *fakePortal, profile *schemas.ApplicantProfile, logger *zap.Logger) *harness {
	t.Helper()
	store := &spyStore{MemoryStore: state.NewMemoryStore(time.Hour)}
	sink := &captureSink{}

	eng := New(testEngineConfig(), config.DocumentsConfig{
		ResumePath:        "/docs/resume-tailored.pdf",
		DefaultResumePath: "/docs/resume-default.pdf",
	}, Deps{
		Driver:      portal,
		Registry:    standardPortalMapping(t),
		Detector:    screening.NewDetector(logger),
		Validator:   validation.NewHandler(logger),
		Synthesizer: synthesis.New(nil, 0.6, time.Second, logger),
		Attachments: attachment.NewHandler(portal, noopPacer{}, 3, logger),
		Checkpoints: store,
		Profiles:    memProfiles{profile},
		Sink:        sink,
		Logger:      logger,
	})
	return &harness{engine: eng, portal: portal, store: store, sink: sink}
}

// -- Scenarios --

func TestRunCompletesHappyPath(t *testing.T) {
	portal := newFakePortal(standardPages())
	h := newHarness(t, portal, standardProfile())

	res, err := h.engine.Run(context.Background(), Request{TargetURL: targetURL, ApplicantID: "applicant-1"})
	require.NoError(t, err)

	assert.Equal(t, schemas.StatusCompleted, res.Status)
	assert.Equal(t, []int{0, 1}, res.PagesCompleted)
	assert.Empty(t, res.UnresolvedFields)

	t.Run("answers landed on the portal", func(t *testing.T) {
		assert.Equal(t, "Pat Morgan", portal.values["full_name"])
		assert.Equal(t, "pat@example.com", portal.values["email"])
		assert.Equal(t, "yes", portal.values["work_auth"])
		assert.Equal(t, "bachelors", portal.values["education"])
		assert.Equal(t, "on", portal.values["commit"])
	})

	t.Run("custom resume attached", func(t *testing.T) {
		assert.Equal(t, []string{"/docs/resume-tailored.pdf"}, portal.attached)
		assert.Equal(t, schemas.AssetCustom, res.DocumentAssetsUsed[schemas.DocumentResume])
	})

	t.Run("terminal session clears its checkpoint", func(t *testing.T) {
		got, err := h.store.Load(context.Background(), res.SessionID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("exactly one result emitted", func(t *testing.T) {
		require.Len(t, h.sink.results, 1)
		assert.Equal(t, res.SessionID, h.sink.results[0].SessionID)
	})

	t.Run("snapshots wait for the page to settle", func(t *testing.T) {
		assert.Contains(t, portal.waits, 50*time.Millisecond)
	})

	t.Run("checkpoints carry the mapped page count", func(t *testing.T) {
		require.NotNil(t, h.store.lastSaved)
		require.NotNil(t, h.store.lastSaved.TotalPagesKnown)
		assert.Equal(t, 3, *h.store.lastSaved.TotalPagesKnown)
	})
}

func TestRunRecoversFromValidationRejection(t *testing.T) {
	portal := newFakePortal(standardPages())
	portal.rules["phone"] = func(v string) string {
		if regexp.MustCompile(`^\(\d{3}\) \d{3}-\d{4}$`).MatchString(v) {
			return ""
		}
		return "Enter a valid phone number"
	}

	profile := standardProfile()
	profile.Phone = "5550102030" // raw digits the portal rejects

	h := newHarness(t, portal, profile)
	res, err := h.engine.Run(context.Background(), Request{TargetURL: targetURL, ApplicantID: "applicant-1"})
	require.NoError(t, err)

	assert.Equal(t, schemas.StatusCompleted, res.Status)
	assert.Equal(t, "(555) 010-2030", portal.values["phone"])
	assert.GreaterOrEqual(t, res.FailureCounters[schemas.FailureValidation], 1)
}

func TestRunFailsWhenNoCorrectionSatisfiesThePortal(t *testing.T) {
	portal := newFakePortal(standardPages())
	// The portal rejects every phone format. The reformatting correction is
	// applied once; when the portal rejects the corrected value too, no
	// further correction is known and the session fails.
	portal.rules["phone"] = func(v string) string { return "Enter a valid phone number" }

	profile := standardProfile()
	profile.Phone = "5550102030"

	h := newHarness(t, portal, profile)
	res, err := h.engine.Run(context.Background(), Request{TargetURL: targetURL, ApplicantID: "applicant-1"})
	require.NoError(t, err)

	assert.Equal(t, schemas.StatusFailed, res.Status)
	assert.GreaterOrEqual(t, res.FailureCounters[schemas.FailureValidation], 2)
	assert.Contains(t, res.UnresolvedFields, "phone")
	assert.Empty(t, res.PagesCompleted)
}

func TestRunLeavesRequiredUnanswerableFieldsUnresolved(t *testing.T) {
	pages := standardPages()
	pages[1].fields = append(pages[1].fields, fakeField{
		name: "spirit", label: "What spirit animal best represents you?", kind: "text", required: true,
	})
	portal := newFakePortal(pages)

	h := newHarness(t, portal, standardProfile())
	res, err := h.engine.Run(context.Background(), Request{TargetURL: targetURL, ApplicantID: "applicant-1"})
	require.NoError(t, err)

	assert.Equal(t, schemas.StatusFailed, res.Status)
	assert.Contains(t, res.UnresolvedFields, "spirit")
	assert.GreaterOrEqual(t, res.FailureCounters[schemas.FailureConfidence], 1)
	// Nothing was invented for the field.
	assert.Empty(t, portal.values["spirit"])
}

func TestRunResumesFromCheckpoint(t *testing.T) {
	portal := newFakePortal(standardPages())
	// The portal retained the first page's state and reopens on page two.
	portal.idx = 1
	portal.values["full_name"] = "Pat Morgan"
	portal.values["email"] = "pat@example.com"
	portal.values["phone"] = "(555) 010-2030"

	h := newHarness(t, portal, standardProfile())

	now := time.Now().UTC()
	prior := schemas.NewApplicationSession("sess-resume", "applicant-1", targetURL, now.Add(-10*time.Minute))
	prior.AnsweredFields["full_name"] = "Pat Morgan"
	prior.AnsweredFields["email"] = "pat@example.com"
	prior.AnsweredFields["phone"] = "(555) 010-2030"
	require.NoError(t, prior.CompletePage(0, now.Add(-10*time.Minute)))
	require.NoError(t, h.store.Save(context.Background(), prior))

	res, err := h.engine.Run(context.Background(), Request{
		TargetURL:       targetURL,
		ApplicantID:     "applicant-1",
		ResumeSessionID: "sess-resume",
	})
	require.NoError(t, err)

	assert.Equal(t, schemas.StatusCompleted, res.Status)
	assert.Equal(t, "sess-resume", res.SessionID)
	assert.Equal(t, []int{0, 1}, res.PagesCompleted)
	// Page one answers were never re-typed.
	assert.NotContains(t, portal.filled, "full_name")
	assert.NotContains(t, portal.filled, "email")
	assert.NotContains(t, portal.filled, "phone")
}

func TestRunStartsFreshOnStaleCheckpoint(t *testing.T) {
	portal := newFakePortal(standardPages())
	h := newHarness(t, portal, standardProfile())

	// Age the checkpoint past the staleness window.
	clock := time.Now().UTC().Add(-2 * time.Hour)
	h.store.SetClock(func() time.Time { return clock })
	prior := schemas.NewApplicationSession("sess-old", "applicant-1", targetURL, clock)
	require.NoError(t, h.store.Save(context.Background(), prior))
	h.store.SetClock(time.Now)

	res, err := h.engine.Run(context.Background(), Request{
		TargetURL:       targetURL,
		ApplicantID:     "applicant-1",
		ResumeSessionID: "sess-old",
	})
	require.NoError(t, err)

	assert.Equal(t, schemas.StatusCompleted, res.Status)
	assert.NotEqual(t, "sess-old", res.SessionID, "a stale checkpoint must start a fresh session")
}

func TestRunFailsStructurallyOnUnknownPortal(t *testing.T) {
	portal := newFakePortal(standardPages())
	h := newHarness(t, portal, standardProfile())

	res, err := h.engine.Run(context.Background(), Request{
		TargetURL:   "https://unknown-portal.example.net/apply",
		ApplicantID: "applicant-1",
	})
	require.NoError(t, err)

	assert.Equal(t, schemas.StatusFailed, res.Status)
	require.NotEmpty(t, res.StructuralFailures)
	assert.Contains(t, res.StructuralFailures[0].MissingSignal, "unknown-portal.example.net")
}

func TestRunFailsStructurallyOnUnrecognizedPage(t *testing.T) {
	pages := standardPages()
	pages[0].title = "Somewhere Unexpected" // marker no longer agrees
	portal := newFakePortal(pages)

	h := newHarness(t, portal, standardProfile())
	res, err := h.engine.Run(context.Background(), Request{TargetURL: targetURL, ApplicantID: "applicant-1"})
	require.NoError(t, err)

	assert.Equal(t, schemas.StatusFailed, res.Status)
	assert.GreaterOrEqual(t, res.FailureCounters[schemas.FailureStructural], 1)
	require.NotEmpty(t, res.StructuralFailures)
}

func TestRunFailsStructurallyOnUnknownDestination(t *testing.T) {
	pages := standardPages()
	// Submission lands somewhere the portal mapping has no rule for.
	pages[2] = fakePage{
		key:   "lost",
		url:   "https://jobs.example.com/elsewhere",
		title: "You seem lost",
		final: true,
	}
	portal := newFakePortal(pages)

	h := newHarness(t, portal, standardProfile())
	res, err := h.engine.Run(context.Background(), Request{TargetURL: targetURL, ApplicantID: "applicant-1"})
	require.NoError(t, err)

	assert.Equal(t, schemas.StatusFailed, res.Status)
	require.NotEmpty(t, res.StructuralFailures)
	assert.Contains(t, res.StructuralFailures[0].MissingSignal, "https://jobs.example.com/elsewhere")
	assert.Zero(t, res.FailureCounters[schemas.FailureTransient])
	// The submit control fired exactly once; an unrecognized destination must
	// never trigger a second activation.
	assert.Equal(t, []string{"next", "submit"}, portal.navClicks)
}

func TestRadioOptionSelector(t *testing.T) {
	q := schemas.ScreeningQuestion{
		QuestionID:  "q-1",
		Kind:        schemas.ControlRadioGroup,
		GroupName:   "q-1",
	}

	sel, err := radioOptionSelector(q, "yes")
	require.NoError(t, err)
	assert.Equal(t, `//input[@type='radio'][@name='q-1'][@value='yes']`, sel)

	q.GroupName = ""
	_, err = radioOptionSelector(q, "yes")
	assert.ErrorContains(t, err, "no name attribute")
}

func TestRunFallsBackToDefaultResume(t *testing.T) {
	portal := newFakePortal(standardPages())
	portal.attachFailures = 3 // exhausts the custom budget; the fallback succeeds

	h := newHarness(t, portal, standardProfile())
	res, err := h.engine.Run(context.Background(), Request{TargetURL: targetURL, ApplicantID: "applicant-1"})
	require.NoError(t, err)

	assert.Equal(t, schemas.StatusCompleted, res.Status)
	assert.Equal(t, schemas.AssetFallback, res.DocumentAssetsUsed[schemas.DocumentResume])
	assert.Equal(t, []string{"/docs/resume-default.pdf"}, portal.attached)
}
