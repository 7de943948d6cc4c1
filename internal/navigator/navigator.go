// Package navigator identifies the current page of the application flow and
// executes the transition to the next one. Page identification always
// combines the URL pattern with structural content markers from the portal
// selector configuration; either signal alone can be absent or duplicated
// across pages.
package navigator

import (
	"context"
	"fmt"
	"time"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/api/schemas"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/domutil"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/selectors"
)

// Navigator drives page-by-page traversal for one portal.
type Navigator struct {
	portal     *selectors.Portal
	driver     schemas.BrowserDriver
	navTimeout time.Duration
	pollEvery  time.Duration
	log        *zap.Logger
}

// New creates a navigator bound to one portal mapping and one driver.
func New(portal *selectors.Portal, driver schemas.BrowserDriver, navTimeout time.Duration, logger *zap.Logger) *Navigator {
	return &Navigator{
		portal:     portal,
		driver:     driver,
		navTimeout: navTimeout,
		pollEvery:  500 * time.Millisecond,
		log:        logger.Named("navigator"),
	}
}

// DetectCurrentPage classifies the active page. A rule only matches when
// its URL pattern and at least one structural marker both agree; anything
// less returns an unresolved identity flagged for review.
func (n *Navigator) DetectCurrentPage(snap *schemas.Snapshot) schemas.PageIdentity {
	for i := range n.portal.Pages {
		rule := &n.portal.Pages[i]
		if !rule.MatchURL(snap.URL) {
			continue
		}
		signals := []string{"url"}
		matched := false
		for _, marker := range rule.Markers {
			if htmlquery.FindOne(snap.Root, marker) != nil {
				signals = append(signals, "marker:"+marker)
				matched = true
			}
		}
		if !matched {
			continue
		}
		return schemas.PageIdentity{
			Key:            rule.Key,
			Kind:           rule.PageKind(),
			Final:          rule.Final,
			MatchedSignals: signals,
		}
	}
	n.log.Warn("Page did not match any selector rule; flagging unresolved",
		zap.String("url", snap.URL),
		zap.String("portal", n.portal.Name),
		zap.String("portal_version", n.portal.Version))
	return schemas.PageIdentity{Kind: schemas.PageUnknown}
}

// IsFinalPage reports whether the identity is the portal's terminal
// (submission confirmation) page.
func (n *Navigator) IsFinalPage(id schemas.PageIdentity) bool {
	return id.Final || id.Kind == schemas.PageConfirmation
}

// FindNavigationControl searches, in priority order, for a continue/next
// action, then a submit/finish action. It returns nil while required
// questions remain unanswered: the page is not yet complete.
func (n *Navigator) FindNavigationControl(snap *schemas.Snapshot) *schemas.ControlRef {
	if field := firstIncompleteRequired(snap.Root); field != "" {
		n.log.Debug("Navigation withheld; required field unanswered",
			zap.String("field", field))
		return nil
	}

	for _, expr := range n.portal.NextControls {
		if node := htmlquery.FindOne(snap.Root, expr); node != nil {
			return &schemas.ControlRef{
				Selector: expr,
				Label:    domutil.CleanText(htmlquery.InnerText(node)),
				Submit:   false,
			}
		}
	}
	for _, expr := range n.portal.SubmitControls {
		if node := htmlquery.FindOne(snap.Root, expr); node != nil {
			return &schemas.ControlRef{
				Selector: expr,
				Label:    domutil.CleanText(htmlquery.InnerText(node)),
				Submit:   true,
			}
		}
	}
	return nil
}

// Advance activates the control, then blocks until a new page identity is
// observed or the navigation timeout elapses, in which case the step is a
// transient failure. Every successful transition is appended to the
// session's navigation history; checkpointing is the caller's next step.
func (n *Navigator) Advance(
	ctx context.Context,
	sess *schemas.ApplicationSession,
	from schemas.PageIdentity,
	control *schemas.ControlRef,
) (*schemas.Snapshot, schemas.PageIdentity, error) {
	if err := n.driver.Click(ctx, control.Selector); err != nil {
		return nil, schemas.PageIdentity{}, schemas.NewStepError(schemas.FailureTransient, from.Key,
			fmt.Errorf("failed to activate navigation control %q: %w", control.Selector, err))
	}

	deadline := time.Now().Add(n.navTimeout)
	for {
		if err := ctx.Err(); err != nil {
			return nil, schemas.PageIdentity{}, err
		}
		if time.Now().After(deadline) {
			return nil, schemas.PageIdentity{}, schemas.NewStepError(schemas.FailureTransient, from.Key,
				fmt.Errorf("no new page observed within %s after activating %q", n.navTimeout, control.Selector))
		}

		if err := n.driver.WaitStable(ctx, n.pollEvery); err != nil {
			return nil, schemas.PageIdentity{}, schemas.NewStepError(schemas.FailureTransient, from.Key,
				fmt.Errorf("wait for page to settle: %w", err))
		}
		snap, err := n.driver.CaptureSnapshot(ctx)
		if err != nil {
			return nil, schemas.PageIdentity{}, schemas.NewStepError(schemas.FailureTransient, from.Key,
				fmt.Errorf("capture snapshot after navigation: %w", err))
		}

		to := n.DetectCurrentPage(snap)
		if to.Key != from.Key && !to.Unresolved() {
			sess.RecordTransition(from, to, time.Now())
			n.log.Info("Page transition",
				zap.String("from", from.Key),
				zap.String("to", to.Key))
			return snap, to, nil
		}
		// Same page still showing. Validation rejections keep the identity
		// unchanged; the caller's validation pass decides what to do.
		if to.Key == from.Key {
			return snap, to, nil
		}
		// The URL left the page we activated from but matches no rule. That
		// is a selector-configuration gap, not a slow load: re-activating the
		// control would re-submit, so fail structurally right away.
		if to.Unresolved() && !n.urlMatchesPage(from.Key, snap.URL) {
			step := schemas.NewStepError(schemas.FailureStructural, from.Key,
				fmt.Errorf("unrecognized page %q after activating %q", snap.URL, control.Selector))
			step.MissingSignal = "page identity (url pattern + marker) for " + snap.URL
			return nil, schemas.PageIdentity{}, step
		}
	}
}

// urlMatchesPage reports whether the URL still matches the given page rule.
func (n *Navigator) urlMatchesPage(key, url string) bool {
	for i := range n.portal.Pages {
		if n.portal.Pages[i].Key == key {
			return n.portal.Pages[i].MatchURL(url)
		}
	}
	return false
}

// -- Required-field completeness --

// firstIncompleteRequired returns the identifier of the first required,
// unanswered control in the snapshot, or "" when the page is complete.
func firstIncompleteRequired(root *html.Node) string {
	// Text-like inputs with no value.
	const textExpr = `//input[@required][not(@type='radio' or @type='checkbox' or @type='file' or @type='hidden')]`
	for _, in := range htmlquery.Find(root, textExpr) {
		if domutil.Attr(in, "value") == "" {
			return domutil.FieldID(in)
		}
	}

	// Required radio groups with nothing checked.
	checkedByName := map[string]bool{}
	requiredByName := map[string]*html.Node{}
	for _, r := range htmlquery.Find(root, `//input[@type='radio']`) {
		name := domutil.Attr(r, "name")
		if domutil.HasAttr(r, "checked") {
			checkedByName[name] = true
		}
		if domutil.HasAttr(r, "required") {
			requiredByName[name] = r
		}
	}
	for name, node := range requiredByName {
		if !checkedByName[name] {
			return domutil.FieldID(node)
		}
	}

	// Required checkboxes left unchecked.
	for _, cb := range htmlquery.Find(root, `//input[@type='checkbox'][@required]`) {
		if !domutil.HasAttr(cb, "checked") {
			return domutil.FieldID(cb)
		}
	}

	// Required selects with no selected, non-empty option.
	for _, sel := range htmlquery.Find(root, `//select[@required]`) {
		selected := htmlquery.FindOne(sel, `.//option[@selected][normalize-space(@value)!='' or normalize-space(text())!='']`)
		if selected == nil {
			return domutil.FieldID(sel)
		}
	}

	// Required textareas with no content.
	for _, ta := range htmlquery.Find(root, `//textarea[@required]`) {
		if domutil.CleanText(htmlquery.InnerText(ta)) == "" {
			return domutil.FieldID(ta)
		}
	}

	return ""
}
