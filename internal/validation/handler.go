// Package validation detects field-level rejections after a submission
// attempt and proposes corrections for a narrow, known set of field
// semantics. Portals are inconsistent about which rejection signal they
// expose, so detection runs several independent strategies and merges the
// results with OR semantics: any strategy reporting a failure counts.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/api/schemas"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/domutil"
)

// Handler detects and corrects validation failures.
type Handler struct {
	log *zap.Logger
}

// NewHandler creates a validation handler.
func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{log: logger.Named("validation")}
}

// DetectFailures scans the snapshot with every strategy in fixed order and
// merges the results, de-duplicating by field. The first strategy to flag a
// field is the one recorded on the failure.
func (h *Handler) DetectFailures(snap *schemas.Snapshot) []schemas.ValidationFailure {
	var failures []schemas.ValidationFailure
	seen := map[string]bool{}

	add := func(f schemas.ValidationFailure) {
		if f.FieldID == "" || seen[f.FieldID] {
			return
		}
		seen[f.FieldID] = true
		failures = append(failures, f)
	}

	for _, f := range h.scanInvalidState(snap.Root) {
		add(f)
	}
	for _, f := range h.scanErrorStyling(snap.Root) {
		add(f)
	}
	for _, f := range h.scanAlertRoles(snap.Root) {
		add(f)
	}

	if len(failures) > 0 {
		h.log.Debug("Detected validation failures",
			zap.String("url", snap.URL),
			zap.Int("count", len(failures)))
	}
	return failures
}

// scanInvalidState matches explicit invalid-state markup on the control
// itself.
func (h *Handler) scanInvalidState(root *html.Node) []schemas.ValidationFailure {
	const expr = `//*[self::input or self::select or self::textarea][@aria-invalid='true' or @data-invalid='true' or @data-invalid='']`
	var out []schemas.ValidationFailure
	for _, n := range htmlquery.Find(root, expr) {
		out = append(out, schemas.ValidationFailure{
			FieldID:     domutil.FieldID(n),
			Selector:    domutil.BuildXPath(n),
			Message:     describedByText(root, n),
			DetectedVia: schemas.DetectedViaInvalidState,
		})
	}
	return out
}

// scanErrorStyling matches error-styled elements adjacent to a field. The
// control is resolved from the error element's container.
func (h *Handler) scanErrorStyling(root *html.Node) []schemas.ValidationFailure {
	const expr = `//*[contains(concat(' ', normalize-space(@class), ' '), ' error ') or contains(concat(' ', normalize-space(@class), ' '), ' field-error ') or contains(concat(' ', normalize-space(@class), ' '), ' invalid-feedback ')]`
	var out []schemas.ValidationFailure
	for _, errNode := range htmlquery.Find(root, expr) {
		msg := domutil.CleanText(htmlquery.InnerText(errNode))
		if msg == "" {
			continue
		}
		control := adjacentControl(errNode)
		if control == nil {
			continue
		}
		out = append(out, schemas.ValidationFailure{
			FieldID:     domutil.FieldID(control),
			Selector:    domutil.BuildXPath(control),
			Message:     msg,
			DetectedVia: schemas.DetectedViaErrorStyling,
		})
	}
	return out
}

// scanAlertRoles matches alert-role announcements. The field is resolved
// through an aria-describedby back-reference when one exists, otherwise by
// container adjacency.
func (h *Handler) scanAlertRoles(root *html.Node) []schemas.ValidationFailure {
	var out []schemas.ValidationFailure
	for _, alert := range htmlquery.Find(root, `//*[@role='alert']`) {
		msg := domutil.CleanText(htmlquery.InnerText(alert))
		if msg == "" {
			continue
		}
		var control *html.Node
		if id := domutil.Attr(alert, "id"); id != "" {
			expr := fmt.Sprintf(
				`//*[self::input or self::select or self::textarea][contains(concat(' ', normalize-space(@aria-describedby), ' '), concat(' ', %s, ' '))]`,
				domutil.XPathLiteral(id))
			control = htmlquery.FindOne(root, expr)
		}
		if control == nil {
			control = adjacentControl(alert)
		}
		if control == nil {
			continue
		}
		out = append(out, schemas.ValidationFailure{
			FieldID:     domutil.FieldID(control),
			Selector:    domutil.BuildXPath(control),
			Message:     msg,
			DetectedVia: schemas.DetectedViaAlertRole,
		})
	}
	return out
}

// adjacentControl finds the form control an error element refers to:
// preceding siblings first, then any control sharing the container, walking
// up at most two levels.
func adjacentControl(errNode *html.Node) *html.Node {
	for sib := errNode.PrevSibling; sib != nil; sib = sib.PrevSibling {
		if c := controlIn(sib); c != nil {
			return c
		}
	}
	container := errNode.Parent
	for depth := 0; container != nil && depth < 2; depth++ {
		if c := htmlquery.FindOne(container, `.//input[not(@type='hidden')] | .//select | .//textarea`); c != nil {
			return c
		}
		container = container.Parent
	}
	return nil
}

func controlIn(n *html.Node) *html.Node {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "input", "select", "textarea":
			if domutil.Attr(n, "type") != "hidden" {
				return n
			}
		default:
			return htmlquery.FindOne(n, `.//input[not(@type='hidden')] | .//select | .//textarea`)
		}
	}
	return nil
}

// describedByText resolves a control's aria-describedby message, if any.
func describedByText(root, control *html.Node) string {
	ids := strings.Fields(domutil.Attr(control, "aria-describedby"))
	for _, id := range ids {
		expr := fmt.Sprintf(`//*[@id=%s]`, domutil.XPathLiteral(id))
		if n := htmlquery.FindOne(root, expr); n != nil {
			if t := domutil.CleanText(htmlquery.InnerText(n)); t != "" {
				return t
			}
		}
	}
	return ""
}

// -- Corrections --

var (
	nonDigits  = regexp.MustCompile(`\D`)
	schemeRe   = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)
	phoneHints = []string{"phone", "tel", "mobile", "cell"}
	emailHints = []string{"email", "e-mail"}
	urlHints   = []string{"url", "website", "linkedin", "portfolio", "site"}
)

// SuggestCorrection applies format-specific heuristics for the known field
// semantics (phone, email, URL normalization) to the previously submitted
// raw value, recording the suggestion on the failure. All other failures
// pass through with no suggestion.
func (h *Handler) SuggestCorrection(failure *schemas.ValidationFailure, raw string) *string {
	semantic := strings.ToLower(failure.FieldID + " " + failure.Message)

	switch {
	case containsAny(semantic, phoneHints):
		failure.SuggestedCorrection = correctPhone(raw)
	case containsAny(semantic, emailHints):
		failure.SuggestedCorrection = correctEmail(raw)
	case containsAny(semantic, urlHints):
		failure.SuggestedCorrection = correctURL(raw)
	}
	return failure.SuggestedCorrection
}

func containsAny(s string, hints []string) bool {
	for _, hint := range hints {
		if strings.Contains(s, hint) {
			return true
		}
	}
	return false
}

// correctPhone reformats a NANP number as (NXX) NXX-XXXX.
func correctPhone(raw string) *string {
	digits := nonDigits.ReplaceAllString(raw, "")
	if len(digits) == 11 && strings.HasPrefix(digits, "1") {
		digits = digits[1:]
	}
	if len(digits) != 10 {
		return nil
	}
	formatted := fmt.Sprintf("(%s) %s-%s", digits[0:3], digits[3:6], digits[6:10])
	if formatted == raw {
		return nil
	}
	return &formatted
}

func correctEmail(raw string) *string {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == raw || !strings.Contains(normalized, "@") {
		return nil
	}
	return &normalized
}

func correctURL(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	if schemeRe.MatchString(trimmed) {
		if trimmed == raw {
			return nil
		}
		return &trimmed
	}
	normalized := "https://" + trimmed
	return &normalized
}
