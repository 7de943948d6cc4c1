// Package screening finds and normalizes every employer-authored question on
// the current page, regardless of control type. Employers author these forms
// independently, so no single control pattern covers all cases: the detector
// runs a fixed, ordered set of structural scans and merges the results.
package screening

import (
	"fmt"
	"sort"

	"github.com/antchfx/htmlquery"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/api/schemas"
	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/internal/domutil"
)

// Detector scans immutable snapshots for screening questions.
type Detector struct {
	log *zap.Logger
}

// NewDetector creates a detector.
func NewDetector(logger *zap.Logger) *Detector {
	return &Detector{log: logger.Named("screening")}
}

// DetectQuestions runs the scans in their fixed order, merges the results,
// de-duplicates by document position so a control matched by two strategies
// is reported once, and returns questions in document order. Downstream
// components rely on that ordering for deterministic answer-then-validate
// sequencing.
func (d *Detector) DetectQuestions(snap *schemas.Snapshot) []schemas.ScreeningQuestion {
	idx := newDocIndex(snap.Root)

	var questions []schemas.ScreeningQuestion
	seen := map[*html.Node]bool{}
	seenRadioGroups := map[string]bool{}

	add := func(q schemas.ScreeningQuestion, node *html.Node) {
		if seen[node] {
			return
		}
		seen[node] = true
		questions = append(questions, q)
	}

	// 1. Mutually-exclusive option groups (radios, grouped by name). These
	// run first so group semantics win over per-control scans.
	for _, input := range htmlquery.Find(snap.Root, `//input[@type='radio']`) {
		name := domutil.Attr(input, "name")
		key := name
		if key == "" {
			key = fmt.Sprintf("radio-pos-%d", idx.position(input))
		}
		if seenRadioGroups[key] {
			seen[input] = true
			continue
		}
		seenRadioGroups[key] = true

		group := radioGroup(snap.Root, input, name)
		add(schemas.ScreeningQuestion{
			QuestionID:    questionID(input, idx),
			RawLabel:      groupLabel(input),
			Kind:          schemas.ControlRadioGroup,
			Required:      anyRequired(group),
			Options:       radioOptions(group),
			GroupName:     name,
			Selector:      domutil.BuildXPath(input),
			DocumentOrder: idx.position(input),
		}, input)
		for _, g := range group {
			seen[g] = true
		}
	}

	// 2. Enumerable dropdowns.
	for _, sel := range htmlquery.Find(snap.Root, `//select`) {
		add(schemas.ScreeningQuestion{
			QuestionID:    questionID(sel, idx),
			RawLabel:      controlLabel(sel),
			Kind:          schemas.ControlSelect,
			Required:      isRequired(sel),
			Options:       selectOptions(sel),
			Selector:      domutil.BuildXPath(sel),
			DocumentOrder: idx.position(sel),
		}, sel)
	}

	// 3. Free-text areas.
	for _, ta := range htmlquery.Find(snap.Root, `//textarea`) {
		add(schemas.ScreeningQuestion{
			QuestionID:    questionID(ta, idx),
			RawLabel:      controlLabel(ta),
			Kind:          schemas.ControlTextArea,
			Required:      isRequired(ta),
			Selector:      domutil.BuildXPath(ta),
			DocumentOrder: idx.position(ta),
		}, ta)
	}

	// 4. File-request controls.
	for _, f := range htmlquery.Find(snap.Root, `//input[@type='file']`) {
		add(schemas.ScreeningQuestion{
			QuestionID:    questionID(f, idx),
			RawLabel:      controlLabel(f),
			Kind:          schemas.ControlFile,
			Required:      isRequired(f),
			Selector:      domutil.BuildXPath(f),
			DocumentOrder: idx.position(f),
		}, f)
	}

	// 5. Checkboxes.
	for _, cb := range htmlquery.Find(snap.Root, `//input[@type='checkbox']`) {
		add(schemas.ScreeningQuestion{
			QuestionID:    questionID(cb, idx),
			RawLabel:      controlLabel(cb),
			Kind:          schemas.ControlCheckbox,
			Required:      isRequired(cb),
			Selector:      domutil.BuildXPath(cb),
			DocumentOrder: idx.position(cb),
		}, cb)
	}

	// 6. Range sliders.
	for _, rg := range htmlquery.Find(snap.Root, `//input[@type='range']`) {
		add(schemas.ScreeningQuestion{
			QuestionID:    questionID(rg, idx),
			RawLabel:      controlLabel(rg),
			Kind:          schemas.ControlRange,
			Required:      isRequired(rg),
			Selector:      domutil.BuildXPath(rg),
			DocumentOrder: idx.position(rg),
		}, rg)
	}

	// 7. Plain text-like inputs, last so the specific scans claim theirs
	// first.
	const textInputs = `//input[not(@type) or @type='text' or @type='email' or @type='tel' or @type='url' or @type='number' or @type='date']`
	for _, in := range htmlquery.Find(snap.Root, textInputs) {
		if isHidden(in) {
			continue
		}
		add(schemas.ScreeningQuestion{
			QuestionID:    questionID(in, idx),
			RawLabel:      controlLabel(in),
			Kind:          schemas.ControlText,
			Required:      isRequired(in),
			Selector:      domutil.BuildXPath(in),
			DocumentOrder: idx.position(in),
		}, in)
	}

	sort.SliceStable(questions, func(i, j int) bool {
		return questions[i].DocumentOrder < questions[j].DocumentOrder
	})

	d.log.Debug("Detected screening questions",
		zap.String("url", snap.URL),
		zap.Int("count", len(questions)))
	return questions
}

// -- Document position index --

type docIndex struct {
	pos map[*html.Node]int
}

func newDocIndex(root *html.Node) *docIndex {
	idx := &docIndex{pos: map[*html.Node]int{}}
	n := 0
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		idx.pos[node] = n
		n++
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return idx
}

func (d *docIndex) position(n *html.Node) int { return d.pos[n] }

// -- Control predicates --

func isRequired(n *html.Node) bool {
	return domutil.HasAttr(n, "required") || domutil.Attr(n, "aria-required") == "true"
}

func anyRequired(nodes []*html.Node) bool {
	for _, n := range nodes {
		if isRequired(n) {
			return true
		}
	}
	return false
}

func isHidden(n *html.Node) bool {
	if domutil.Attr(n, "type") == "hidden" || domutil.HasAttr(n, "hidden") {
		return true
	}
	return domutil.Attr(n, "aria-hidden") == "true"
}

func questionID(n *html.Node, idx *docIndex) string {
	if name := domutil.Attr(n, "name"); name != "" {
		return name
	}
	if id := domutil.Attr(n, "id"); id != "" {
		return id
	}
	return fmt.Sprintf("q-%d", idx.position(n))
}

// -- Label resolution --

// controlLabel resolves a control's human-readable label, trying in order:
// label[for=id], a wrapping <label>, aria-label, the fieldset legend, and
// finally the nearest preceding text.
func controlLabel(n *html.Node) string {
	if id := domutil.Attr(n, "id"); id != "" {
		expr := fmt.Sprintf(`//label[@for=%s]`, domutil.XPathLiteral(id))
		if l := htmlquery.FindOne(domutil.Root(n), expr); l != nil {
			return domutil.CleanText(htmlquery.InnerText(l))
		}
	}
	if l := domutil.Ancestor(n, "label"); l != nil {
		return domutil.CleanText(htmlquery.InnerText(l))
	}
	if al := domutil.Attr(n, "aria-label"); al != "" {
		return domutil.CleanText(al)
	}
	if fs := domutil.Ancestor(n, "fieldset"); fs != nil {
		if lg := htmlquery.FindOne(fs, `.//legend`); lg != nil {
			return domutil.CleanText(htmlquery.InnerText(lg))
		}
	}
	return precedingText(n)
}

// groupLabel resolves the shared question text for a radio group: the
// fieldset legend, an aria-labelled group container, or the text preceding
// the first option.
func groupLabel(first *html.Node) string {
	if fs := domutil.Ancestor(first, "fieldset"); fs != nil {
		if lg := htmlquery.FindOne(fs, `.//legend`); lg != nil {
			return domutil.CleanText(htmlquery.InnerText(lg))
		}
	}
	for p := first.Parent; p != nil; p = p.Parent {
		role := domutil.Attr(p, "role")
		if role == "radiogroup" || role == "group" {
			if al := domutil.Attr(p, "aria-label"); al != "" {
				return domutil.CleanText(al)
			}
		}
	}
	return precedingText(first)
}

// optionLabel resolves the text of one radio option.
func optionLabel(n *html.Node) string {
	if id := domutil.Attr(n, "id"); id != "" {
		expr := fmt.Sprintf(`//label[@for=%s]`, domutil.XPathLiteral(id))
		if l := htmlquery.FindOne(domutil.Root(n), expr); l != nil {
			return domutil.CleanText(htmlquery.InnerText(l))
		}
	}
	if l := domutil.Ancestor(n, "label"); l != nil {
		return domutil.CleanText(htmlquery.InnerText(l))
	}
	return domutil.Attr(n, "value")
}

// precedingText walks backwards through siblings (and up) for the nearest
// non-empty text run, the catch-all for unlabeled fields.
func precedingText(n *html.Node) string {
	for cur := n; cur != nil; cur = cur.Parent {
		for sib := cur.PrevSibling; sib != nil; sib = sib.PrevSibling {
			if t := domutil.CleanText(htmlquery.InnerText(sib)); t != "" {
				return t
			}
		}
	}
	return ""
}

// -- Options --

func selectOptions(sel *html.Node) []schemas.QuestionOption {
	var opts []schemas.QuestionOption
	for _, o := range htmlquery.Find(sel, `.//option`) {
		label := domutil.CleanText(htmlquery.InnerText(o))
		value := domutil.Attr(o, "value")
		if value == "" {
			if domutil.HasAttr(o, "value") {
				continue // explicit empty value marks a placeholder row
			}
			value = label
		}
		if value == "" {
			continue
		}
		opts = append(opts, schemas.QuestionOption{
			Value:    value,
			Label:    label,
			Disabled: domutil.HasAttr(o, "disabled"),
		})
	}
	return opts
}

func radioGroup(root, first *html.Node, name string) []*html.Node {
	if name == "" {
		return []*html.Node{first}
	}
	expr := fmt.Sprintf(`//input[@type='radio'][@name=%s]`, domutil.XPathLiteral(name))
	return htmlquery.Find(root, expr)
}

func radioOptions(group []*html.Node) []schemas.QuestionOption {
	var opts []schemas.QuestionOption
	for _, g := range group {
		value := domutil.Attr(g, "value")
		label := optionLabel(g)
		if value == "" {
			value = label
		}
		opts = append(opts, schemas.QuestionOption{
			Value:    value,
			Label:    label,
			Disabled: domutil.HasAttr(g, "disabled"),
		})
	}
	return opts
}
