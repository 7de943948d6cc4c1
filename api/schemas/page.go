package schemas

import (
	"strings"
	"time"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// -- Page Schemas --

// PageKind classifies what role a page plays in the application flow.
type PageKind string

const (
	PageUnknown      PageKind = "unknown"
	PageForm         PageKind = "form"
	PageReview       PageKind = "review"
	PageConfirmation PageKind = "confirmation"
)

// PageIdentity is the classification of the active page. Identification
// always combines the URL pattern with structural content markers; either
// signal alone can be absent or duplicated across pages.
type PageIdentity struct {
	// Key is the portal-configuration key of the matched page rule, or
	// empty when the page is unresolved.
	Key   string   `json:"key"`
	Kind  PageKind `json:"kind"`
	Final bool     `json:"final"`
	// MatchedSignals lists which signals agreed (url, markers), kept for
	// operator review of structural failures.
	MatchedSignals []string `json:"matched_signals,omitempty"`
}

// Unresolved reports whether no page rule matched the snapshot.
func (p PageIdentity) Unresolved() bool { return p.Key == "" }

// ControlRef points at a single interactable control on the page.
type ControlRef struct {
	Selector string `json:"selector"`
	Label    string `json:"label,omitempty"`
	// Submit marks a submit/finish action as opposed to continue/next.
	Submit bool `json:"submit"`
}

// Snapshot is an immutable capture of the page at one instant. Every step
// takes a snapshot as input and returns a decision; no component holds a
// live DOM handle across steps, which keeps the state machine testable with
// fixture snapshots.
type Snapshot struct {
	URL        string
	Body       string
	Root       *html.Node
	CapturedAt time.Time
}

// ParseSnapshot parses raw page HTML into an immutable snapshot.
func ParseSnapshot(url, body string, at time.Time) (*Snapshot, error) {
	root, err := htmlquery.Parse(strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	return &Snapshot{URL: url, Body: body, Root: root, CapturedAt: at}, nil
}
