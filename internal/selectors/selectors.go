// Package selectors loads the versioned, per-portal mapping of page-identity
// signals and control locators. The mapping is supplied externally and
// treated as data, not code: a stale or missing mapping degrades to an
// unresolved page flagged for review, never a crash.
package selectors

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Steve-Merlin-Projecct/Merlin-2-sub002/api/schemas"
)

// PageRule identifies one page of a portal's application flow. A page is
// only considered matched when its URL pattern and at least one structural
// marker agree; a single signal can be absent or duplicated across pages.
type PageRule struct {
	Key        string   `yaml:"key"`
	Kind       string   `yaml:"kind"` // form, review, confirmation
	URLPattern string   `yaml:"url_pattern"`
	Markers    []string `yaml:"markers"` // XPath expressions
	Final      bool     `yaml:"final"`

	urlRe *regexp.Regexp
}

// Portal is the selector mapping for one portal, versioned so stale
// configurations can be identified in failure reports.
type Portal struct {
	Name    string   `yaml:"portal"`
	Version string   `yaml:"version"`
	Hosts   []string `yaml:"hosts"`
	Pages   []PageRule `yaml:"pages"`
	// NextControls and SubmitControls are XPath candidates tried in order.
	NextControls   []string `yaml:"next_controls"`
	SubmitControls []string `yaml:"submit_controls"`
	// UploadControls locate the visible upload affordances per document
	// kind.
	UploadControls map[string]string `yaml:"upload_controls"`
}

// Registry holds every loaded portal mapping, keyed by host.
type Registry struct {
	byHost map[string]*Portal
	log    *zap.Logger
}

// Load reads every *.yaml mapping under dir into a registry.
func Load(dir string, logger *zap.Logger) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read selector config dir %q: %w", dir, err)
	}

	r := &Registry{byHost: map[string]*Portal{}, log: logger.Named("selectors")}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		p, err := loadPortal(path)
		if err != nil {
			return nil, fmt.Errorf("selector config %q: %w", path, err)
		}
		for _, h := range p.Hosts {
			r.byHost[strings.ToLower(h)] = p
		}
		r.log.Info("Loaded portal selector mapping",
			zap.String("portal", p.Name),
			zap.String("version", p.Version),
			zap.Int("pages", len(p.Pages)))
	}
	return r, nil
}

// NewRegistry builds a registry from already-parsed portals. Tests and
// embedders use this to avoid the filesystem.
func NewRegistry(logger *zap.Logger, portals ...*Portal) (*Registry, error) {
	r := &Registry{byHost: map[string]*Portal{}, log: logger.Named("selectors")}
	for _, p := range portals {
		if err := p.compile(); err != nil {
			return nil, err
		}
		for _, h := range p.Hosts {
			r.byHost[strings.ToLower(h)] = p
		}
	}
	return r, nil
}

// ForHost returns the portal mapping for the given host, if one is loaded.
func (r *Registry) ForHost(host string) (*Portal, bool) {
	p, ok := r.byHost[strings.ToLower(host)]
	return p, ok
}

func loadPortal(path string) (*Portal, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p Portal
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}
	if err := p.compile(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Portal) compile() error {
	if p.Name == "" {
		return fmt.Errorf("portal name is required")
	}
	if len(p.Hosts) == 0 {
		return fmt.Errorf("portal %q declares no hosts", p.Name)
	}
	for i := range p.Pages {
		rule := &p.Pages[i]
		if rule.Key == "" {
			return fmt.Errorf("portal %q: page rule %d has no key", p.Name, i)
		}
		re, err := regexp.Compile(rule.URLPattern)
		if err != nil {
			return fmt.Errorf("portal %q page %q: bad url_pattern: %w", p.Name, rule.Key, err)
		}
		rule.urlRe = re
	}
	return nil
}

// MatchURL reports whether the rule's URL pattern matches.
func (pr *PageRule) MatchURL(url string) bool {
	if pr.urlRe == nil {
		return false
	}
	return pr.urlRe.MatchString(url)
}

// PageKind translates the rule's kind string into the schema enum.
func (pr *PageRule) PageKind() schemas.PageKind {
	switch pr.Kind {
	case "form":
		return schemas.PageForm
	case "review":
		return schemas.PageReview
	case "confirmation":
		return schemas.PageConfirmation
	default:
		return schemas.PageUnknown
	}
}
