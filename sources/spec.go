// Package sources describes the retail sites shopscout can search: where
// their search page lives, which markup holds product cards, how each
// product field is read, and which anti-bot pages they are known to serve.
package sources

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/andybalholm/cascadia"

	"github.com/use-agent/shopscout/models"
)

// QueryPlaceholder marks where the encoded search term goes in a search URL template.
const QueryPlaceholder = "{query}"

// reservedIDs collide with top-level keys of the aggregate payload.
var reservedIDs = map[string]bool{"timestamp": true, "error": true}

// Spec is the static description of one source. It is loaded once per
// process and read-only afterwards.
type Spec struct {
	ID          string `yaml:"id"`
	Name        string `yaml:"name"`
	Origin      string `yaml:"origin"`
	URLTemplate string `yaml:"search_url"`

	// Container matches one node per product card, in document order.
	Container string `yaml:"container"`

	// Ready is the selector whose presence signals results have rendered.
	// Defaults to Container.
	Ready string `yaml:"ready"`

	// Cap bounds the number of records returned for one query.
	Cap int `yaml:"cap"`

	Fields       map[string]FieldRule `yaml:"fields"`
	Challenge    *ChallengeDetector   `yaml:"challenge,omitempty"`
	Interstitial *InterstitialDetector `yaml:"interstitial,omitempty"`

	matchers map[string]cascadia.Selector
	origin   *url.URL
}

// FieldRule reads one ProductRecord field from inside a container node.
type FieldRule struct {
	// Selector is evaluated relative to the container; the first match wins.
	Selector string `yaml:"selector"`

	// Attr names the attribute to read. Empty means the node's text content.
	Attr string `yaml:"attr"`

	// Default replaces a missing value. Nil means models.NotAvailable.
	Default *string `yaml:"default"`

	// URL resolves the value against the source origin.
	URL bool `yaml:"url"`

	// Suffix is appended to a non-empty value.
	Suffix string `yaml:"suffix"`

	// Parts, when set, builds the value by concatenating each part's value.
	// Selector and Attr are ignored.
	Parts []FieldRule `yaml:"parts"`
}

// Fallback returns the value a missing field takes.
func (r FieldRule) Fallback() string {
	if r.Default != nil {
		return *r.Default
	}
	return models.NotAvailable
}

// ChallengeDetector recognises bot-challenge pages. A page is a challenge
// when its lowercased title contains a title marker, when its title or body
// text contains a marker, or when Selector matches.
//
// Body text includes product listings, so Markers should be phrases only a
// challenge page would carry. Single words such as "robot" belong in
// TitleMarkers.
type ChallengeDetector struct {
	TitleMarkers []string `yaml:"title_markers"`
	Markers      []string `yaml:"markers"`
	Selector     string   `yaml:"selector"`
}

// Matches reports whether the page text carries any challenge marker.
func (d *ChallengeDetector) Matches(title, body string) bool {
	if d == nil {
		return false
	}
	title = strings.ToLower(title)
	return containsAny(title, d.TitleMarkers) ||
		containsAny(title+"\n"+strings.ToLower(body), d.Markers)
}

func containsAny(haystack string, markers []string) bool {
	for _, m := range markers {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" && strings.Contains(haystack, m) {
			return true
		}
	}
	return false
}

// InterstitialDetector recognises "continue shopping" style gates that
// stand between the search request and the results page.
type InterstitialDetector struct {
	Gate     string `yaml:"gate"`
	Continue string `yaml:"continue"`
}

// ReadySelector returns the selector awaited before extraction.
func (s *Spec) ReadySelector() string {
	if s.Ready != "" {
		return s.Ready
	}
	return s.Container
}

// SearchURL builds the search page URL for a normalized query.
func (s *Spec) SearchURL(query string) (string, error) {
	q, err := NormalizeQuery(query)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(s.URLTemplate, QueryPlaceholder, url.QueryEscape(q)), nil
}

// Resolve turns ref into an absolute URL against the source origin.
// Empty refs stay empty; refs that cannot be parsed are returned as-is.
func (s *Spec) Resolve(ref string) string {
	if ref == "" {
		return ""
	}
	base := s.origin
	if base == nil {
		var err error
		if base, err = url.Parse(s.Origin); err != nil {
			return ref
		}
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

// Matcher returns the compiled form of sel. Selectors seen during Validate
// are served from the precompiled set.
func (s *Spec) Matcher(sel string) (cascadia.Selector, error) {
	if m, ok := s.matchers[sel]; ok {
		return m, nil
	}
	return cascadia.Compile(sel)
}

// Validate checks the spec and precompiles every selector it names.
func (s *Spec) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("source id is required")
	}
	if reservedIDs[s.ID] {
		return fmt.Errorf("source id %q is reserved", s.ID)
	}
	origin, err := url.Parse(s.Origin)
	if err != nil || origin.Scheme == "" || origin.Host == "" {
		return fmt.Errorf("source %s: origin %q must be an absolute URL", s.ID, s.Origin)
	}
	if !strings.Contains(s.URLTemplate, QueryPlaceholder) {
		return fmt.Errorf("source %s: search_url must contain %s", s.ID, QueryPlaceholder)
	}
	if s.Cap < 1 {
		return fmt.Errorf("source %s: cap must be at least 1, got %d", s.ID, s.Cap)
	}
	if _, ok := s.Fields[models.FieldName]; !ok {
		return fmt.Errorf("source %s: a %q field rule is required", s.ID, models.FieldName)
	}

	s.origin = origin
	s.matchers = make(map[string]cascadia.Selector)

	if s.Container == "" {
		return fmt.Errorf("source %s: container selector is required", s.ID)
	}
	selectors := []string{s.Container, s.ReadySelector()}
	for name, rule := range s.Fields {
		if !models.IsKnownField(name) {
			return fmt.Errorf("source %s: unknown field %q", s.ID, name)
		}
		sels, err := ruleSelectors(rule)
		if err != nil {
			return fmt.Errorf("source %s: field %s: %w", s.ID, name, err)
		}
		selectors = append(selectors, sels...)
	}
	if s.Challenge != nil && s.Challenge.Selector != "" {
		selectors = append(selectors, s.Challenge.Selector)
	}
	if d := s.Interstitial; d != nil {
		if d.Gate == "" || d.Continue == "" {
			return fmt.Errorf("source %s: interstitial needs both gate and continue selectors", s.ID)
		}
		selectors = append(selectors, d.Gate, d.Continue)
	}

	for _, sel := range selectors {
		if _, done := s.matchers[sel]; done {
			continue
		}
		m, err := cascadia.Compile(sel)
		if err != nil {
			return fmt.Errorf("source %s: invalid selector %q: %w", s.ID, sel, err)
		}
		s.matchers[sel] = m
	}
	return nil
}

func ruleSelectors(rule FieldRule) ([]string, error) {
	if len(rule.Parts) == 0 {
		if strings.TrimSpace(rule.Selector) == "" {
			return nil, fmt.Errorf("selector is required")
		}
		return []string{rule.Selector}, nil
	}
	var out []string
	for _, p := range rule.Parts {
		if len(p.Parts) > 0 {
			return nil, fmt.Errorf("parts cannot nest")
		}
		sels, err := ruleSelectors(p)
		if err != nil {
			return nil, err
		}
		out = append(out, sels...)
	}
	return out, nil
}

// NormalizeQuery trims q and collapses internal whitespace runs to a single
// space. Blank input yields models.ErrInvalidQuery.
func NormalizeQuery(q string) (string, error) {
	q = strings.Join(strings.Fields(q), " ")
	if q == "" {
		return "", models.ErrInvalidQuery
	}
	return q, nil
}
