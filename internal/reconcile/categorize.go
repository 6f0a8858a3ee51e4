package reconcile

import (
	"fmt"
	"regexp"
	"strings"

	"weft/internal/graph"
)

// adPattern matches "ad"/"ads" as a token within a selector ("#ad-banner",
// ".ads") without firing on words that merely contain the letters, like
// "header" or "loading".
var adPattern = regexp.MustCompile(`(^|[^a-z])ads?([^a-z]|$)`)

// noisePatterns are checked as plain substrings of the lowercased selector.
var noisePatterns = []string{"track", "analytics", "pixel", "sponsor"}

// Categorize classifies one unmatched element. Rules are evaluated
// top-to-bottom with first match winning; the order matters because the
// rules are not mutually exclusive.
func Categorize(el graph.Element, denylist []string) Category {
	if !el.Visible {
		return CategoryIgnore
	}
	if el.Text == "" && el.Kind != graph.KindInput {
		return CategoryIgnore
	}
	if noiseSignature(el.Selector, denylist) {
		return CategoryIgnore
	}
	for _, role := range el.Ancestry {
		if role == "header" || role == "nav" {
			return CategoryNavigation
		}
	}
	for _, role := range el.Ancestry {
		if role == "footer" {
			return CategorySecondary
		}
	}
	switch el.Kind {
	case graph.KindInput, graph.KindTextarea, graph.KindSelect:
		return CategoryPrimary
	}
	return CategoryUnknown
}

func noiseSignature(selector string, denylist []string) bool {
	s := strings.ToLower(selector)
	if adPattern.MatchString(s) {
		return true
	}
	for _, p := range noisePatterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	for _, p := range denylist {
		if p != "" && strings.Contains(s, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// Buckets is the Categorizer's output for one missing set: default
// placements for the low-ambiguity categories, the unknown batch that
// needs the Disambiguator, and the ids that were dropped.
type Buckets struct {
	Placements []Placement
	Unknown    []graph.Element
	Ignored    []string
}

// CategorizeAll applies Categorize to every missing element, in order.
// navigation, secondary, and primary elements receive a default placement
// at the end of the document immediately; only unknown elements are
// forwarded to the Disambiguator.
func CategorizeAll(missing []graph.Element, denylist []string, lineCount int) Buckets {
	lastLine := lineCount - 1
	if lastLine < 0 {
		lastLine = 0
	}

	var b Buckets
	for _, el := range missing {
		switch Categorize(el, denylist) {
		case CategoryIgnore:
			b.Ignored = append(b.Ignored, el.ID)
		case CategoryUnknown:
			b.Unknown = append(b.Unknown, el)
		default:
			b.Placements = append(b.Placements, DefaultPlacement(el, lastLine))
		}
	}
	return b
}

// DefaultPlacement appends an element after the given line with the
// standard label.
func DefaultPlacement(el graph.Element, line int) Placement {
	return Placement{
		ElementID: el.ID,
		Show:      true,
		Line:      line,
		Position:  PositionAfter,
		Label:     labelFor(el),
	}
}

// labelFor builds the "[N:text-or-kind]" label, trimmed to keep inserted
// markers from dominating a line.
func labelFor(el graph.Element) string {
	text := el.Text
	if text == "" {
		text = el.Kind
	}
	text = strings.Map(func(r rune) rune {
		if r == '[' || r == ']' || r == '\n' {
			return -1
		}
		return r
	}, text)
	if runes := []rune(text); len(runes) > 40 {
		text = string(runes[:40])
	}
	return fmt.Sprintf("[N:%s]", text)
}
