// Package reconcile merges the two independently produced views of a page
// (the linearized text rendering and the interactive element graph) into
// one canonical numbered mapping from small integers to concrete actions.
package reconcile

// MatchRecord is the Matcher's verdict for one text-view link.
type MatchRecord struct {
	ElementID string
	Ordinal   int
	Matched   bool
}

// Category classifies one unmatched element. A pure function of the
// element and its ancestry, never of other elements.
type Category string

const (
	CategoryNavigation Category = "navigation"
	CategoryPrimary    Category = "primary"
	CategorySecondary  Category = "secondary"
	CategoryIgnore     Category = "ignore"
	CategoryUnknown    Category = "unknown"
)

// Insertion positions relative to the target line.
const (
	PositionBefore = "before"
	PositionAfter  = "after"
)

// Placement decides whether and where one element surfaces in the text.
// Labels carry the "N" placeholder until the Assembler assigns the final
// reference number.
type Placement struct {
	ElementID string
	Show      bool
	Line      int
	Position  string
	Label     string
}

// Actions a mapping entry can translate into.
const (
	ActionNavigate = "navigate"
	ActionClick    = "click"
	ActionFill     = "fill"
	ActionSubmit   = "submit"
)

// Entry is one row of the canonical mapping. Target is a URL for navigate
// actions and an element selector for everything else.
type Entry struct {
	Ref    int
	Kind   string
	Action string
	Target string
	Text   string
}

// Mapping is the ordered reference table. Refs are contiguous 1..k; the
// entry for ref r sits at index r-1.
type Mapping []Entry

// Get returns the entry for a reference number.
func (m Mapping) Get(ref int) (Entry, bool) {
	if ref < 1 || ref > len(m) {
		return Entry{}, false
	}
	return m[ref-1], true
}

// RenderedPage is the immutable result of one pipeline run.
type RenderedPage struct {
	URL     string
	Title   string
	Text    []string
	Mapping Mapping
}
