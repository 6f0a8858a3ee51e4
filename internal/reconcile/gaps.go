package reconcile

import "weft/internal/graph"

// FindGaps returns the elements the Matcher could not or should not have
// claimed: every non-link kind (the text view never reports those) plus
// every link element left unclaimed. Together with the claimed set this
// covers the full element set exactly once.
func FindGaps(elements []graph.Element, records []MatchRecord) []graph.Element {
	claimed := Claimed(records)
	missing := make([]graph.Element, 0, len(elements))
	for _, el := range elements {
		if el.Kind == graph.KindLink && claimed[el.ID] {
			continue
		}
		missing = append(missing, el)
	}
	return missing
}
