package reconcile

import (
	"sort"

	"weft/internal/graph"
	"weft/internal/textview"
)

// Match pairs text-view links with link elements by target identity.
// Greedy bipartite assignment: links are taken in source order and each
// claims the first unclaimed element whose href equals its URL, scanning
// in document order so duplicate hrefs resolve deterministically. A link
// with no available match is recorded unmatched; that is not an error.
func Match(links []textview.Link, elements []graph.Element) []MatchRecord {
	candidates := make([]int, 0, len(elements))
	for i, el := range elements {
		if el.Kind == graph.KindLink {
			candidates = append(candidates, i)
		}
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		return elements[candidates[a]].DocumentOrder < elements[candidates[b]].DocumentOrder
	})

	claimed := make(map[int]bool, len(candidates))
	records := make([]MatchRecord, 0, len(links))
	for _, link := range links {
		rec := MatchRecord{Ordinal: link.Ordinal}
		for _, i := range candidates {
			if claimed[i] {
				continue
			}
			if elements[i].Href != "" && elements[i].Href == link.URL {
				claimed[i] = true
				rec.ElementID = elements[i].ID
				rec.Matched = true
				break
			}
		}
		records = append(records, rec)
	}
	return records
}

// Claimed returns the set of element ids the Matcher assigned.
func Claimed(records []MatchRecord) map[string]bool {
	out := make(map[string]bool, len(records))
	for _, rec := range records {
		if rec.Matched {
			out[rec.ElementID] = true
		}
	}
	return out
}
