package reconcile

import (
	"sort"
	"strconv"
	"strings"

	"weft/internal/graph"
	"weft/internal/textview"
)

// Assemble merges all placement decisions into the base text and builds
// the canonical mapping. Reference numbers go to matched text links first
// (in ordinal order), then to shown elements ordered by target line with
// document order breaking ties. Insertions are applied bottom-up so
// earlier-computed line numbers stay valid.
func Assemble(lines []string, links []textview.Link, records []MatchRecord, elements []graph.Element, placements []Placement) ([]string, Mapping) {
	byID := make(map[string]graph.Element, len(elements))
	for _, el := range elements {
		byID[el.ID] = el
	}

	text := make([]string, len(lines))
	copy(text, lines)

	linkURL := make(map[int]string, len(links))
	for _, l := range links {
		linkURL[l.Ordinal] = l.URL
	}

	var mapping Mapping

	// First pass: matched text links, ordinal order.
	matched := make([]MatchRecord, 0, len(records))
	for _, rec := range records {
		if rec.Matched {
			matched = append(matched, rec)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Ordinal < matched[j].Ordinal
	})
	for _, rec := range matched {
		el := byID[rec.ElementID]
		target := el.Href
		if target == "" {
			target = linkURL[rec.Ordinal]
		}
		text2 := el.Text
		if text2 == "" {
			text2 = target
		}
		mapping = append(mapping, Entry{
			Ref:    len(mapping) + 1,
			Kind:   graph.KindLink,
			Action: ActionNavigate,
			Target: target,
			Text:   text2,
		})
	}

	// Second pass: shown elements by target line, document-order tiebreak.
	shown := make([]Placement, 0, len(placements))
	for _, p := range placements {
		if !p.Show {
			continue
		}
		if _, ok := byID[p.ElementID]; !ok {
			continue
		}
		shown = append(shown, p)
	}
	sort.SliceStable(shown, func(i, j int) bool {
		if shown[i].Line != shown[j].Line {
			return shown[i].Line < shown[j].Line
		}
		return byID[shown[i].ElementID].DocumentOrder < byID[shown[j].ElementID].DocumentOrder
	})

	if len(shown) > 0 && len(text) == 0 {
		text = []string{""}
	}

	type insertion struct {
		line     int
		position string
		marker   string
	}
	inserts := make([]insertion, 0, len(shown))

	for _, p := range shown {
		el := byID[p.ElementID]
		ref := len(mapping) + 1
		mapping = append(mapping, Entry{
			Ref:    ref,
			Kind:   el.Kind,
			Action: actionFor(el),
			Target: targetFor(el),
			Text:   el.Text,
		})

		line := p.Line
		if line < 0 {
			line = 0
		}
		if line >= len(text) {
			line = len(text) - 1
		}
		inserts = append(inserts, insertion{
			line:     line,
			position: p.Position,
			marker:   numberLabel(p.Label, el, ref),
		})
	}

	// Bottom of the document first. Stable reversal keeps same-line
	// insertions in assignment order.
	sort.SliceStable(inserts, func(i, j int) bool {
		return inserts[i].line > inserts[j].line
	})
	for _, ins := range inserts {
		if ins.position == PositionBefore {
			text[ins.line] = ins.marker + " " + text[ins.line]
		} else {
			text[ins.line] = text[ins.line] + " " + ins.marker
		}
	}

	return text, mapping
}

// actionFor derives the action from the element kind. The kind set is
// closed; anything unexpected falls back to click rather than silently
// disappearing.
func actionFor(el graph.Element) string {
	switch el.Kind {
	case graph.KindLink:
		return ActionNavigate
	case graph.KindInput, graph.KindTextarea, graph.KindSelect:
		return ActionFill
	case graph.KindButton:
		if strings.Contains(strings.ToLower(el.Text), "submit") {
			return ActionSubmit
		}
		return ActionClick
	case graph.KindForm:
		return ActionClick
	default:
		return ActionClick
	}
}

func targetFor(el graph.Element) string {
	if el.Kind == graph.KindLink && el.Href != "" {
		return el.Href
	}
	return el.Selector
}

// numberLabel substitutes the assigned reference number into the "[N:..."
// placeholder. Only the leading marker is rewritten so an N inside the
// label text survives.
func numberLabel(label string, el graph.Element, ref int) string {
	n := strconv.Itoa(ref)
	if strings.HasPrefix(label, "[N:") {
		return "[" + n + ":" + label[len("[N:"):]
	}
	if label == "" {
		label = labelFor(el)
		return "[" + n + ":" + label[len("[N:"):]
	}
	return "[" + n + ":" + strings.Trim(label, "[]") + "]"
}
