package reconcile

import (
	"context"
	"sort"
	"time"

	"weft/internal/graph"
	"weft/internal/oracle"

	"go.uber.org/zap"
)

// Disambiguator resolves the unknown bucket via the classification oracle
// chain, with schema validation, bounded retries, ordered failover, and a
// heuristic default when every provider is exhausted. Resolve always
// terminates with one placement per input element and never returns an
// error: placement quality degrades, the pipeline does not.
type Disambiguator struct {
	chain         []oracle.Classifier
	timeout       time.Duration
	retries       int
	snapshotLimit int
	log           *zap.Logger
}

func NewDisambiguator(chain []oracle.Classifier, timeout time.Duration, retries, snapshotLimit int, log *zap.Logger) *Disambiguator {
	if log == nil {
		log = zap.NewNop()
	}
	if retries < 0 {
		retries = 0
	}
	return &Disambiguator{
		chain:         chain,
		timeout:       timeout,
		retries:       retries,
		snapshotLimit: snapshotLimit,
		log:           log,
	}
}

// Resolve places every unknown element. The same request is retried per
// provider on malformed responses; transport failures and timeouts move
// straight to the next provider.
func (d *Disambiguator) Resolve(ctx context.Context, snapshot []string, unknown []graph.Element) []Placement {
	if len(unknown) == 0 {
		return nil
	}

	req := d.buildRequest(snapshot, unknown)

	for _, provider := range d.chain {
		for attempt := 0; attempt <= d.retries; attempt++ {
			resp, err := d.classify(ctx, provider, req)
			if err != nil {
				d.log.Warn("oracle call failed, failing over",
					zap.String("provider", provider.Name()),
					zap.Error(err))
				break // transport or timeout: next provider
			}
			placements, ok := d.validate(resp, unknown, len(snapshot))
			if ok {
				return placements
			}
			d.log.Warn("malformed oracle response, retrying",
				zap.String("provider", provider.Name()),
				zap.Int("attempt", attempt+1))
		}
	}

	d.log.Warn("all oracle providers exhausted, applying heuristic placement",
		zap.Int("elements", len(unknown)))
	return HeuristicPlacements(unknown, len(snapshot))
}

func (d *Disambiguator) classify(ctx context.Context, provider oracle.Classifier, req oracle.Request) (oracle.Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return provider.Classify(callCtx, req)
}

func (d *Disambiguator) buildRequest(snapshot []string, unknown []graph.Element) oracle.Request {
	maxOrder := 0
	for _, el := range unknown {
		if el.DocumentOrder > maxOrder {
			maxOrder = el.DocumentOrder
		}
	}

	infos := make([]oracle.ElementInfo, 0, len(unknown))
	for _, el := range unknown {
		text := el.Text
		if runes := []rune(text); len(runes) > 100 {
			text = string(runes[:100])
		}
		infos = append(infos, oracle.ElementInfo{
			ID:          el.ID,
			Kind:        el.Kind,
			Text:        text,
			NearestLine: nearestLineHint(el.DocumentOrder, maxOrder, len(snapshot)),
		})
	}
	return oracle.Request{
		Snapshot:      snapshot,
		Elements:      infos,
		SnapshotLimit: d.snapshotLimit,
	}
}

// nearestLineHint maps an element's document order onto the snapshot by
// linear proportion. Only a hint for the oracle's spatial reasoning, never
// used as a placement on its own.
func nearestLineHint(order, maxOrder, lineCount int) int {
	if lineCount <= 1 || maxOrder <= 0 {
		return 0
	}
	if order < 0 {
		order = 0
	}
	if order > maxOrder {
		order = maxOrder
	}
	return order * (lineCount - 1) / maxOrder
}

// validate checks the oracle response against the schema: a decision for
// every element, in-bounds lines, and a recognized position on every shown
// placement. A single violation rejects the whole response so the retry
// carries the identical request.
func (d *Disambiguator) validate(resp oracle.Response, unknown []graph.Element, lineCount int) ([]Placement, bool) {
	placements := make([]Placement, 0, len(unknown))
	for _, el := range unknown {
		decision, ok := resp[el.ID]
		if !ok {
			return nil, false
		}
		if !decision.Show {
			placements = append(placements, Placement{ElementID: el.ID, Show: false})
			continue
		}
		if decision.Line < 0 || decision.Line >= lineCount {
			return nil, false
		}
		if decision.Position != PositionBefore && decision.Position != PositionAfter {
			return nil, false
		}
		label := decision.Label
		if label == "" {
			label = labelFor(el)
		}
		placements = append(placements, Placement{
			ElementID: el.ID,
			Show:      true,
			Line:      decision.Line,
			Position:  decision.Position,
			Label:     label,
		})
	}
	return placements, true
}

// HeuristicPlacements is the terminal fallback: every element is appended
// after the last line, in document order.
func HeuristicPlacements(unknown []graph.Element, lineCount int) []Placement {
	lastLine := lineCount - 1
	if lastLine < 0 {
		lastLine = 0
	}

	ordered := make([]graph.Element, len(unknown))
	copy(ordered, unknown)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].DocumentOrder < ordered[j].DocumentOrder
	})

	placements := make([]Placement, 0, len(ordered))
	for _, el := range ordered {
		placements = append(placements, DefaultPlacement(el, lastLine))
	}
	return placements
}
