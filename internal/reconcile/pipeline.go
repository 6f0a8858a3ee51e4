package reconcile

import (
	"context"
	"errors"

	"weft/internal/graph"
	"weft/internal/textview"

	"go.uber.org/zap"
)

// ErrTotalSourceFailure is the only fatal pipeline condition: neither the
// text view nor the element graph is available.
var ErrTotalSourceFailure = errors.New("both text view and element graph unavailable")

// Pipeline run states, in order of progression.
type State string

const (
	StateFetched        State = "fetched"
	StateMatched        State = "matched"
	StateGapsFound      State = "gaps-found"
	StateCategorized    State = "categorized"
	StateDisambiguating State = "disambiguating"
	StateAssembled      State = "assembled"
	StateReady          State = "ready"
	StateFailed         State = "failed"
)

// Input is one page's worth of source material. A nil field means that
// source failed; the pipeline degrades as long as one remains.
type Input struct {
	URL   string
	Text  *textview.TextView
	Graph *graph.Graph
}

// Pipeline runs the reconciliation stages over one page fetch. Each Run
// owns private intermediate state; instances are safe for sequential reuse
// across pages.
type Pipeline struct {
	dis      *Disambiguator
	denylist []string
	width    int
	log      *zap.Logger
}

// NewPipeline wires the stages. dis may be nil, in which case unknown
// elements go straight to the heuristic default (the --no-oracle path).
func NewPipeline(dis *Disambiguator, denylist []string, width int, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{dis: dis, denylist: denylist, width: width, log: log}
}

// Run executes one reconciliation pass: match, find gaps, categorize,
// disambiguate, assemble. It fails only on total source failure.
func (p *Pipeline) Run(ctx context.Context, in Input) (*RenderedPage, error) {
	if in.Text == nil && in.Graph == nil {
		p.logState(in.URL, StateFailed)
		return nil, ErrTotalSourceFailure
	}
	p.logState(in.URL, StateFetched)

	var (
		lines []string
		links []textview.Link
		title string
	)
	if in.Text != nil {
		lines = in.Text.Lines
		links = in.Text.Links
	} else {
		// Graph-only degraded mode: linearize the captured HTML for a
		// readable base text, but feed no links to the Matcher so every
		// element runs through the Categorizer.
		lines = p.linearizeGraph(in.Graph)
	}

	var elements []graph.Element
	if in.Graph != nil {
		elements = in.Graph.Elements
		title = in.Graph.Title
	}

	records := Match(links, elements)
	p.logState(in.URL, StateMatched)

	missing := FindGaps(elements, records)
	p.logState(in.URL, StateGapsFound)

	buckets := CategorizeAll(missing, p.denylist, len(lines))
	p.logState(in.URL, StateCategorized)
	if len(buckets.Ignored) > 0 {
		p.log.Debug("elements ignored by categorizer",
			zap.String("url", in.URL),
			zap.Int("count", len(buckets.Ignored)))
	}

	placements := buckets.Placements
	if len(buckets.Unknown) > 0 {
		p.logState(in.URL, StateDisambiguating)
		if p.dis != nil {
			placements = append(placements, p.dis.Resolve(ctx, lines, buckets.Unknown)...)
		} else {
			placements = append(placements, HeuristicPlacements(buckets.Unknown, len(lines))...)
		}
	}

	text, mapping := Assemble(lines, links, records, elements, placements)
	p.logState(in.URL, StateAssembled)

	page := &RenderedPage{
		URL:     in.URL,
		Title:   title,
		Text:    text,
		Mapping: mapping,
	}
	p.logState(in.URL, StateReady)
	p.log.Info("page reconciled",
		zap.String("url", in.URL),
		zap.Int("lines", len(page.Text)),
		zap.Int("mapping_entries", len(page.Mapping)))
	return page, nil
}

func (p *Pipeline) linearizeGraph(g *graph.Graph) []string {
	if g == nil || g.HTML == "" {
		return nil
	}
	view, err := textview.LinearizeHTML(g.HTML, g.URL, p.width)
	if err != nil {
		p.log.Warn("failed to linearize captured HTML", zap.Error(err))
		return nil
	}
	return view.Lines
}

func (p *Pipeline) logState(url string, s State) {
	p.log.Debug("pipeline state", zap.String("url", url), zap.String("state", string(s)))
}
