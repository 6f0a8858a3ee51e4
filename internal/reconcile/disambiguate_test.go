package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"weft/internal/graph"
	"weft/internal/oracle"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedClassifier replays a fixed sequence of responses/errors.
type scriptedClassifier struct {
	name      string
	responses []oracle.Response
	errs      []error
	calls     int
}

func (s *scriptedClassifier) Name() string { return s.name }

func (s *scriptedClassifier) Classify(_ context.Context, _ oracle.Request) (oracle.Response, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return nil, errors.New("script exhausted")
}

// stuckClassifier blocks until the call context expires.
type stuckClassifier struct{ calls int }

func (s *stuckClassifier) Name() string { return "stuck" }

func (s *stuckClassifier) Classify(ctx context.Context, _ oracle.Request) (oracle.Response, error) {
	s.calls++
	<-ctx.Done()
	return nil, ctx.Err()
}

var unknownBatch = []graph.Element{
	{ID: "el_0", Kind: graph.KindButton, Text: "▲", Selector: "#up", Visible: true, DocumentOrder: 3},
	{ID: "el_1", Kind: graph.KindButton, Text: "▼", Selector: "#down", Visible: true, DocumentOrder: 7},
}

var snapshot = []string{"Comments", "Loading comments...", "", "footer"}

func TestResolveValidResponse(t *testing.T) {
	c := &scriptedClassifier{
		name: "fake",
		responses: []oracle.Response{{
			"el_0": {Show: true, Line: 1, Position: "before", Label: "[N:▲]"},
			"el_1": {Show: false, Reason: "not useful"},
		}},
	}
	d := NewDisambiguator([]oracle.Classifier{c}, time.Second, 2, 3000, nil)

	placements := d.Resolve(context.Background(), snapshot, unknownBatch)
	require.Len(t, placements, 2)
	assert.Equal(t, Placement{ElementID: "el_0", Show: true, Line: 1, Position: PositionBefore, Label: "[N:▲]"}, placements[0])
	assert.Equal(t, Placement{ElementID: "el_1", Show: false}, placements[1])
	assert.Equal(t, 1, c.calls)
}

func TestResolveRetriesMalformedThenSucceeds(t *testing.T) {
	c := &scriptedClassifier{
		name: "fake",
		responses: []oracle.Response{
			// Missing el_1: schema violation, retried.
			{"el_0": {Show: true, Line: 1, Position: "after", Label: "[N:▲]"}},
			// Out-of-range line: retried again.
			{
				"el_0": {Show: true, Line: 99, Position: "after", Label: "[N:▲]"},
				"el_1": {Show: false},
			},
			{
				"el_0": {Show: true, Line: 1, Position: "after", Label: "[N:▲]"},
				"el_1": {Show: false},
			},
		},
	}
	d := NewDisambiguator([]oracle.Classifier{c}, time.Second, 2, 3000, nil)

	placements := d.Resolve(context.Background(), snapshot, unknownBatch)
	require.Len(t, placements, 2)
	assert.True(t, placements[0].Show)
	assert.Equal(t, 1, placements[0].Line)
	assert.Equal(t, 3, c.calls)
}

func TestResolveRejectsBadPosition(t *testing.T) {
	bad := oracle.Response{
		"el_0": {Show: true, Line: 1, Position: "above", Label: "[N:▲]"},
		"el_1": {Show: false},
	}
	c := &scriptedClassifier{name: "fake", responses: []oracle.Response{bad, bad, bad}}
	d := NewDisambiguator([]oracle.Classifier{c}, time.Second, 2, 3000, nil)

	placements := d.Resolve(context.Background(), snapshot, unknownBatch)
	// Retries exhausted on the only provider: heuristic default applies.
	require.Len(t, placements, 2)
	for _, p := range placements {
		assert.True(t, p.Show)
		assert.Equal(t, len(snapshot)-1, p.Line)
		assert.Equal(t, PositionAfter, p.Position)
	}
	assert.Equal(t, 3, c.calls, "retries plus the initial attempt")
}

func TestResolveFailsOverOnTransportError(t *testing.T) {
	broken := &scriptedClassifier{name: "broken", errs: []error{errors.New("connection refused")}}
	good := &scriptedClassifier{
		name: "good",
		responses: []oracle.Response{{
			"el_0": {Show: true, Line: 0, Position: "after", Label: "[N:▲]"},
			"el_1": {Show: true, Line: 2, Position: "after", Label: "[N:▼]"},
		}},
	}
	d := NewDisambiguator([]oracle.Classifier{broken, good}, time.Second, 2, 3000, nil)

	placements := d.Resolve(context.Background(), snapshot, unknownBatch)
	require.Len(t, placements, 2)
	assert.True(t, placements[0].Show)
	// Transport errors skip remaining retries on that provider.
	assert.Equal(t, 1, broken.calls)
	assert.Equal(t, 1, good.calls)
}

func TestResolveStuckOracleHonorsTimeout(t *testing.T) {
	stuck := &stuckClassifier{}
	d := NewDisambiguator([]oracle.Classifier{stuck}, 20*time.Millisecond, 2, 3000, nil)

	start := time.Now()
	placements := d.Resolve(context.Background(), snapshot, unknownBatch)
	elapsed := time.Since(start)

	require.Len(t, placements, 2)
	assert.Equal(t, 1, stuck.calls, "timeout moves to failover, not retry")
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestResolveEmptyChainUsesHeuristic(t *testing.T) {
	d := NewDisambiguator(nil, time.Second, 2, 3000, nil)

	placements := d.Resolve(context.Background(), snapshot, unknownBatch)
	require.Len(t, placements, 2)
	assert.Equal(t, "[N:▲]", placements[0].Label)
	assert.Equal(t, "[N:▼]", placements[1].Label)
}

func TestResolveNoUnknownElements(t *testing.T) {
	c := &scriptedClassifier{name: "fake"}
	d := NewDisambiguator([]oracle.Classifier{c}, time.Second, 2, 3000, nil)

	assert.Nil(t, d.Resolve(context.Background(), snapshot, nil))
	assert.Zero(t, c.calls)
}

func TestHeuristicPlacementsDocumentOrder(t *testing.T) {
	shuffled := []graph.Element{
		{ID: "b", Kind: graph.KindButton, Text: "b", Visible: true, DocumentOrder: 9},
		{ID: "a", Kind: graph.KindButton, Text: "a", Visible: true, DocumentOrder: 2},
	}
	placements := HeuristicPlacements(shuffled, 5)
	require.Len(t, placements, 2)
	assert.Equal(t, "a", placements[0].ElementID)
	assert.Equal(t, "b", placements[1].ElementID)
	assert.Equal(t, 4, placements[0].Line)
}

func TestNearestLineHint(t *testing.T) {
	tests := []struct {
		order, maxOrder, lines, want int
	}{
		{0, 10, 100, 0},
		{10, 10, 100, 99},
		{5, 10, 100, 49},
		{3, 0, 100, 0},
		{3, 10, 0, 0},
		{3, 10, 1, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, nearestLineHint(tt.order, tt.maxOrder, tt.lines),
			"order=%d max=%d lines=%d", tt.order, tt.maxOrder, tt.lines)
	}
}
