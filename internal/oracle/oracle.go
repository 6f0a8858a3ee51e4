// Package oracle defines the classification oracle contract used to place
// interactive elements that deterministic rules could not, plus provider
// implementations sharing that contract.
package oracle

import (
	"context"
	"fmt"

	"weft/internal/config"
)

// ElementInfo describes one element the oracle is asked to place.
type ElementInfo struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	Text        string `json:"text"`
	NearestLine int    `json:"nearest_line"`
}

// Request carries a line-numbered snapshot of the text view and the batch
// of elements to place within it.
type Request struct {
	Snapshot      []string
	Elements      []ElementInfo
	SnapshotLimit int // max snapshot characters sent to the provider
}

// Placement is the oracle's decision for one element. "N" in the label is
// a placeholder replaced with the final reference number downstream.
type Placement struct {
	Show     bool   `json:"show"`
	Line     int    `json:"line"`
	Position string `json:"position"`
	Label    string `json:"label"`
	Reason   string `json:"reason,omitempty"`
}

// Response maps element ids to placements.
type Response map[string]Placement

// Classifier is the uniform contract every provider implements. Callers
// bound each call with a context timeout.
type Classifier interface {
	Classify(ctx context.Context, req Request) (Response, error)
	Name() string
}

// New builds a Classifier from provider config.
func New(cfg config.ProviderConfig) (Classifier, error) {
	switch cfg.Provider {
	case "anthropic":
		return NewAnthropic(cfg)
	case "openai":
		return NewOpenAI(cfg)
	case "ollama":
		return NewOllama(cfg), nil
	default:
		return nil, fmt.Errorf("unknown oracle provider: %s (supported: anthropic, openai, ollama)", cfg.Provider)
	}
}

// NewChain builds the ordered failover list, skipping providers whose
// construction fails (e.g. missing API key) so one bad entry does not
// disable the rest of the chain.
func NewChain(cfgs []config.ProviderConfig) ([]Classifier, []error) {
	var chain []Classifier
	var errs []error
	for _, cfg := range cfgs {
		c, err := New(cfg)
		if err != nil {
			errs = append(errs, fmt.Errorf("provider %s: %w", cfg.Provider, err))
			continue
		}
		chain = append(chain, c)
	}
	return chain, errs
}
