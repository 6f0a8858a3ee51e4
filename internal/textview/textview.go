// Package textview produces the fast linearized rendering of a page: the
// wrapped text lines a terminal user reads, plus the ordered list of links
// the renderer surfaced. Two renderers are available: a lynx subprocess and
// a built-in HTTP fetcher for hosts without lynx installed.
package textview

import (
	"context"
	"fmt"

	"weft/internal/config"

	"go.uber.org/zap"
)

// Link is one hyperlink surfaced by the renderer. Ordinals are unique and
// strictly increasing in source order.
type Link struct {
	Ordinal int
	URL     string
}

// TextView is the linearized rendering of one page.
type TextView struct {
	Lines []string
	Links []Link
}

// Fetcher renders a URL into a TextView.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*TextView, error)
}

// NewFetcher selects a renderer from config. The lynx engine shells out to
// the lynx binary; the builtin engine fetches over HTTP and linearizes the
// HTML itself.
func NewFetcher(cfg config.TextViewConfig, log *zap.Logger) (Fetcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch cfg.Engine {
	case "", "lynx":
		return &LynxFetcher{cfg: cfg, log: log}, nil
	case "builtin":
		return NewBuiltinFetcher(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown textview engine: %s", cfg.Engine)
	}
}
