// Package browse owns one interactive browsing session: it drives the two
// page-view collaborators, feeds the reconciliation pipeline, executes the
// actions users pick from the numbered mapping, and keeps history.
package browse

import (
	"context"
	"fmt"

	"weft/internal/config"
	"weft/internal/graph"
	"weft/internal/oracle"
	"weft/internal/reconcile"
	"weft/internal/recorder"
	"weft/internal/textview"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Session binds a browser page, a text renderer, and the pipeline.
type Session struct {
	cfg       config.Config
	log       *zap.Logger
	browser   *graph.Browser
	fetcher   textview.Fetcher
	pipeline  *reconcile.Pipeline
	sessionID string
	history   *History
	current   *reconcile.RenderedPage
	rec       *recorder.Recorder // nil unless tracing is on
}

// Options tweak session construction beyond the config file.
type Options struct {
	DisableOracle bool
	Provider      string // overrides the provider chain with a single entry
	TraceDir      string // when set, record a session trace under this directory
}

// NewSession starts the browser, opens one page, and wires the pipeline.
func NewSession(ctx context.Context, cfg config.Config, opts Options, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}

	fetcher, err := textview.NewFetcher(cfg.TextView, log)
	if err != nil {
		return nil, err
	}

	browser := graph.NewBrowser(cfg.Browser, log)
	if err := browser.Start(ctx); err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}

	meta, err := browser.NewSession(ctx, "")
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("open page: %w", err)
	}

	var dis *reconcile.Disambiguator
	if cfg.Oracle.IsEnabled() && !opts.DisableOracle {
		providers := cfg.Oracle.Providers
		if opts.Provider != "" {
			providers = filterProviders(providers, opts.Provider)
		}
		chain, errs := oracle.NewChain(providers)
		for _, cerr := range errs {
			log.Warn("oracle provider unavailable", zap.Error(cerr))
		}
		if len(chain) > 0 {
			dis = reconcile.NewDisambiguator(
				chain,
				cfg.Oracle.CallTimeout(),
				cfg.Oracle.Retries,
				cfg.Oracle.GetSnapshotLimit(),
				log,
			)
		} else {
			log.Warn("no usable oracle providers, unknown elements fall back to heuristic placement")
		}
	}

	pipeline := reconcile.NewPipeline(dis, cfg.Merge.DenylistPatterns, cfg.TextView.GetWidth(), log)

	var rec *recorder.Recorder
	if opts.TraceDir != "" {
		rec, err = recorder.New(opts.TraceDir)
		if err == nil {
			err = rec.Start(meta.ID)
		}
		if err != nil {
			log.Warn("session trace disabled", zap.Error(err))
			rec = nil
		}
	}

	return &Session{
		cfg:       cfg,
		log:       log,
		browser:   browser,
		fetcher:   fetcher,
		pipeline:  pipeline,
		sessionID: meta.ID,
		history:   NewHistory(),
		rec:       rec,
	}, nil
}

// filterProviders keeps only the named provider, falling back to a bare
// entry so a flag like --provider=ollama works without config.
func filterProviders(providers []config.ProviderConfig, name string) []config.ProviderConfig {
	var out []config.ProviderConfig
	for _, p := range providers {
		if p.Provider == name {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		out = []config.ProviderConfig{{Provider: name}}
	}
	return out
}

// Navigate fetches both views of a URL concurrently, reconciles them, and
// pushes the result onto history. One failed source degrades the run; only
// both failing is fatal.
func (s *Session) Navigate(ctx context.Context, url string) (*reconcile.RenderedPage, error) {
	s.rec.Navigate(url)
	page, err := s.acquireAndRun(ctx, url, true)
	if err != nil {
		return nil, err
	}
	s.history.Push(url)
	return page, nil
}

// Refresh rebuilds the page from the browser's current state without a new
// navigation, used after in-page actions like click or submit.
func (s *Session) Refresh(ctx context.Context) (*reconcile.RenderedPage, error) {
	url := s.currentURL()
	return s.acquireAndRun(ctx, url, false)
}

func (s *Session) acquireAndRun(ctx context.Context, url string, navigate bool) (*reconcile.RenderedPage, error) {
	var (
		tv    *textview.TextView
		tvErr error
		gr    *graph.Graph
		grErr error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		tv, tvErr = s.fetcher.Fetch(gctx, url)
		return nil // a failed source degrades, it does not cancel the peer
	})
	g.Go(func() error {
		if navigate {
			if err := s.browser.Navigate(gctx, s.sessionID, url); err != nil {
				grErr = err
				return nil
			}
		}
		gr, grErr = s.browser.Capture(gctx, s.sessionID)
		return nil
	})
	_ = g.Wait()

	if tvErr != nil {
		s.log.Warn("text view unavailable, degrading", zap.String("url", url), zap.Error(tvErr))
		s.rec.Degraded(url, "textview", tvErr)
		tv = nil
	}
	if grErr != nil {
		s.log.Warn("element graph unavailable, degrading", zap.String("url", url), zap.Error(grErr))
		s.rec.Degraded(url, "graph", grErr)
		gr = nil
	}

	page, err := s.pipeline.Run(ctx, reconcile.Input{URL: url, Text: tv, Graph: gr})
	if err != nil {
		return nil, fmt.Errorf("%w (text view: %v, element graph: %v)", err, tvErr, grErr)
	}
	s.current = page
	s.rec.Page(url, recorder.PageSummary{
		Title: page.Title,
		Lines: len(page.Text),
		Refs:  len(page.Mapping),
	})
	return page, nil
}

// Current returns the most recently rendered page, if any.
func (s *Session) Current() *reconcile.RenderedPage {
	return s.current
}

func (s *Session) currentURL() string {
	if url, ok := s.history.Current(); ok {
		return url
	}
	if meta, ok := s.browser.GetSession(s.sessionID); ok {
		return meta.URL
	}
	return ""
}

// Back re-renders the previous history entry.
func (s *Session) Back(ctx context.Context) (*reconcile.RenderedPage, error) {
	url, ok := s.history.Back()
	if !ok {
		return nil, fmt.Errorf("no previous page")
	}
	return s.acquireAndRunNavigate(ctx, url)
}

// Forward re-renders the next history entry.
func (s *Session) Forward(ctx context.Context) (*reconcile.RenderedPage, error) {
	url, ok := s.history.Forward()
	if !ok {
		return nil, fmt.Errorf("no next page")
	}
	return s.acquireAndRunNavigate(ctx, url)
}

func (s *Session) acquireAndRunNavigate(ctx context.Context, url string) (*reconcile.RenderedPage, error) {
	return s.acquireAndRun(ctx, url, true)
}

// Close finishes the session trace and releases the browser.
func (s *Session) Close() error {
	if err := s.rec.Close(); err != nil {
		s.log.Debug("closing session trace failed", zap.Error(err))
	}
	return s.browser.Close()
}
