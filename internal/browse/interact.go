package browse

import (
	"context"
	"fmt"
	"strings"

	"weft/internal/reconcile"
	"weft/internal/recorder"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// Act translates a mapping entry into a browser action and returns the
// resulting page. Navigate, click, and submit re-render; fill changes the
// live page and re-renders so the typed value shows up in the text.
func (s *Session) Act(ctx context.Context, ref int, value string) (*reconcile.RenderedPage, error) {
	if s.current == nil {
		return nil, fmt.Errorf("no page loaded")
	}
	entry, ok := s.current.Mapping.Get(ref)
	if !ok {
		return nil, fmt.Errorf("no element numbered %d (valid: 1-%d)", ref, len(s.current.Mapping))
	}

	s.log.Debug("executing action",
		zap.Int("ref", ref),
		zap.String("action", entry.Action),
		zap.String("target", entry.Target))
	s.rec.Action(s.currentURL(), recorder.ActionDetail{
		Ref:    ref,
		Action: entry.Action,
		Target: entry.Target,
	})

	switch entry.Action {
	case reconcile.ActionNavigate:
		return s.Navigate(ctx, entry.Target)
	case reconcile.ActionClick:
		if err := s.click(ctx, entry.Target); err != nil {
			return nil, err
		}
		return s.refreshAfterAction(ctx)
	case reconcile.ActionSubmit:
		if err := s.submit(ctx, entry.Target); err != nil {
			return nil, err
		}
		return s.refreshAfterAction(ctx)
	case reconcile.ActionFill:
		if value == "" {
			return nil, fmt.Errorf("element %d needs a value, use: %d <text>", ref, ref)
		}
		if err := s.fill(ctx, entry.Target, value); err != nil {
			return nil, err
		}
		return s.Refresh(ctx)
	default:
		return nil, fmt.Errorf("unhandled action %q", entry.Action)
	}
}

// refreshAfterAction waits for any in-flight navigation to settle, syncs
// history with wherever the click landed, and re-renders.
func (s *Session) refreshAfterAction(ctx context.Context) (*reconcile.RenderedPage, error) {
	page, ok := s.browser.Page(s.sessionID)
	if !ok {
		return nil, fmt.Errorf("browser page lost")
	}
	p := page.Context(ctx).Timeout(s.cfg.Browser.NavigationTimeout())
	if err := p.WaitLoad(); err != nil {
		s.log.Debug("post-action load wait failed", zap.Error(err))
	}

	if info, err := page.Info(); err == nil && info.URL != "" {
		if cur, ok := s.history.Current(); !ok || cur != info.URL {
			s.history.Push(info.URL)
		}
	}
	return s.Refresh(ctx)
}

func (s *Session) element(ctx context.Context, selector string) (*rod.Element, error) {
	page, ok := s.browser.Page(s.sessionID)
	if !ok {
		return nil, fmt.Errorf("browser page lost")
	}
	el, err := page.Context(ctx).Timeout(s.cfg.Browser.NavigationTimeout()).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("locate %s: %w", selector, err)
	}
	return el, nil
}

func (s *Session) click(ctx context.Context, selector string) error {
	el, err := s.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.ScrollIntoView(); err != nil {
		s.log.Debug("scroll into view failed", zap.Error(err))
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// submit clicks the control and, when that control belongs to a form,
// falls back to submitting the form directly if the click did nothing.
func (s *Session) submit(ctx context.Context, selector string) error {
	el, err := s.element(ctx, selector)
	if err != nil {
		return err
	}
	if cerr := el.Click(proto.InputMouseButtonLeft, 1); cerr == nil {
		return nil
	}
	if _, err := el.Eval(`() => { if (this.form) this.form.submit(); else this.click(); }`); err != nil {
		return fmt.Errorf("submit %s: %w", selector, err)
	}
	return nil
}

func (s *Session) fill(ctx context.Context, selector, value string) error {
	el, err := s.element(ctx, selector)
	if err != nil {
		return err
	}

	tag := "input"
	if info, ierr := el.Describe(0, false); ierr == nil {
		tag = strings.ToLower(info.LocalName)
	}

	if tag == "select" {
		if err := el.Select([]string{value}, true, rod.SelectorTypeText); err != nil {
			return fmt.Errorf("select %q on %s: %w", value, selector, err)
		}
		return nil
	}

	// Replace any existing value rather than appending to it.
	_ = el.SelectAllText()
	if err := el.Input(value); err != nil {
		return fmt.Errorf("fill %s: %w", selector, err)
	}
	return nil
}
