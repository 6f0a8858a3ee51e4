package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/go-rod/rod"
	"go.uber.org/zap"
)

// captureJS walks the DOM once and returns every interactive element with
// the metadata the reconciliation pipeline needs: a stable per-capture id,
// a normalized kind, visible text, a CSS locator, visibility, the chain of
// structural landmark ancestors, and document order.
const captureJS = `
() => {
	const structural = new Set(['header', 'nav', 'footer', 'main', 'aside', 'form', 'section']);

	const cssPath = (el) => {
		if (el.id) return '#' + CSS.escape(el.id);
		const parts = [];
		let node = el;
		while (node && node.nodeType === 1 && node !== document.body) {
			let part = node.tagName.toLowerCase();
			const parent = node.parentElement;
			if (parent) {
				const siblings = Array.from(parent.children).filter(c => c.tagName === node.tagName);
				if (siblings.length > 1) {
					part += ':nth-of-type(' + (siblings.indexOf(node) + 1) + ')';
				}
			}
			parts.unshift(part);
			node = node.parentElement;
		}
		return 'body > ' + parts.join(' > ');
	};

	const ancestryOf = (el) => {
		const chain = [];
		let node = el.parentElement;
		while (node && node !== document.documentElement) {
			const tag = node.tagName.toLowerCase();
			if (structural.has(tag)) {
				chain.unshift(tag);
			} else {
				const role = (node.getAttribute('role') || '').toLowerCase();
				if (role === 'navigation') chain.unshift('nav');
				else if (role === 'banner') chain.unshift('header');
				else if (role === 'contentinfo') chain.unshift('footer');
				else if (role === 'main') chain.unshift('main');
			}
			node = node.parentElement;
		}
		return chain;
	};

	const isVisible = (el) => {
		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden' || style.opacity === '0') return false;
		const rect = el.getBoundingClientRect();
		return rect.width > 0 && rect.height > 0;
	};

	const kindOf = (el) => {
		const tag = el.tagName.toLowerCase();
		if (tag === 'a') return 'link';
		if (tag === 'button') return 'button';
		if (tag === 'textarea') return 'textarea';
		if (tag === 'select') return 'select';
		if (tag === 'form') return 'form';
		if (tag === 'input') {
			const type = (el.getAttribute('type') || 'text').toLowerCase();
			if (type === 'submit' || type === 'button' || type === 'image') return 'button';
			if (type === 'hidden') return '';
			return 'input';
		}
		const role = (el.getAttribute('role') || '').toLowerCase();
		if (role === 'button') return 'button';
		if (role === 'link') return 'link';
		return '';
	};

	const textOf = (el) => {
		let text = (el.innerText || el.value || '').trim();
		if (!text) text = (el.getAttribute('aria-label') || el.getAttribute('placeholder') || el.getAttribute('name') || '').trim();
		return text.replace(/\s+/g, ' ').slice(0, 200);
	};

	const nodes = document.querySelectorAll('a, button, input, textarea, select, form, [role=button], [role=link]');
	const elements = [];
	let order = 0;
	for (const el of nodes) {
		const kind = kindOf(el);
		if (!kind) continue;
		const entry = {
			id: 'el_' + order,
			kind: kind,
			text: textOf(el),
			selector: cssPath(el),
			visible: isVisible(el),
			ancestry: ancestryOf(el),
			document_order: order,
		};
		if (kind === 'link' && el.href) entry.href = el.href;
		elements.push(entry);
		order++;
	}

	// Heuristic: a near-empty body under a framework mount point means the
	// page builds itself client-side and a static fetch would miss it.
	const mount = document.getElementById('root') || document.getElementById('app') || document.querySelector('[data-reactroot]');
	const bodyText = (document.body.innerText || '').trim();
	const spa = !!mount && bodyText.length < 200;

	return {
		url: location.href,
		title: document.title,
		html: document.documentElement.outerHTML,
		spa: spa,
		elements: elements,
	};
}
`

type capturePayload struct {
	URL      string    `json:"url"`
	Title    string    `json:"title"`
	HTML     string    `json:"html"`
	SPA      bool      `json:"spa"`
	Elements []Element `json:"elements"`
}

// Capture snapshots the session's page into a Graph.
func (b *Browser) Capture(ctx context.Context, sessionID string) (*Graph, error) {
	page, ok := b.Page(sessionID)
	if !ok {
		return nil, fmt.Errorf("unknown session: %s", sessionID)
	}

	res, err := page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:           captureJS,
		ByValue:      true,
		AwaitPromise: true,
	})
	if err != nil || res == nil {
		return nil, fmt.Errorf("element capture failed: %w", err)
	}

	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal capture result: %w", err)
	}

	var payload capturePayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decode capture result: %w", err)
	}

	g := &Graph{
		URL:      payload.URL,
		Title:    payload.Title,
		HTML:     payload.HTML,
		SPA:      payload.SPA,
		Elements: NormalizeElements(payload.Elements),
	}

	b.UpdateMetadata(sessionID, func(s Session) Session {
		s.URL = payload.URL
		s.Title = payload.Title
		return s
	})

	b.log.Debug("captured element graph",
		zap.String("session", sessionID),
		zap.String("url", payload.URL),
		zap.Int("elements", len(g.Elements)),
		zap.Bool("spa", g.SPA))
	return g, nil
}

// NormalizeElements drops entries with unrecognized kinds and returns the
// remainder sorted by document order. The capture script already emits in
// that order; sorting keeps the guarantee when a graph arrives from
// anywhere else.
func NormalizeElements(elements []Element) []Element {
	out := make([]Element, 0, len(elements))
	for _, el := range elements {
		switch el.Kind {
		case KindLink, KindButton, KindInput, KindTextarea, KindSelect, KindForm:
		default:
			continue
		}
		el.Text = strings.TrimSpace(el.Text)
		out = append(out, el)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DocumentOrder < out[j].DocumentOrder
	})
	return out
}
