package textview

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"weft/internal/config"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"
)

// BuiltinFetcher renders pages without external binaries: a plain HTTP GET
// followed by an HTML linearization pass. It sees only server-rendered
// markup, so script-built pages come back mostly empty — the element-graph
// side covers those.
type BuiltinFetcher struct {
	cfg    config.TextViewConfig
	log    *zap.Logger
	client *http.Client
}

func NewBuiltinFetcher(cfg config.TextViewConfig, log *zap.Logger) *BuiltinFetcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &BuiltinFetcher{
		cfg:    cfg,
		log:    log,
		client: &http.Client{},
	}
}

func (f *BuiltinFetcher) Fetch(ctx context.Context, pageURL string) (*TextView, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "weft/1.0 (text-mode browser)")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	html := string(body)

	if f.cfg.Readability {
		if parsed, perr := url.Parse(pageURL); perr == nil {
			article, aerr := readability.FromReader(strings.NewReader(html), parsed)
			if aerr == nil && strings.TrimSpace(article.Content) != "" {
				html = article.Content
			} else if aerr != nil {
				f.log.Debug("readability extraction failed, using full page", zap.Error(aerr))
			}
		}
	}

	view, err := LinearizeHTML(html, pageURL, f.cfg.GetWidth())
	if err != nil {
		return nil, err
	}
	f.log.Debug("builtin render complete",
		zap.String("url", pageURL),
		zap.Int("lines", len(view.Lines)),
		zap.Int("links", len(view.Links)))
	return view, nil
}

// blockSelector lists the leaf block elements whose text becomes output
// lines. Divs are deliberately absent: nested wrappers would duplicate
// every paragraph they contain.
const blockSelector = "h1, h2, h3, h4, h5, h6, p, li, pre, blockquote, dt, dd, figcaption, caption, th, td"

// LinearizeHTML converts raw HTML into wrapped text lines plus the ordered
// link list. It is also used directly in degraded mode, when the element
// graph captured page HTML but the text renderer failed.
func LinearizeHTML(html, baseURL string, width int) (*TextView, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, template").Remove()

	var base *url.URL
	if baseURL != "" {
		base, _ = url.Parse(baseURL)
	}

	var lines []string
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		lines = append(lines, title, "")
	}

	doc.Find(blockSelector).Each(func(_ int, sel *goquery.Selection) {
		// Skip containers that hold further blocks; their leaves are
		// visited separately.
		if sel.Find(blockSelector).Length() > 0 {
			return
		}
		text := collapseSpace(sel.Text())
		if text == "" {
			return
		}
		lines = append(lines, wrapText(text, width)...)
	})

	var links []Link
	ordinal := 0
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "#") {
			return
		}
		if base != nil {
			if ref, rerr := url.Parse(href); rerr == nil {
				href = base.ResolveReference(ref).String()
			}
		}
		ordinal++
		links = append(links, Link{Ordinal: ordinal, URL: href})
	})

	return &TextView{Lines: lines, Links: links}, nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// wrapText breaks a string into lines no longer than width, splitting on
// word boundaries. Words longer than the width get a line of their own.
func wrapText(s string, width int) []string {
	if width <= 0 {
		width = 80
	}
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}

	var lines []string
	current := words[0]
	for _, word := range words[1:] {
		if len(current)+1+len(word) > width {
			lines = append(lines, current)
			current = word
			continue
		}
		current += " " + word
	}
	lines = append(lines, current)
	return lines
}
