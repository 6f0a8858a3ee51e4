package textview

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"
	"strings"

	"weft/internal/config"

	"go.uber.org/zap"
)

// LynxFetcher renders pages by shelling out to the lynx binary. Two dumps
// are taken per fetch: one without the link list for clean text, one with
// only the link list for the ordinal/URL pairs.
type LynxFetcher struct {
	cfg config.TextViewConfig
	log *zap.Logger
}

// linkLinePattern matches a numbered entry in lynx -listonly output,
// e.g. "   3. https://example.com/about".
var linkLinePattern = regexp.MustCompile(`^\s*(\d+)\.\s+(\S+)`)

func (f *LynxFetcher) Fetch(ctx context.Context, url string) (*TextView, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout())
	defer cancel()

	text, err := f.dump(ctx, url, "-dump", "-nolist", fmt.Sprintf("-width=%d", f.cfg.GetWidth()))
	if err != nil {
		return nil, fmt.Errorf("lynx text dump: %w", err)
	}

	listing, err := f.dump(ctx, url, "-dump", "-listonly")
	if err != nil {
		return nil, fmt.Errorf("lynx link dump: %w", err)
	}

	view := &TextView{
		Lines: splitLines(text),
		Links: parseLinkList(listing),
	}
	f.log.Debug("lynx render complete",
		zap.String("url", url),
		zap.Int("lines", len(view.Lines)),
		zap.Int("links", len(view.Links)))
	return view, nil
}

func (f *LynxFetcher) dump(ctx context.Context, url string, args ...string) (string, error) {
	bin := f.cfg.LynxPath
	if bin == "" {
		bin = "lynx"
	}
	cmd := exec.CommandContext(ctx, bin, append(args, url)...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}
	return stdout.String(), nil
}

// parseLinkList extracts ordinal/URL pairs from lynx -listonly output.
// Lines that do not look like numbered references (the "References"
// header, blank lines) are skipped.
func parseLinkList(listing string) []Link {
	var links []Link
	for _, line := range splitLines(listing) {
		m := linkLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		ordinal, err := strconv.Atoi(m[1])
		if err != nil || ordinal <= 0 {
			continue
		}
		links = append(links, Link{Ordinal: ordinal, URL: m[2]})
	}
	return links
}

func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
