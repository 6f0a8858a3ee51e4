package graph

import "time"

// Kinds of interactive elements the capture script reports.
const (
	KindLink     = "link"
	KindButton   = "button"
	KindInput    = "input"
	KindTextarea = "textarea"
	KindSelect   = "select"
	KindForm     = "form"
)

// Element is one interactive element discovered in the rendered page.
// Instances are immutable for the lifetime of one pipeline run.
type Element struct {
	ID            string   `json:"id"`
	Kind          string   `json:"kind"`
	Text          string   `json:"text"`
	Href          string   `json:"href,omitempty"`
	Selector      string   `json:"selector"`
	Visible       bool     `json:"visible"`
	Ancestry      []string `json:"ancestry"`
	DocumentOrder int      `json:"document_order"`
}

// Graph is the full interactive-element view of one page load, plus
// enough page context (title, raw HTML) to support degraded rendering
// when the text-view collaborator is unavailable.
type Graph struct {
	URL      string
	Title    string
	HTML     string
	SPA      bool
	Elements []Element
}

// Session describes the public metadata for a tracked browser page.
type Session struct {
	ID         string    `json:"id"`
	TargetID   string    `json:"target_id,omitempty"`
	URL        string    `json:"url,omitempty"`
	Title      string    `json:"title,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}
