// Package recorder keeps a rotating flight recorder of browsing sessions:
// one JSONL trace per session capturing navigations, source degradations,
// rendered page summaries, and executed actions. Traces exist to answer
// "what did the pipeline see and produce" after the fact.
package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

const (
	// MaxTraces is how many session traces to keep on disk.
	MaxTraces = 3
	// DefaultDir is where traces land when no directory is configured.
	DefaultDir = ".weft/traces"
)

// Event is one record in a session trace.
type Event struct {
	Timestamp time.Time   `json:"ts"`
	Kind      string      `json:"kind"`
	URL       string      `json:"url,omitempty"`
	Detail    interface{} `json:"detail,omitempty"`
}

// PageSummary is the detail payload for a "page" event.
type PageSummary struct {
	Title string `json:"title"`
	Lines int    `json:"lines"`
	Refs  int    `json:"refs"`
}

// ActionDetail is the detail payload for an "action" event.
type ActionDetail struct {
	Ref    int    `json:"ref"`
	Action string `json:"action"`
	Target string `json:"target"`
}

// Recorder writes one trace file per session and prunes old ones.
// A nil *Recorder is a valid no-op recorder.
type Recorder struct {
	mu      sync.Mutex
	file    *os.File
	encoder *json.Encoder
	dir     string
}

// New creates a recorder rooted at dir, creating it if needed.
func New(dir string) (*Recorder, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Recorder{dir: dir}, nil
}

// Start opens a fresh trace file for sessionID, pruning older traces so at
// most MaxTraces remain.
func (r *Recorder) Start(sessionID string) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		_ = r.file.Close()
		r.file = nil
	}

	if err := r.prune(); err != nil {
		return fmt.Errorf("prune traces: %w", err)
	}

	name := fmt.Sprintf("trace_%s_%d.jsonl", sessionID, time.Now().UnixMilli())
	f, err := os.Create(filepath.Join(r.dir, name))
	if err != nil {
		return err
	}

	r.file = f
	r.encoder = json.NewEncoder(f)
	return nil
}

// Navigate records the start of a navigation.
func (r *Recorder) Navigate(url string) {
	r.log("navigate", url, nil)
}

// Degraded records a page source that failed and was dropped from the run.
func (r *Recorder) Degraded(url, source string, err error) {
	detail := map[string]string{"source": source}
	if err != nil {
		detail["error"] = err.Error()
	}
	r.log("degraded", url, detail)
}

// Page records a summary of a rendered page.
func (r *Recorder) Page(url string, summary PageSummary) {
	r.log("page", url, summary)
}

// Action records an executed mapping action.
func (r *Recorder) Action(url string, detail ActionDetail) {
	r.log("action", url, detail)
}

func (r *Recorder) log(kind, url string, detail interface{}) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.encoder == nil {
		return
	}
	_ = r.encoder.Encode(Event{
		Timestamp: time.Now(),
		Kind:      kind,
		URL:       url,
		Detail:    detail,
	})
}

// prune deletes the oldest traces, leaving room for one new file under
// the MaxTraces cap.
func (r *Recorder) prune() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return err
	}

	type trace struct {
		name string
		mod  time.Time
	}
	var traces []trace
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".jsonl" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		traces = append(traces, trace{e.Name(), info.ModTime()})
	}

	sort.Slice(traces, func(i, j int) bool {
		return traces[i].mod.After(traces[j].mod)
	})

	for i := MaxTraces - 1; i < len(traces); i++ {
		_ = os.Remove(filepath.Join(r.dir, traces[i].name))
	}
	return nil
}

// Close finishes the current trace.
func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		r.encoder = nil
		return err
	}
	return nil
}
