package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// WorkspaceDirName is the directory name for project-level weft config.
	WorkspaceDirName = ".weft"
	// WorkspaceConfigFile is the config file name inside the workspace directory.
	WorkspaceConfigFile = "config.yaml"
	// MaxSearchDepth limits how many parent directories to walk when discovering a workspace.
	MaxSearchDepth = 10
)

// WorkspaceOptions controls workspace discovery behavior.
type WorkspaceOptions struct {
	// Disable skips workspace discovery entirely (--no-workspace flag).
	Disable bool
	// ExplicitDir uses this directory as workspace root instead of walking up (--workspace-dir flag).
	ExplicitDir string
}

// Config captures all tunable settings for weft.
type Config struct {
	Browser  BrowserConfig  `yaml:"browser"`
	TextView TextViewConfig `yaml:"textview"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Merge    MergeConfig    `yaml:"merge"`
	Display  DisplayConfig  `yaml:"display"`
}

// BrowserConfig configures how we attach to or launch Chrome for Rod.
type BrowserConfig struct {
	// Control endpoint for Rod (e.g., ws://localhost:9222). Optional; when empty
	// Rod's launcher finds or downloads a browser binary.
	DebuggerURL string `yaml:"debugger_url"`
	// Optional launch command to start Chrome in detached mode
	// (e.g., ["chrome", "--remote-debugging-port=9222"]).
	Launch []string `yaml:"launch"`
	// Headless controls whether Chrome runs in headless mode (default: true).
	Headless *bool `yaml:"headless"`
	// Default navigation timeout (e.g., "30s").
	DefaultNavigationTimeout string `yaml:"default_navigation_timeout"`
	// Viewport width for new sessions (default: 1280).
	ViewportWidth int `yaml:"viewport_width"`
	// Viewport height for new sessions (default: 1024).
	ViewportHeight int `yaml:"viewport_height"`
	// UserAgent overrides the browser user agent when non-empty.
	UserAgent string `yaml:"user_agent"`
}

// TextViewConfig configures the fast linearized text renderer.
type TextViewConfig struct {
	// Engine selects the renderer: "lynx" (subprocess) or "builtin" (HTTP + goquery).
	Engine string `yaml:"engine"`
	// Path to the lynx binary (default: "lynx", resolved via PATH).
	LynxPath string `yaml:"lynx_path"`
	// Rendered line width (default: 80).
	Width int `yaml:"width"`
	// Fetch timeout for one page (e.g., "30s").
	FetchTimeout string `yaml:"fetch_timeout"`
	// Readability isolates the main article body in builtin mode (default: false).
	Readability bool `yaml:"readability"`
}

// OracleConfig configures the classification oracle chain used by the Disambiguator.
type OracleConfig struct {
	// Enabled toggles oracle calls entirely; when false every unknown element
	// falls through to the heuristic default placement.
	Enabled *bool `yaml:"enabled"`
	// Per-call timeout (e.g., "20s").
	Timeout string `yaml:"timeout"`
	// Retries per provider on malformed responses (default: 2).
	Retries int `yaml:"retries"`
	// SnapshotLimit caps the text snapshot sent to the oracle, in bytes (default: 3000).
	SnapshotLimit int `yaml:"snapshot_limit"`
	// Providers is the ordered failover chain. The first entry is primary.
	Providers []ProviderConfig `yaml:"providers"`
}

// ProviderConfig identifies one oracle provider in the failover chain.
type ProviderConfig struct {
	// Provider name: "anthropic", "openai", or "ollama".
	Provider string `yaml:"provider"`
	// Model name; provider-specific default applies when empty.
	Model string `yaml:"model"`
	// APIKey overrides the provider's environment variable when non-empty.
	APIKey string `yaml:"api_key"`
	// BaseURL for self-hosted providers (ollama default: http://localhost:11434).
	BaseURL string `yaml:"base_url"`
}

// MergeConfig tunes the reconciliation pipeline.
type MergeConfig struct {
	// DenylistPatterns are extra selector/text substrings categorized as noise,
	// on top of the built-in ad/track/analytics/pixel signatures.
	DenylistPatterns []string `yaml:"denylist_patterns"`
}

// DisplayConfig controls terminal output.
type DisplayConfig struct {
	// Width of the page frame (default: 80).
	Width int `yaml:"width"`
	// Color toggles lipgloss styling (default: true).
	Color *bool `yaml:"color"`
}

// DefaultConfig provides reasonable defaults for local use.
func DefaultConfig() Config {
	return Config{
		Browser: BrowserConfig{
			DefaultNavigationTimeout: "30s",
			ViewportWidth:            1280,
			ViewportHeight:           1024,
		},
		TextView: TextViewConfig{
			Engine:       "lynx",
			LynxPath:     "lynx",
			Width:        80,
			FetchTimeout: "30s",
		},
		Oracle: OracleConfig{
			Timeout:       "20s",
			Retries:       2,
			SnapshotLimit: 3000,
			Providers: []ProviderConfig{
				{Provider: "ollama", Model: "llama3.2:3b"},
			},
		},
		Display: DisplayConfig{
			Width: 80,
		},
	}
}

// Load reads YAML config from disk and overlays defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, errors.New("config path is required")
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

// DiscoverWorkspace walks up from startDir looking for a .weft/config.yaml file.
// Returns the workspace root directory (parent of .weft/) or empty string if not found.
func DiscoverWorkspace(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving start directory: %w", err)
	}

	for i := 0; i < MaxSearchDepth; i++ {
		candidate := filepath.Join(dir, WorkspaceDirName, WorkspaceConfigFile)
		if _, err := os.Stat(candidate); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}

	return "", nil
}

// LoadWithWorkspace implements multi-layer config merge:
//
//	DefaultConfig() <- .weft/config.yaml <- explicit --config <- CLI flags
//
// Returns the merged config and the workspace directory (empty if none found).
func LoadWithWorkspace(explicitConfig string, opts WorkspaceOptions) (Config, string, error) {
	cfg := DefaultConfig()
	wsDir := ""

	// Layer 1: Workspace config (if not disabled)
	if !opts.Disable {
		var err error
		if opts.ExplicitDir != "" {
			// Verify the explicit workspace dir has a config
			candidate := filepath.Join(opts.ExplicitDir, WorkspaceDirName, WorkspaceConfigFile)
			if _, statErr := os.Stat(candidate); statErr == nil {
				wsDir = opts.ExplicitDir
			}
		} else {
			cwd, cwdErr := os.Getwd()
			if cwdErr != nil {
				return cfg, "", fmt.Errorf("getting working directory: %w", cwdErr)
			}
			wsDir, err = DiscoverWorkspace(cwd)
			if err != nil {
				return cfg, "", fmt.Errorf("discovering workspace: %w", err)
			}
		}

		if wsDir != "" {
			wsConfigPath := filepath.Join(wsDir, WorkspaceDirName, WorkspaceConfigFile)
			raw, err := os.ReadFile(wsConfigPath)
			if err != nil {
				return cfg, "", fmt.Errorf("reading workspace config %s: %w", wsConfigPath, err)
			}
			if err := yaml.Unmarshal(raw, &cfg); err != nil {
				return cfg, "", fmt.Errorf("parsing workspace config %s: %w", wsConfigPath, err)
			}
		}
	}

	// Layer 2: Explicit config file (--config flag)
	if explicitConfig != "" {
		raw, err := os.ReadFile(explicitConfig)
		if err != nil {
			return cfg, wsDir, fmt.Errorf("reading explicit config %s: %w", explicitConfig, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, wsDir, fmt.Errorf("parsing explicit config %s: %w", explicitConfig, err)
		}
	}

	return cfg, wsDir, cfg.Validate()
}

// InitWorkspace creates a .weft/ directory with a template config at root.
func InitWorkspace(root string) error {
	wsDir := filepath.Join(root, WorkspaceDirName)

	if _, err := os.Stat(wsDir); err == nil {
		return fmt.Errorf("workspace directory already exists: %s", wsDir)
	}

	if err := os.MkdirAll(wsDir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", wsDir, err)
	}

	templateConfig := `# weft project-level configuration
# Values here override defaults but are overridden by --config and CLI flags.

# textview:
#   engine: lynx
#   width: 80

# oracle:
#   timeout: "20s"
#   providers:
#     - provider: anthropic
#       model: claude-3-5-haiku-latest
#     - provider: ollama
#       model: llama3.2:3b

# merge:
#   denylist_patterns:
#     - cookie-banner
#     - newsletter
`
	configPath := filepath.Join(wsDir, WorkspaceConfigFile)
	if err := os.WriteFile(configPath, []byte(templateConfig), 0644); err != nil {
		return fmt.Errorf("writing config template: %w", err)
	}

	return nil
}

// Validate ensures required fields exist so a run behaves deterministically.
func (c *Config) Validate() error {
	switch c.TextView.Engine {
	case "", "lynx", "builtin":
	default:
		return fmt.Errorf("textview.engine must be \"lynx\" or \"builtin\", got %q", c.TextView.Engine)
	}
	if c.Oracle.Retries < 0 {
		return errors.New("oracle.retries must be >= 0")
	}
	for i, p := range c.Oracle.Providers {
		switch p.Provider {
		case "anthropic", "openai", "ollama":
		default:
			return fmt.Errorf("oracle.providers[%d].provider %q is not supported", i, p.Provider)
		}
	}
	return nil
}

// NavigationTimeout returns the parsed navigation timeout with a sane default.
func (b BrowserConfig) NavigationTimeout() time.Duration {
	if b.DefaultNavigationTimeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(b.DefaultNavigationTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// IsHeadless returns whether Chrome should run in headless mode (default: true).
func (b BrowserConfig) IsHeadless() bool {
	if b.Headless == nil {
		return true // default to headless
	}
	return *b.Headless
}

// GetViewportWidth returns the viewport width with a sane default.
func (b BrowserConfig) GetViewportWidth() int {
	if b.ViewportWidth <= 0 {
		return 1280
	}
	return b.ViewportWidth
}

// GetViewportHeight returns the viewport height with a sane default.
func (b BrowserConfig) GetViewportHeight() int {
	if b.ViewportHeight <= 0 {
		return 1024
	}
	return b.ViewportHeight
}

// Timeout returns the parsed text fetch timeout with a sane default.
func (t TextViewConfig) Timeout() time.Duration {
	if t.FetchTimeout == "" {
		return 30 * time.Second
	}
	d, err := time.ParseDuration(t.FetchTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetWidth returns the rendered line width with a sane default.
func (t TextViewConfig) GetWidth() int {
	if t.Width <= 0 {
		return 80
	}
	return t.Width
}

// CallTimeout returns the parsed per-call oracle timeout with a sane default.
func (o OracleConfig) CallTimeout() time.Duration {
	if o.Timeout == "" {
		return 20 * time.Second
	}
	d, err := time.ParseDuration(o.Timeout)
	if err != nil {
		return 20 * time.Second
	}
	return d
}

// IsEnabled returns whether the oracle chain should be consulted (default: true).
func (o OracleConfig) IsEnabled() bool {
	if o.Enabled == nil {
		return true
	}
	return *o.Enabled
}

// GetSnapshotLimit returns the snapshot byte cap with a sane default.
func (o OracleConfig) GetSnapshotLimit() int {
	if o.SnapshotLimit <= 0 {
		return 3000
	}
	return o.SnapshotLimit
}

// GetWidth returns the display frame width with a sane default.
func (d DisplayConfig) GetWidth() int {
	if d.Width <= 0 {
		return 80
	}
	return d.Width
}

// UseColor returns whether output should be styled (default: true).
func (d DisplayConfig) UseColor() bool {
	if d.Color == nil {
		return true
	}
	return *d.Color
}
