package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiscoverWorkspace_Found(t *testing.T) {
	// Create a temp dir with .weft/config.yaml
	tmpDir := t.TempDir()
	wsDir := filepath.Join(tmpDir, WorkspaceDirName)
	if err := os.MkdirAll(wsDir, 0755); err != nil {
		t.Fatalf("failed to create workspace dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(wsDir, WorkspaceConfigFile), []byte("display:\n  width: 100\n"), 0644); err != nil {
		t.Fatalf("failed to write workspace config: %v", err)
	}

	result, err := DiscoverWorkspace(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != tmpDir {
		t.Errorf("expected %q, got %q", tmpDir, result)
	}
}

func TestDiscoverWorkspace_WalkUp(t *testing.T) {
	// Create a temp dir with .weft/config.yaml, then start search 2 levels deep
	tmpDir := t.TempDir()
	wsDir := filepath.Join(tmpDir, WorkspaceDirName)
	if err := os.MkdirAll(wsDir, 0755); err != nil {
		t.Fatalf("failed to create workspace dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(wsDir, WorkspaceConfigFile), []byte("display:\n  width: 100\n"), 0644); err != nil {
		t.Fatalf("failed to write workspace config: %v", err)
	}

	// Create nested dirs 2 levels down
	nested := filepath.Join(tmpDir, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("failed to create nested dirs: %v", err)
	}

	result, err := DiscoverWorkspace(nested)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != tmpDir {
		t.Errorf("expected %q, got %q", tmpDir, result)
	}
}

func TestDiscoverWorkspace_NotFound(t *testing.T) {
	tmpDir := t.TempDir()

	result, err := DiscoverWorkspace(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "" {
		t.Errorf("expected empty string, got %q", result)
	}
}

func TestDiscoverWorkspace_MaxDepth(t *testing.T) {
	// Create workspace at root, but start search deeper than MaxSearchDepth
	tmpDir := t.TempDir()
	wsDir := filepath.Join(tmpDir, WorkspaceDirName)
	if err := os.MkdirAll(wsDir, 0755); err != nil {
		t.Fatalf("failed to create workspace dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(wsDir, WorkspaceConfigFile), []byte("display:\n  width: 100\n"), 0644); err != nil {
		t.Fatalf("failed to write workspace config: %v", err)
	}

	// Create a path deeper than MaxSearchDepth
	parts := make([]string, MaxSearchDepth+2)
	parts[0] = tmpDir
	for i := 1; i <= MaxSearchDepth+1; i++ {
		parts[i] = "d"
	}
	deepPath := filepath.Join(parts...)
	if err := os.MkdirAll(deepPath, 0755); err != nil {
		t.Fatalf("failed to create deep path: %v", err)
	}

	result, err := DiscoverWorkspace(deepPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "" {
		t.Errorf("expected empty string (beyond max depth), got %q", result)
	}
}

func TestLoadWithWorkspace_DefaultsOnly(t *testing.T) {
	cfg, wsDir, err := LoadWithWorkspace("", WorkspaceOptions{Disable: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wsDir != "" {
		t.Errorf("expected empty workspace dir, got %q", wsDir)
	}
	if cfg.TextView.Engine != "lynx" {
		t.Errorf("expected default textview engine, got %q", cfg.TextView.Engine)
	}
	if cfg.Display.GetWidth() != 80 {
		t.Errorf("expected default display width 80, got %d", cfg.Display.GetWidth())
	}
}

func TestLoadWithWorkspace_WorkspaceOverridesDefaults(t *testing.T) {
	// Set up workspace with a custom denylist
	tmpDir := t.TempDir()
	wsDir := filepath.Join(tmpDir, WorkspaceDirName)
	if err := os.MkdirAll(wsDir, 0755); err != nil {
		t.Fatalf("failed to create workspace dir: %v", err)
	}
	wsConfig := `
merge:
  denylist_patterns:
    - cookie-banner
    - newsletter
`
	if err := os.WriteFile(filepath.Join(wsDir, WorkspaceConfigFile), []byte(wsConfig), 0644); err != nil {
		t.Fatalf("failed to write workspace config: %v", err)
	}

	cfg, resultDir, err := LoadWithWorkspace("", WorkspaceOptions{ExplicitDir: tmpDir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resultDir != tmpDir {
		t.Errorf("expected workspace dir %q, got %q", tmpDir, resultDir)
	}
	if len(cfg.Merge.DenylistPatterns) != 2 || cfg.Merge.DenylistPatterns[0] != "cookie-banner" {
		t.Errorf("expected denylist [cookie-banner, newsletter], got %v", cfg.Merge.DenylistPatterns)
	}
	// Defaults for unset fields should remain
	if cfg.TextView.Engine != "lynx" {
		t.Errorf("expected default textview engine, got %q", cfg.TextView.Engine)
	}
}

func TestLoadWithWorkspace_ExplicitOverridesWorkspace(t *testing.T) {
	// Set up workspace with one oracle provider
	tmpDir := t.TempDir()
	wsDir := filepath.Join(tmpDir, WorkspaceDirName)
	if err := os.MkdirAll(wsDir, 0755); err != nil {
		t.Fatalf("failed to create workspace dir: %v", err)
	}
	wsConfig := `
oracle:
  providers:
    - provider: ollama
      model: ws-model
`
	if err := os.WriteFile(filepath.Join(wsDir, WorkspaceConfigFile), []byte(wsConfig), 0644); err != nil {
		t.Fatalf("failed to write workspace config: %v", err)
	}

	// Create explicit config that overrides the provider chain
	explicitPath := filepath.Join(tmpDir, "explicit.yaml")
	explicitConfig := `
oracle:
  providers:
    - provider: anthropic
      model: explicit-model
    - provider: openai
`
	if err := os.WriteFile(explicitPath, []byte(explicitConfig), 0644); err != nil {
		t.Fatalf("failed to write explicit config: %v", err)
	}

	cfg, _, err := LoadWithWorkspace(explicitPath, WorkspaceOptions{ExplicitDir: tmpDir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Explicit config should override workspace providers
	if len(cfg.Oracle.Providers) != 2 || cfg.Oracle.Providers[0].Provider != "anthropic" {
		t.Errorf("expected explicit providers to override workspace, got %v", cfg.Oracle.Providers)
	}
}

func TestLoadWithWorkspace_PartialYAML(t *testing.T) {
	// Workspace only sets one field
	tmpDir := t.TempDir()
	wsDir := filepath.Join(tmpDir, WorkspaceDirName)
	if err := os.MkdirAll(wsDir, 0755); err != nil {
		t.Fatalf("failed to create workspace dir: %v", err)
	}
	wsConfig := `
browser:
  viewport_width: 800
`
	if err := os.WriteFile(filepath.Join(wsDir, WorkspaceConfigFile), []byte(wsConfig), 0644); err != nil {
		t.Fatalf("failed to write workspace config: %v", err)
	}

	cfg, _, err := LoadWithWorkspace("", WorkspaceOptions{ExplicitDir: tmpDir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Changed field
	if cfg.Browser.ViewportWidth != 800 {
		t.Errorf("expected viewport width 800, got %d", cfg.Browser.ViewportWidth)
	}
	// Unchanged defaults
	if cfg.Browser.GetViewportHeight() != 1024 {
		t.Errorf("expected default viewport height 1024, got %d", cfg.Browser.GetViewportHeight())
	}
	if cfg.TextView.LynxPath != "lynx" {
		t.Errorf("expected default lynx path, got %q", cfg.TextView.LynxPath)
	}
}

func TestLoadWithWorkspace_Disabled(t *testing.T) {
	// Create a workspace dir, but disable discovery
	tmpDir := t.TempDir()
	wsDir := filepath.Join(tmpDir, WorkspaceDirName)
	if err := os.MkdirAll(wsDir, 0755); err != nil {
		t.Fatalf("failed to create workspace dir: %v", err)
	}
	wsConfig := `
textview:
  engine: builtin
`
	if err := os.WriteFile(filepath.Join(wsDir, WorkspaceConfigFile), []byte(wsConfig), 0644); err != nil {
		t.Fatalf("failed to write workspace config: %v", err)
	}

	cfg, resultDir, err := LoadWithWorkspace("", WorkspaceOptions{Disable: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resultDir != "" {
		t.Errorf("expected empty workspace dir with Disable, got %q", resultDir)
	}
	// Engine should remain at default since workspace was disabled
	if cfg.TextView.Engine != "lynx" {
		t.Errorf("expected default textview engine when workspace disabled, got %q", cfg.TextView.Engine)
	}
}

func TestInitWorkspace_Creates(t *testing.T) {
	tmpDir := t.TempDir()

	if err := InitWorkspace(tmpDir); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wsDir := filepath.Join(tmpDir, WorkspaceDirName)
	info, err := os.Stat(wsDir)
	if err != nil {
		t.Fatalf("expected directory %q to exist: %v", wsDir, err)
	}
	if !info.IsDir() {
		t.Errorf("expected %q to be a directory", wsDir)
	}

	// Verify config template
	configPath := filepath.Join(wsDir, WorkspaceConfigFile)
	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config template: %v", err)
	}
	if len(data) == 0 {
		t.Error("expected non-empty config template")
	}
}

func TestInitWorkspace_AlreadyExists(t *testing.T) {
	tmpDir := t.TempDir()

	// Create workspace first
	if err := InitWorkspace(tmpDir); err != nil {
		t.Fatalf("first init failed: %v", err)
	}

	// Second init should fail
	err := InitWorkspace(tmpDir)
	if err == nil {
		t.Error("expected error when workspace already exists")
	}
}
