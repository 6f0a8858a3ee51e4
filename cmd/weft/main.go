package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"weft/internal/browse"
	"weft/internal/config"
	"weft/internal/display"
	"weft/internal/reconcile"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	configPath  string
	verbose     bool
	noOracle    bool
	noWorkspace bool
	provider    string
	width       int
	traceDir    string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "weft [url]",
	Short: "weft - text-mode browser with reconciled interaction numbering",
	Long: `weft renders pages as readable text while keeping every interactive
element reachable through a small numbered mapping.

Two views of each page are fetched in parallel - a linearized text rendering
and a full interactive-element graph from a real browser - then reconciled
into one canonical numbered page. Type an element's number to act on it.`,
	Args: cobra.MaximumNArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapCfg := zap.NewProductionConfig()
		if verbose {
			zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapCfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		startURL := ""
		if len(args) > 0 {
			startURL = args[0]
		}
		return runInteractive(startURL)
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump <url>",
	Short: "Render one page and print the numbered text",
	Long: `Fetches a single URL, reconciles both views, and prints the numbered
page followed by the element listing. Non-interactive; suitable for scripts.`,
	Args: cobra.ExactArgs(1),
	RunE: runDump,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a .weft/ workspace config in the current directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return err
		}
		if err := config.InitWorkspace(cwd); err != nil {
			return err
		}
		fmt.Printf("created %s\n", filepath.Join(cwd, config.WorkspaceDirName, config.WorkspaceConfigFile))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default: workspace discovery)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noOracle, "no-oracle", false, "skip the classification oracle, place elements heuristically")
	rootCmd.PersistentFlags().StringVar(&provider, "provider", "", "use a single oracle provider (anthropic, openai, ollama)")
	rootCmd.PersistentFlags().BoolVar(&noWorkspace, "no-workspace", false, "skip .weft/ workspace config discovery")
	rootCmd.PersistentFlags().IntVar(&width, "width", 0, "text rendering width (overrides config)")
	rootCmd.PersistentFlags().StringVar(&traceDir, "trace", "", "record a session trace (jsonl) under this directory")

	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(initCmd)
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (config.Config, error) {
	cfg, wsDir, err := config.LoadWithWorkspace(configPath, config.WorkspaceOptions{Disable: noWorkspace})
	if err != nil {
		return config.Config{}, err
	}
	if wsDir != "" {
		logger.Debug("using workspace config", zap.String("dir", wsDir))
	}
	if width > 0 {
		cfg.TextView.Width = width
		cfg.Display.Width = width
	}
	return cfg, nil
}

func newSession(ctx context.Context) (*browse.Session, *display.Renderer, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	session, err := browse.NewSession(ctx, cfg, browse.Options{
		DisableOracle: noOracle,
		Provider:      provider,
		TraceDir:      traceDir,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	return session, display.NewRenderer(cfg.Display), nil
}

func runDump(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, renderer, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	page, err := session.Navigate(ctx, normalizeURL(args[0]))
	if err != nil {
		return err
	}

	fmt.Print(renderer.Page(page))
	fmt.Print(renderer.Links(page.Mapping))
	return nil
}

func runInteractive(startURL string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	session, renderer, err := newSession(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	fmt.Print(renderer.Help())

	show := func(page *reconcile.RenderedPage, err error) {
		showResult(renderer, page, err)
	}

	if startURL != "" {
		show(session.Navigate(ctx, normalizeURL(startURL)))
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("weft> ")
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch input {
		case "q", "quit", "exit":
			return nil
		case "h", "help":
			fmt.Print(renderer.Help())
			continue
		case "l", "links":
			if page := session.Current(); page != nil {
				fmt.Print(renderer.Links(page.Mapping))
			} else {
				fmt.Println("no page loaded")
			}
			continue
		case "b", "back":
			show(session.Back(ctx))
			continue
		case "f", "forward":
			show(session.Forward(ctx))
			continue
		case "r", "refresh":
			show(session.Refresh(ctx))
			continue
		}

		// "<number>" acts on an element; "<number> <text>" fills it.
		ref, value, isRef := parseRef(input)
		if isRef {
			show(session.Act(ctx, ref, value))
			continue
		}

		show(session.Navigate(ctx, normalizeURL(input)))
	}
	return scanner.Err()
}

func showResult(renderer *display.Renderer, page *reconcile.RenderedPage, err error) {
	if err != nil {
		fmt.Print(renderer.Frame(fmt.Sprintf("error: %v", err)))
		return
	}
	fmt.Print(renderer.Page(page))
}

func parseRef(input string) (int, string, bool) {
	head, rest, _ := strings.Cut(input, " ")
	ref, err := strconv.Atoi(head)
	if err != nil || ref < 1 {
		return 0, "", false
	}
	return ref, strings.TrimSpace(rest), true
}

func normalizeURL(raw string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	return "https://" + raw
}
