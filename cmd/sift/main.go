package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/mmcdole/sift/internal/artifact"
	"github.com/mmcdole/sift/internal/catalog"
	"github.com/mmcdole/sift/internal/config"
	"github.com/mmcdole/sift/internal/geocode"
	"github.com/mmcdole/sift/internal/log"
	"github.com/mmcdole/sift/internal/persist"
	"github.com/mmcdole/sift/internal/search"
	"github.com/mmcdole/sift/internal/source/fsys"
	"github.com/mmcdole/sift/internal/store"
	"github.com/mmcdole/sift/internal/tui"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	var showVersion bool
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.Parse()

	if showVersion {
		fmt.Printf("sift %s\n", Version)
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := log.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = log.NullLogger()
	}
	slog.SetDefault(logger)

	logger.Info("starting sift", "version", Version)

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("sift needs an interactive terminal")
	}

	if !cfg.IsConfigured() {
		if err := runSetupFlow(cfg); err != nil {
			return err
		}
		// Re-read so defaults merge with the saved path
		cfg, err = config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to reload config: %w", err)
		}
	}

	kv, err := store.Open(config.DefaultStatePath())
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}
	defer kv.Close()

	src := fsys.New(cfg.Library.Path, logger)
	cache := artifact.NewCacheStore(cfg.Cache.MaxEntries, logger)
	pipe := artifact.NewPipeline(src, cache, artifact.PipelineConfig{
		ImageTimeout: cfg.Fetch.ImageTimeout,
		ThumbTimeout: cfg.Fetch.ThumbTimeout,
		Retries:      cfg.Fetch.Retries,
		RetryBackoff: cfg.Fetch.RetryBackoff,
	}, logger)
	geo := geocode.NewQueue(geocode.Offline{}, cfg.Geocode.MinInterval, logger)
	sync := persist.New(kv, logger)

	cat := catalog.New(catalog.Config{
		Source:              src,
		Sync:                sync,
		Cache:               cache,
		Geo:                 geo,
		Logger:              logger,
		InitialWindowMonths: cfg.Library.InitialWindowMonths,
		AllowDelete:         cfg.Library.AllowDelete,
	})

	ctx := context.Background()
	if err := cat.Load(ctx); err != nil {
		return fmt.Errorf("failed to load library: %w", err)
	}

	finder := search.NewService(logger)
	model := tui.NewModel(cat, pipe, finder, logger)

	p := tea.NewProgram(model, tea.WithAltScreen())

	logger.Info("starting TUI")
	if _, err := p.Run(); err != nil {
		logger.Error("TUI error", "error", err)
		return fmt.Errorf("TUI error: %w", err)
	}

	if err := cat.SaveState(); err != nil {
		logger.Error("failed to save state on shutdown", "error", err)
	}
	logger.Info("shutting down")
	return nil
}

// runSetupFlow prompts for the library path on first run
func runSetupFlow(cfg *config.Config) error {
	fmt.Println()
	fmt.Println("Welcome to sift!")
	fmt.Println()

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("Enter the path to your media library: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		path := strings.TrimSpace(input)
		if path == "" {
			fmt.Println("Path cannot be empty. Please try again.")
			continue
		}

		info, err := os.Stat(path)
		if err != nil || !info.IsDir() {
			fmt.Printf("✗ %s is not a readable directory. Please try again.\n", path)
			continue
		}

		if err := config.SaveLibraryPath(path); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}
		fmt.Println()
		fmt.Println("✓ Configuration saved!")
		fmt.Println()
		return nil
	}
}
