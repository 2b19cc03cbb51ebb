package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/tree-sitter/tree-sitter-simplex/internal/config"
)

var (
	configPath = flag.String("config", "./simplex-host.toml", "Path to config file")
	once       = flag.Bool("once", false, "Run single scan and exit")
	watch      = flag.Bool("watch", false, "Watch paths for changes (the default unless -once is set)")
	uiFlag     = flag.Bool("ui", false, "Enable terminal UI mode")
	verify     = flag.Bool("verify", false, "Verify grammar artifacts against the manifest and exit")
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	version    = flag.Bool("version", false, "Print version and exit")
)

const VERSION = "1.0.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("simplex-host v%s\n", VERSION)
		os.Exit(0)
	}

	// Setup logging
	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}

	output := os.Stdout
	if *uiFlag {
		// In UI mode, avoid stdout logs corrupting the TUI.
		logPath := resolveLogPath()
		if err := os.MkdirAll(filepath.Dir(logPath), 0700); err != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to create log dir for %s: %v\n", logPath, err)
		} else {
			f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
			if err == nil {
				output = f
			} else {
				fmt.Fprintf(os.Stderr, "warning: failed to open log file %s: %v\n", logPath, err)
			}
		}
	}

	logger := slog.New(slog.NewTextHandler(output, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		if os.IsNotExist(err) && *configPath == "./simplex-host.toml" {
			cfg = config.Default()
		} else {
			slog.Error("failed to load config", "error", err)
			os.Exit(1)
		}
	}

	if flag.NArg() > 0 {
		cfg.WatchPaths = flag.Args()
	}

	// Make grammar path absolute relative to the current working directory if it's relative
	if !filepath.IsAbs(cfg.GrammarsPath) {
		cwd, _ := os.Getwd()
		cfg.GrammarsPath = filepath.Join(cwd, cfg.GrammarsPath)
	}

	if *verify {
		os.Exit(runVerify(cfg))
	}

	app, err := NewApp(cfg)
	if err != nil {
		slog.Error("failed to initialize app", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	ctx := context.Background()

	if err := app.InitialScan(ctx); err != nil {
		slog.Error("initial scan failed", "error", err)
		os.Exit(1)
	}

	if !watchMode(*once, *watch) {
		app.PrintSummary()
		os.Exit(0)
	}

	if err := app.StartWatcher(ctx); err != nil {
		slog.Error("failed to start watcher", "error", err)
		os.Exit(1)
	}

	if *uiFlag {
		if err := app.RunUI(); err != nil {
			slog.Error("failed to run UI", "error", err)
			os.Exit(1)
		}
	} else {
		app.PrintSummary()
		// Block forever
		select {}
	}
}

// watchMode reports whether the host keeps watching after the initial
// scan. Watching is the default; -once disables it unless -watch is given
// explicitly.
func watchMode(once, watch bool) bool {
	return watch || !once
}

func resolveLogPath() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "simplex-host", "simplex-host.log")
	}

	home, err := os.UserHomeDir()
	if err == nil && home != "" {
		return filepath.Join(home, ".local", "state", "simplex-host", "simplex-host.log")
	}

	return "simplex-host.log"
}
