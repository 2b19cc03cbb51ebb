package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/tree-sitter/tree-sitter-simplex/internal/config"
	"github.com/tree-sitter/tree-sitter-simplex/internal/grammar"
	"github.com/tree-sitter/tree-sitter-simplex/internal/history"
	"github.com/tree-sitter/tree-sitter-simplex/internal/observability"
	"github.com/tree-sitter/tree-sitter-simplex/internal/parser"
	"github.com/tree-sitter/tree-sitter-simplex/internal/ui"
	"github.com/tree-sitter/tree-sitter-simplex/internal/watcher"
)

// App wires the grammar loader, parse service, watcher, history store, and
// observability endpoints together for the CLI.
type App struct {
	cfg    *config.Config
	loader *grammar.Loader
	parser *parser.Parser

	store    *history.Store
	obs      *observability.Server
	shutdown func(context.Context) error

	watcher *watcher.Watcher

	mu       sync.Mutex
	results  map[string]parser.Result
	sessions map[string]*parser.Session

	program *tea.Program
}

func NewApp(cfg *config.Config) (*App, error) {
	registry, err := cfg.LanguageRegistry()
	if err != nil {
		return nil, err
	}

	loader, err := grammar.NewLoaderWithRegistry(cfg.GrammarsPath, registry, cfg.VerificationEnabled())
	if err != nil {
		return nil, err
	}

	app := &App{
		cfg:      cfg,
		loader:   loader,
		parser:   parser.NewParser(loader),
		results:  make(map[string]parser.Result),
		sessions: make(map[string]*parser.Session),
	}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return nil, err
		}
		app.store = store
	}

	if cfg.Observability.Enabled {
		shutdown, err := observability.InitTracing(context.Background(), cfg.Observability.OTLPEndpoint)
		if err != nil {
			slog.Warn("tracing disabled", "error", err)
		} else {
			app.shutdown = shutdown
		}
		app.obs = observability.NewServer(cfg.Observability.Addr, app)
		if err := app.obs.Start(context.Background()); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Check implements observability.HealthChecker.
func (a *App) Check(ctx context.Context) observability.HealthStatus {
	return observability.HealthStatus{
		Status:   "up",
		Grammars: a.loader.Languages(),
	}
}

// InitialScan parses every supported file under the configured paths.
func (a *App) InitialScan(ctx context.Context) error {
	for _, root := range a.cfg.WatchPaths {
		err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil || info == nil || info.IsDir() {
				return nil
			}
			if !a.parser.IsSupportedPath(path) {
				return nil
			}
			a.parsePath(ctx, path)
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// parsePath parses one file, keeping a live session per tracked file so
// that re-parses after a change reuse the previous tree.
func (a *App) parsePath(ctx context.Context, path string) {
	content, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("failed to read file", "path", path, "error", err)
		return
	}

	langID := a.parser.GetLanguage(path)
	if langID == "" {
		slog.Debug("parse skipped", "path", path)
		return
	}

	a.mu.Lock()
	sess := a.sessions[path]
	a.mu.Unlock()

	var result *parser.Result
	if sess != nil {
		result, err = sess.Update(ctx, content)
		if err != nil {
			slog.Warn("incremental reparse failed", "path", path, "error", err)
			a.dropSession(path)
			return
		}
	} else {
		sess, err = a.parser.NewSession(ctx, langID, content)
		if err != nil {
			slog.Debug("parse skipped", "path", path, "error", err)
			return
		}
		a.mu.Lock()
		a.sessions[path] = sess
		a.mu.Unlock()
		snapshot := sess.Result()
		result = &snapshot
	}
	result.Path = path

	a.mu.Lock()
	a.results[path] = *result
	a.mu.Unlock()

	if a.store != nil {
		if _, err := a.store.RecordRun(history.Run{
			Path:      result.Path,
			Grammar:   result.Grammar,
			Duration:  result.Duration,
			NodeCount: result.NodeCount,
			HasError:  result.HasError,
		}); err != nil {
			slog.Warn("failed to record parse run", "path", path, "error", err)
		}
	}
}

// StartWatcher begins watching the configured paths and re-parses changed
// files.
func (a *App) StartWatcher(ctx context.Context) error {
	w, err := watcher.NewWatcher(
		a.cfg.Watch.Debounce,
		a.cfg.Watch.EventsPerSec,
		a.cfg.Watch.EventBurst,
		a.cfg.Exclude.Dirs,
		a.cfg.Exclude.Files,
		func(paths []string) {
			for _, path := range paths {
				if _, err := os.Stat(path); err != nil {
					a.dropSession(path)
					continue
				}
				a.parsePath(ctx, path)
			}
			a.pushResults()
		},
	)
	if err != nil {
		return err
	}
	w.SetLanguageFilters(a.parser.SupportedExtensions(), a.parser.SupportedFilenames())
	a.watcher = w
	return w.Start(a.cfg.WatchPaths)
}

// dropSession forgets a tracked file, releasing its parse session.
func (a *App) dropSession(path string) {
	a.mu.Lock()
	sess := a.sessions[path]
	delete(a.sessions, path)
	delete(a.results, path)
	a.mu.Unlock()
	if sess != nil {
		sess.Close()
	}
}

// RunUI blocks running the watch dashboard until the user quits.
func (a *App) RunUI() error {
	a.program = tea.NewProgram(ui.NewModel(), tea.WithAltScreen())
	a.pushResults()
	_, err := a.program.Run()
	return err
}

func (a *App) pushResults() {
	if a.program == nil {
		return
	}
	a.program.Send(ui.ResultsMsg{Results: a.sortedResults()})
}

func (a *App) sortedResults() []parser.Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]parser.Result, 0, len(a.results))
	for _, result := range a.results {
		out = append(out, result)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// PrintSummary writes a per-grammar overview of the last scan to stdout.
func (a *App) PrintSummary() {
	results := a.sortedResults()

	files := make(map[string]int)
	errors := make(map[string]int)
	for _, result := range results {
		files[result.Grammar]++
		if result.HasError {
			errors[result.Grammar]++
		}
	}

	grammars := make([]string, 0, len(files))
	for name := range files {
		grammars = append(grammars, name)
	}
	sort.Strings(grammars)

	fmt.Printf("Parsed %d files\n", len(results))
	for _, name := range grammars {
		fmt.Printf("  %-12s %4d files, %d with syntax errors\n", name, files[name], errors[name])
	}
}

// Close releases the app's resources.
func (a *App) Close() {
	if a.watcher != nil {
		_ = a.watcher.Close()
	}
	a.mu.Lock()
	for path, sess := range a.sessions {
		sess.Close()
		delete(a.sessions, path)
	}
	a.mu.Unlock()
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.obs != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = a.obs.Stop(ctx)
	}
	if a.shutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = a.shutdown(ctx)
	}
}

func runVerify(cfg *config.Config) int {
	registry, err := cfg.LanguageRegistry()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building registry: %v\n", err)
		return 1
	}

	issues, err := grammar.VerifyRegistryArtifacts(cfg.GrammarsPath, registry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Verification failed: %v\n", err)
		return 1
	}
	if len(issues) == 0 {
		fmt.Println("All grammar artifacts verified.")
		return 0
	}

	for _, issue := range issues {
		if issue.ArtifactPath != "" {
			fmt.Printf("%s: %s %s: %s\n", issue.Language, issue.ArtifactKind, issue.ArtifactPath, issue.Reason)
		} else {
			fmt.Printf("%s: %s\n", issue.Language, issue.Reason)
		}
	}
	return 1
}
