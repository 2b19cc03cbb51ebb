package parser

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tree-sitter/tree-sitter-simplex/internal/errors"
	"github.com/tree-sitter/tree-sitter-simplex/internal/grammar"
	"github.com/tree-sitter/tree-sitter-simplex/internal/observability"
	"github.com/tree-sitter/tree-sitter-simplex/internal/util"
)

// Result summarizes one parse of a source file.
type Result struct {
	Path      string
	Grammar   string
	RootKind  string
	NodeCount int
	HasError  bool
	Duration  time.Duration
}

// Parser maps file paths to grammars and parses content with pooled
// tree-sitter parser instances.
type Parser struct {
	loader         *grammar.Loader
	extensions     map[string]string
	filenames      map[string]string
	testFileSuffix []string

	poolsMu sync.Mutex
	pools   map[string]*ParserPool
}

func NewParser(loader *grammar.Loader) *Parser {
	p := &Parser{
		loader:     loader,
		extensions: make(map[string]string),
		filenames:  make(map[string]string),
		pools:      make(map[string]*ParserPool),
	}
	for lang, spec := range loader.Registry() {
		if !spec.Enabled {
			continue
		}
		for _, ext := range spec.Extensions {
			p.extensions[strings.ToLower(ext)] = lang
		}
		for _, name := range spec.Filenames {
			p.filenames[strings.ToLower(path.Base(name))] = lang
		}
		p.testFileSuffix = append(p.testFileSuffix, spec.TestFileSuffixes...)
	}
	sort.Strings(p.testFileSuffix)
	return p
}

// ParseFile parses content under the grammar detected from its path.
func (p *Parser) ParseFile(ctx context.Context, filePath string, content []byte) (*Result, error) {
	lang := p.detectLanguage(filePath)
	if lang == "" {
		return nil, errors.New(errors.CodeNotSupported, "unsupported file type")
	}
	return p.Parse(ctx, lang, filePath, content)
}

// Parse parses content under a named grammar.
func (p *Parser) Parse(ctx context.Context, langID, filePath string, content []byte) (*Result, error) {
	_, span := observability.Tracer.Start(ctx, "Parser.Parse", trace.WithAttributes(
		attribute.String("grammar", langID),
		attribute.Int("source_bytes", len(content)),
	))
	defer span.End()

	pool, err := p.poolFor(langID)
	if err != nil {
		return nil, err
	}

	sp, err := pool.Get()
	if err != nil {
		return nil, err
	}
	defer pool.Put(sp)

	start := time.Now()
	tree := sp.Parse(content, nil)
	if tree == nil {
		return nil, errors.New(errors.CodeInternal, fmt.Sprintf("parse failed for %s", langID))
	}
	defer tree.Close()
	elapsed := time.Since(start)

	root := tree.RootNode()
	result := &Result{
		Path:      filePath,
		Grammar:   langID,
		RootKind:  root.Kind(),
		NodeCount: countNodes(root),
		HasError:  root.HasError(),
		Duration:  elapsed,
	}

	observability.ParsingDuration.WithLabelValues(langID).Observe(elapsed.Seconds())
	if result.HasError {
		observability.ParseErrorsTotal.WithLabelValues(langID).Inc()
	}
	return result, nil
}

func (p *Parser) poolFor(langID string) (*ParserPool, error) {
	p.poolsMu.Lock()
	defer p.poolsMu.Unlock()

	if pool, ok := p.pools[langID]; ok {
		return pool, nil
	}
	lang, err := p.loader.Get(langID)
	if err != nil {
		return nil, err
	}
	pool, err := NewParserPool(langID, lang)
	if err != nil {
		return nil, err
	}
	p.pools[langID] = pool
	return pool, nil
}

func (p *Parser) detectLanguage(filePath string) string {
	base := strings.ToLower(filepath.Base(filePath))
	if lang, ok := p.filenames[base]; ok {
		return lang
	}
	ext := strings.ToLower(filepath.Ext(filePath))
	if lang, ok := p.extensions[ext]; ok {
		return lang
	}
	return ""
}

func (p *Parser) IsSupportedPath(filePath string) bool {
	return p.GetLanguage(filePath) != ""
}

func (p *Parser) GetLanguage(filePath string) string {
	return p.detectLanguage(filePath)
}

func (p *Parser) IsTestFile(filePath string) bool {
	base := strings.ToLower(filepath.Base(filePath))
	for _, suffix := range p.testFileSuffix {
		if strings.HasSuffix(base, strings.ToLower(suffix)) {
			return true
		}
	}
	return false
}

func (p *Parser) SupportedExtensions() []string {
	return util.SortedStringKeys(p.extensions)
}

func (p *Parser) SupportedFilenames() []string {
	return util.SortedStringKeys(p.filenames)
}

func countNodes(node *sitter.Node) int {
	count := 1
	for i := uint(0); i < node.ChildCount(); i++ {
		count += countNodes(node.Child(i))
	}
	return count
}
