package parser

import (
	"context"
	"sync"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/tree-sitter/tree-sitter-simplex/internal/errors"
	"github.com/tree-sitter/tree-sitter-simplex/internal/observability"
)

// Session holds the parse state of one document so that edits can be
// re-parsed incrementally: the previous tree is handed back to the parser
// and only the regions invalidated by the edit are re-lexed.
//
// A session owns its tree. Callers must Close the session to release it.
// Methods are safe for concurrent use, though edits are serialized.
type Session struct {
	parser  *Parser
	grammar string

	mu        sync.Mutex
	source    []byte
	tree      *sitter.Tree
	lastParse time.Duration
}

// NewSession parses the initial source and returns a live session.
func (p *Parser) NewSession(ctx context.Context, langID string, source []byte) (*Session, error) {
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
	tree := sp.Parse(source, nil)
	if tree == nil {
		return nil, errors.New(errors.CodeInternal, "initial parse failed")
	}

	return &Session{
		parser:    p,
		grammar:   langID,
		source:    append([]byte(nil), source...),
		tree:      tree,
		lastParse: time.Since(start),
	}, nil
}

// Replace applies a byte-range replacement to the document and re-parses
// incrementally. start and oldEnd index into the current source.
func (s *Session) Replace(ctx context.Context, start, oldEnd int, replacement []byte) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaceLocked(ctx, start, oldEnd, replacement)
}

// Update replaces the whole document with next and re-parses. The change is
// reduced to the minimal differing byte span first, so unchanged regions of
// the tree are reused even though the caller only has full file content.
func (s *Session) Update(ctx context.Context, next []byte) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start, oldEnd := editSpan(s.source, next)
	newEnd := len(next) - (len(s.source) - oldEnd)
	return s.replaceLocked(ctx, start, oldEnd, next[start:newEnd])
}

func (s *Session) replaceLocked(ctx context.Context, start, oldEnd int, replacement []byte) (*Result, error) {
	if start < 0 || oldEnd < start || oldEnd > len(s.source) {
		return nil, errors.New(errors.CodeValidationError, "edit range out of bounds")
	}

	newSource := make([]byte, 0, len(s.source)-(oldEnd-start)+len(replacement))
	newSource = append(newSource, s.source[:start]...)
	newSource = append(newSource, replacement...)
	newSource = append(newSource, s.source[oldEnd:]...)
	newEnd := start + len(replacement)

	edit := sitter.InputEdit{
		StartByte:      uint(start),
		OldEndByte:     uint(oldEnd),
		NewEndByte:     uint(newEnd),
		StartPosition:  pointAt(s.source, start),
		OldEndPosition: pointAt(s.source, oldEnd),
		NewEndPosition: pointAt(newSource, newEnd),
	}
	s.tree.Edit(&edit)

	pool, err := s.parser.poolFor(s.grammar)
	if err != nil {
		return nil, err
	}
	sp, err := pool.Get()
	if err != nil {
		return nil, err
	}
	defer pool.Put(sp)

	start2 := time.Now()
	newTree := sp.Parse(newSource, s.tree)
	if newTree == nil {
		return nil, errors.New(errors.CodeInternal, "incremental parse failed")
	}
	elapsed := time.Since(start2)

	s.tree.Close()
	s.tree = newTree
	s.source = newSource
	s.lastParse = elapsed

	observability.IncrementalReparsesTotal.WithLabelValues(s.grammar).Inc()
	observability.ParsingDuration.WithLabelValues(s.grammar).Observe(elapsed.Seconds())

	root := newTree.RootNode()
	return &Result{
		Grammar:   s.grammar,
		RootKind:  root.Kind(),
		NodeCount: countNodes(root),
		HasError:  root.HasError(),
		Duration:  elapsed,
	}, nil
}

// editSpan trims the common prefix and suffix of prev and next and returns
// the byte range [start, oldEnd) of prev that an edit must replace.
func editSpan(prev, next []byte) (start, oldEnd int) {
	limit := min(len(prev), len(next))
	for start < limit && prev[start] == next[start] {
		start++
	}
	oldEnd = len(prev)
	newEnd := len(next)
	for oldEnd > start && newEnd > start && prev[oldEnd-1] == next[newEnd-1] {
		oldEnd--
		newEnd--
	}
	return start, oldEnd
}

// Result summarizes the session's current tree.
func (s *Session) Result() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	root := s.tree.RootNode()
	return Result{
		Grammar:   s.grammar,
		RootKind:  root.Kind(),
		NodeCount: countNodes(root),
		HasError:  root.HasError(),
		Duration:  s.lastParse,
	}
}

// Source returns a copy of the current document content.
func (s *Session) Source() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.source...)
}

// RootKind returns the kind of the current root node.
func (s *Session) RootKind() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.RootNode().Kind()
}

// HasError reports whether the current tree contains syntax errors.
func (s *Session) HasError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tree.RootNode().HasError()
}

// Close releases the session's tree. The session must not be used after.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tree != nil {
		s.tree.Close()
		s.tree = nil
	}
}

// pointAt converts a byte offset into a row/column position.
func pointAt(source []byte, offset int) sitter.Point {
	var point sitter.Point
	for i := 0; i < offset && i < len(source); i++ {
		if source[i] == '\n' {
			point.Row++
			point.Column = 0
		} else {
			point.Column++
		}
	}
	return point
}
