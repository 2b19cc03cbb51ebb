package parser

import (
	"fmt"
	"sync"
	"time"

	sitter "github.com/tree-sitter/go-tree-sitter"

	"github.com/tree-sitter/tree-sitter-simplex/internal/errors"
	"github.com/tree-sitter/tree-sitter-simplex/internal/observability"
)

// ParserPool recycles tree-sitter parser instances to avoid the per-file
// allocation overhead of sitter.NewParser() / parser.Close().
//
// Each pool is tied to a single grammar descriptor. For multi-grammar
// workloads, create one ParserPool per grammar and obtain the pool from the
// parse service.
//
// Usage:
//
//	sp, err := pool.Get()
//	if err != nil { ... }
//	defer pool.Put(sp)
//	tree := sp.Parse(source, nil)
//
// Concurrency: safe for use by multiple goroutines simultaneously.
type ParserPool struct {
	grammar string
	lang    *sitter.Language
	pool    sync.Pool

	// Tracking
	leases   map[*sitter.Parser]time.Time
	leasesMu sync.Mutex
}

// NewParserPool creates a pool for the given grammar descriptor. The
// descriptor's ABI compatibility is checked up front, so a grammar the
// runtime cannot host is rejected here rather than surfacing later as a
// failed parse. The descriptor must remain valid for the lifetime of the
// pool; grammar descriptors are process-wide statics, so this always holds.
func NewParserPool(grammar string, lang *sitter.Language) (*ParserPool, error) {
	sp := sitter.NewParser()
	if err := sp.SetLanguage(lang); err != nil {
		sp.Close()
		return nil, errors.Wrap(err, errors.CodeNotSupported,
			fmt.Sprintf("grammar %q rejected by parser runtime", grammar))
	}

	p := &ParserPool{
		grammar: grammar,
		lang:    lang,
		leases:  make(map[*sitter.Parser]time.Time),
	}
	p.pool = sync.Pool{
		New: func() any {
			np := sitter.NewParser()
			if err := np.SetLanguage(lang); err != nil {
				np.Close()
				return nil
			}
			return np
		},
	}
	p.pool.Put(sp)
	return p, nil
}

// Get retrieves a parser from the pool, or allocates a new one if the pool
// is empty. The returned parser is already configured for the pool's
// grammar; Put only resets parse state, so the language assignment survives
// recycling.
func (p *ParserPool) Get() (*sitter.Parser, error) {
	sp, ok := p.pool.Get().(*sitter.Parser)
	if !ok || sp == nil {
		return nil, errors.New(errors.CodeInternal,
			fmt.Sprintf("parser allocation failed for grammar %q", p.grammar))
	}

	p.leasesMu.Lock()
	p.leases[sp] = time.Now()
	count := len(p.leases)
	p.leasesMu.Unlock()

	observability.ActiveParsers.WithLabelValues(p.grammar).Set(float64(count))
	return sp, nil
}

// Put returns a parser to the pool for reuse. The parser is reset before
// being stored so that no references to previous parse trees are retained.
// Callers must not use sp after calling Put.
func (p *ParserPool) Put(sp *sitter.Parser) {
	if sp == nil {
		return
	}

	p.leasesMu.Lock()
	delete(p.leases, sp)
	count := len(p.leases)
	p.leasesMu.Unlock()

	observability.ActiveParsers.WithLabelValues(p.grammar).Set(float64(count))

	sp.Reset()
	p.pool.Put(sp)
}

// Stats returns the number of currently active parsers.
func (p *ParserPool) Stats() int {
	p.leasesMu.Lock()
	defer p.leasesMu.Unlock()
	return len(p.leases)
}
