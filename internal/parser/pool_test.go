package parser

import (
	"sync"
	"testing"
	"unsafe"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"

	"github.com/tree-sitter/tree-sitter-simplex/internal/errors"
)

// goLanguage returns the tree-sitter Go language grammar for test use.
func goLanguage() *sitter.Language {
	return sitter.NewLanguage(tree_sitter_go.Language())
}

func newGoPool(t *testing.T) *ParserPool {
	t.Helper()
	pool, err := NewParserPool("go", goLanguage())
	if err != nil {
		t.Fatal(err)
	}
	return pool
}

func TestParserPool_GetPut(t *testing.T) {
	pool := newGoPool(t)

	sp, err := pool.Get()
	if err != nil {
		t.Fatal(err)
	}
	if sp == nil {
		t.Fatal("expected non-nil parser from pool")
	}

	// Return to pool, must not panic.
	pool.Put(sp)
}

func TestParserPool_ReusesParsers(t *testing.T) {
	pool := newGoPool(t)

	sp1, err := pool.Get()
	if err != nil {
		t.Fatal(err)
	}
	pool.Put(sp1)

	// The sync.Pool may or may not return the exact same pointer (GC can
	// clear it), but it must return a valid, usable parser.
	sp2, err := pool.Get()
	if err != nil {
		t.Fatal(err)
	}
	if sp2 == nil {
		t.Fatal("expected non-nil parser on second Get")
	}
	pool.Put(sp2)
}

func TestParserPool_PutNil(t *testing.T) {
	pool := newGoPool(t)

	// Put(nil) is a no-op.
	pool.Put(nil)
}

func TestParserPool_ParsesValidGo(t *testing.T) {
	pool := newGoPool(t)

	sp, err := pool.Get()
	if err != nil {
		t.Fatal(err)
	}
	defer pool.Put(sp)

	src := []byte("package main\nfunc main() {}\n")
	tree := sp.Parse(src, nil)
	if tree == nil {
		t.Fatal("expected non-nil parse tree for valid Go source")
	}
	defer tree.Close()

	root := tree.RootNode()
	if root == nil || root.HasError() {
		t.Fatalf("expected error-free root node, got hasError=%v", root.HasError())
	}
}

func TestNewParserPool_RejectsIncompatibleDescriptor(t *testing.T) {
	// A descriptor whose leading ABI word is far below the runtime's
	// supported range must be rejected at pool construction, not later as
	// an opaque failed parse.
	descriptor := make([]uint32, 64)
	descriptor[0] = 1
	lang := sitter.NewLanguage(unsafe.Pointer(&descriptor[0]))

	_, err := NewParserPool("ancient", lang)
	if err == nil {
		t.Fatal("expected incompatible descriptor to be rejected")
	}
	if !errors.IsCode(err, errors.CodeNotSupported) {
		t.Fatalf("expected NOT_SUPPORTED, got %v", err)
	}
}

func TestParserPool_StatsTracksLeases(t *testing.T) {
	pool := newGoPool(t)

	if pool.Stats() != 0 {
		t.Fatalf("expected 0 active parsers, got %d", pool.Stats())
	}

	sp, err := pool.Get()
	if err != nil {
		t.Fatal(err)
	}
	if pool.Stats() != 1 {
		t.Fatalf("expected 1 active parser, got %d", pool.Stats())
	}

	pool.Put(sp)
	if pool.Stats() != 0 {
		t.Fatalf("expected 0 active parsers after Put, got %d", pool.Stats())
	}
}

func TestParserPool_ConcurrentAccess(t *testing.T) {
	pool := newGoPool(t)

	const goroutines = 20
	const iters = 50

	var wg sync.WaitGroup
	wg.Add(goroutines)

	src := []byte("package main\nfunc run() {}\n")

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iters; j++ {
				sp, err := pool.Get()
				if err != nil {
					t.Error(err)
					return
				}
				tree := sp.Parse(src, nil)
				if tree == nil {
					t.Errorf("expected non-nil parse tree")
				} else {
					tree.Close()
				}
				pool.Put(sp)
			}
		}()
	}
	wg.Wait()
}
