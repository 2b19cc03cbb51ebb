package parser

import (
	"bytes"
	"context"
	"testing"
)

func TestSession_IncrementalEdit(t *testing.T) {
	p := newTestParser(t)

	src := []byte("package main\n\nfunc main() {}\n")
	session, err := p.NewSession(context.Background(), "go", src)
	if err != nil {
		t.Fatal(err)
	}
	defer session.Close()

	if session.RootKind() != "source_file" {
		t.Fatalf("expected source_file root, got %s", session.RootKind())
	}
	if session.HasError() {
		t.Fatal("expected error-free initial tree")
	}

	// Rename the function: the last "main" is the one in "func main".
	start := bytes.LastIndex(src, []byte("main"))
	result, err := session.Replace(context.Background(), start, start+len("main"), []byte("run"))
	if err != nil {
		t.Fatal(err)
	}

	if result.HasError {
		t.Error("expected error-free tree after rename edit")
	}
	if result.RootKind != "source_file" {
		t.Errorf("expected source_file root after edit, got %s", result.RootKind)
	}
	if got := session.Source(); !bytes.Contains(got, []byte("func run()")) {
		t.Errorf("expected edited source to contain func run(), got %q", got)
	}
}

func TestSession_EditIntroducingAndFixingError(t *testing.T) {
	p := newTestParser(t)

	src := []byte("package main\n\nfunc main() {}\n")
	session, err := p.NewSession(context.Background(), "go", src)
	if err != nil {
		t.Fatal(err)
	}
	defer session.Close()

	// Delete the closing brace.
	pos := bytes.LastIndex(src, []byte("}"))
	result, err := session.Replace(context.Background(), pos, pos+1, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !result.HasError {
		t.Error("expected syntax error after deleting closing brace")
	}

	// Put it back at the same offset.
	result, err = session.Replace(context.Background(), pos, pos, []byte("}"))
	if err != nil {
		t.Fatal(err)
	}
	if result.HasError {
		t.Error("expected clean tree after restoring closing brace")
	}
}

func TestSession_UpdateReparsesFullDocument(t *testing.T) {
	p := newTestParser(t)

	src := []byte("package main\n\nfunc main() {}\n")
	session, err := p.NewSession(context.Background(), "go", src)
	if err != nil {
		t.Fatal(err)
	}
	defer session.Close()

	next := []byte("package main\n\nfunc run() {}\n")
	result, err := session.Update(context.Background(), next)
	if err != nil {
		t.Fatal(err)
	}
	if result.HasError {
		t.Error("expected error-free tree after update")
	}
	if !bytes.Equal(session.Source(), next) {
		t.Errorf("expected source to match updated content, got %q", session.Source())
	}

	// A follow-up update that breaks the syntax must surface in the tree.
	result, err = session.Update(context.Background(), []byte("package main\n\nfunc run() {\n"))
	if err != nil {
		t.Fatal(err)
	}
	if !result.HasError {
		t.Error("expected syntax error after removing closing brace")
	}
}

func TestEditSpan(t *testing.T) {
	cases := []struct {
		name       string
		prev, next string
		start, end int
	}{
		{"identical", "abc", "abc", 3, 3},
		{"replace middle", "abcdef", "abXdef", 2, 3},
		{"insert middle", "ab", "axb", 1, 1},
		{"delete suffix overlap", "aaa", "aa", 2, 3},
		{"append", "ab", "abc", 2, 2},
		{"full rewrite", "abc", "xyz", 0, 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start, oldEnd := editSpan([]byte(tc.prev), []byte(tc.next))
			if start != tc.start || oldEnd != tc.end {
				t.Fatalf("editSpan(%q, %q) = (%d, %d), want (%d, %d)",
					tc.prev, tc.next, start, oldEnd, tc.start, tc.end)
			}
		})
	}
}

func TestSession_RejectsOutOfBoundsEdit(t *testing.T) {
	p := newTestParser(t)

	src := []byte("package main\n")
	session, err := p.NewSession(context.Background(), "go", src)
	if err != nil {
		t.Fatal(err)
	}
	defer session.Close()

	if _, err := session.Replace(context.Background(), 5, 4, nil); err == nil {
		t.Error("expected error for inverted range")
	}
	if _, err := session.Replace(context.Background(), 0, len(src)+1, nil); err == nil {
		t.Error("expected error for range past end of source")
	}
}

func TestSession_AppendGrowsDocument(t *testing.T) {
	p := newTestParser(t)

	src := []byte("package main\n")
	session, err := p.NewSession(context.Background(), "go", src)
	if err != nil {
		t.Fatal(err)
	}
	defer session.Close()

	result, err := session.Replace(context.Background(), len(src), len(src), []byte("\nfunc added() {}\n"))
	if err != nil {
		t.Fatal(err)
	}
	if result.HasError {
		t.Error("expected clean tree after append")
	}
	if result.NodeCount < 5 {
		t.Errorf("expected tree to grow, got %d nodes", result.NodeCount)
	}
}
