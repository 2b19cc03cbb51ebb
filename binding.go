package tree_sitter_simplex

// #cgo CFLAGS: -std=c11 -fPIC -Ibindings/c
// #include "bindings/c/tree-sitter-simplex.h"
// // NOTE: if your language has an external scanner, add it here.
import "C"

import (
	"unsafe"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

// Language returns a handle to the statically allocated parser description
// for the simplex grammar. The referent is immutable and lives for the
// lifetime of the process; every call returns the same handle and the
// caller must not attempt to release it.
func Language() unsafe.Pointer {
	return unsafe.Pointer(C.tree_sitter_simplex())
}

// GetLanguage wraps Language for Go hosts using go-tree-sitter.
func GetLanguage() *sitter.Language {
	return sitter.NewLanguage(Language())
}
