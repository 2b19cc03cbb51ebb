//go:build !windows

package grammar

/*
#cgo LDFLAGS: -ldl
#include <dlfcn.h>
#include <stdlib.h>

typedef const void *(*ts_lang_fn)(void);

// The resolved symbol is the accessor function, not the descriptor
// itself; it must be invoked to obtain the parser description.
const void* load_ts_lang(const char* path, const char* name) {
    void* handle = dlopen(path, RTLD_LAZY);
    if (!handle) return NULL;
    void* sym = dlsym(handle, name);
    if (!sym) return NULL;
    return ((ts_lang_fn)sym)();
}
*/
import "C"
import (
	"fmt"
	"sync"
	"unsafe"

	sitter "github.com/tree-sitter/go-tree-sitter"
)

var (
	dynamicMu    sync.Mutex
	dynamicCache = make(map[string]*sitter.Language)
)

// LoadDynamic resolves the accessor symbol tree_sitter_<langName> from a
// shared object and returns the parser description it yields. The shared
// object stays mapped for the lifetime of the process, so the returned
// handle is valid forever and identical across repeated loads of the same
// path and name.
func LoadDynamic(path, langName string) (*sitter.Language, error) {
	symbol := "tree_sitter_" + langName

	dynamicMu.Lock()
	defer dynamicMu.Unlock()

	cacheKey := path + "\x00" + symbol
	if lang, ok := dynamicCache[cacheKey]; ok {
		return lang, nil
	}

	cPath := C.CString(path)
	cSymbol := C.CString(symbol)
	defer C.free(unsafe.Pointer(cPath))
	defer C.free(unsafe.Pointer(cSymbol))

	ptr := C.load_ts_lang(cPath, cSymbol)
	if ptr == nil {
		return nil, fmt.Errorf("failed to load %s from %s", symbol, path)
	}

	lang := sitter.NewLanguage(ptr)
	dynamicCache[cacheKey] = lang
	return lang, nil
}
