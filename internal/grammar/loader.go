package grammar

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_css "github.com/tree-sitter/tree-sitter-css/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_html "github.com/tree-sitter/tree-sitter-html/bindings/go"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_simplex "github.com/tree-sitter/tree-sitter-simplex"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/tree-sitter/tree-sitter-simplex/internal/errors"
	"github.com/tree-sitter/tree-sitter-simplex/internal/observability"
	"github.com/tree-sitter/tree-sitter-simplex/internal/util"
)

// Loader resolves grammar names to parser descriptions. Statically bound
// grammars go through their compiled-in accessors; everything else is
// resolved from the shared objects listed in the grammar manifest.
//
// A descriptor is loaded at most once per process. Repeated Get calls for
// the same grammar return the identical handle, so handles may be compared
// by pointer and shared across goroutines without synchronization.
type Loader struct {
	grammarsPath string
	registry     map[string]LanguageSpec

	mu        sync.RWMutex
	languages map[string]*sitter.Language
}

func NewLoader(grammarsPath string) (*Loader, error) {
	registry, err := BuildLanguageRegistry(nil)
	if err != nil {
		return nil, err
	}
	return NewLoaderWithRegistry(grammarsPath, registry, false)
}

func NewLoaderWithRegistry(grammarsPath string, registry map[string]LanguageSpec, verifyArtifacts bool) (*Loader, error) {
	if registry == nil {
		var err error
		registry, err = BuildLanguageRegistry(nil)
		if err != nil {
			return nil, err
		}
	}

	if grammarsPath != "" {
		if info, err := os.Stat(grammarsPath); err == nil && !info.IsDir() {
			return nil, errors.New(errors.CodeValidationError, fmt.Sprintf("grammars path is not a directory: %s", grammarsPath))
		}
	}

	if verifyArtifacts && grammarsPath != "" {
		if info, err := os.Stat(grammarsPath); err == nil && info.IsDir() {
			issues, verifyErr := VerifyRegistryArtifacts(grammarsPath, registry)
			if verifyErr != nil {
				return nil, verifyErr
			}
			if len(issues) > 0 {
				first := issues[0]
				return nil, errors.New(errors.CodeValidationError, fmt.Sprintf(
					"grammar verification failed (%d issues): %s (%s: %s)",
					len(issues),
					first.Language,
					first.ArtifactPath,
					first.Reason,
				))
			}
		}
	}

	gl := &Loader{
		grammarsPath: grammarsPath,
		registry:     CloneLanguageRegistry(registry),
		languages:    make(map[string]*sitter.Language),
	}

	for _, langID := range util.SortedStringKeys(gl.registry) {
		spec := gl.registry[langID]
		if !spec.Enabled || !spec.Static {
			continue
		}
		lang, err := staticLanguage(langID)
		if err != nil {
			return nil, err
		}
		gl.languages[langID] = lang
		observability.GrammarLoadsTotal.WithLabelValues(langID, "static").Inc()
	}

	return gl, nil
}

func staticLanguage(langID string) (*sitter.Language, error) {
	switch langID {
	case "simplex":
		return sitter.NewLanguage(tree_sitter_simplex.Language()), nil
	case "css":
		return sitter.NewLanguage(tree_sitter_css.Language()), nil
	case "go":
		return sitter.NewLanguage(tree_sitter_go.Language()), nil
	case "html":
		return sitter.NewLanguage(tree_sitter_html.Language()), nil
	case "java":
		return sitter.NewLanguage(tree_sitter_java.Language()), nil
	case "javascript":
		return sitter.NewLanguage(tree_sitter_javascript.Language()), nil
	case "python":
		return sitter.NewLanguage(tree_sitter_python.Language()), nil
	case "rust":
		return sitter.NewLanguage(tree_sitter_rust.Language()), nil
	case "tsx":
		return sitter.NewLanguage(tree_sitter_typescript.LanguageTSX()), nil
	case "typescript":
		return sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()), nil
	default:
		return nil, errors.New(errors.CodeNotSupported, fmt.Sprintf("language %q is enabled but has no static binding", langID))
	}
}

// Get returns the parser description for the named grammar, loading it
// through the manifest on first use when it is not statically bound.
func (gl *Loader) Get(name string) (*sitter.Language, error) {
	gl.mu.RLock()
	lang, ok := gl.languages[name]
	gl.mu.RUnlock()
	if ok {
		return lang, nil
	}

	gl.mu.Lock()
	defer gl.mu.Unlock()
	if lang, ok := gl.languages[name]; ok {
		return lang, nil
	}

	spec, ok := gl.registry[name]
	if !ok {
		return nil, errors.AddContext(errors.New(errors.CodeNotFound, "unknown grammar"), errors.CtxGrammar, name)
	}
	if !spec.Enabled {
		return nil, errors.New(errors.CodeNotSupported, fmt.Sprintf("grammar %q is disabled", name))
	}

	lang, err := gl.loadDynamic(spec)
	if err != nil {
		return nil, err
	}
	gl.languages[name] = lang
	observability.GrammarLoadsTotal.WithLabelValues(name, "dynamic").Inc()
	return lang, nil
}

func (gl *Loader) loadDynamic(spec LanguageSpec) (*sitter.Language, error) {
	if gl.grammarsPath == "" {
		return nil, errors.New(errors.CodeValidationError, fmt.Sprintf("no grammars path configured for dynamic grammar %q", spec.Name))
	}

	manifestPath := filepath.Join(gl.grammarsPath, "manifest.toml")
	manifest, err := LoadManifest(manifestPath)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeValidationError, "load grammar manifest")
	}

	artifact, ok := manifest.Artifact(spec.Name)
	if !ok {
		return nil, errors.New(errors.CodeNotFound, fmt.Sprintf("grammar %q missing from manifest", spec.Name))
	}

	soPath := filepath.Join(gl.grammarsPath, artifact.SharedObjectPath)
	return LoadDynamic(soPath, spec.Name)
}

// Languages returns the currently loaded grammar names in sorted order.
func (gl *Loader) Languages() []string {
	gl.mu.RLock()
	defer gl.mu.RUnlock()
	return util.SortedStringKeys(gl.languages)
}

// Registry returns a copy of the loader's language registry.
func (gl *Loader) Registry() map[string]LanguageSpec {
	return CloneLanguageRegistry(gl.registry)
}

// SupportedExtensions returns the extensions of all enabled grammars.
func (gl *Loader) SupportedExtensions() []string {
	set := make(map[string]bool)
	for _, spec := range gl.registry {
		if !spec.Enabled {
			continue
		}
		for _, ext := range spec.Extensions {
			set[ext] = true
		}
	}
	return util.SortedStringKeys(set)
}
