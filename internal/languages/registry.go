package languages

import (
	sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_c "github.com/tree-sitter/tree-sitter-c/bindings/go"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"

	"github.com/codegraph/codegraph-go/internal/models"
)

// Extractor turns one parsed file into candidate entities and candidate
// relationships. Implementations live in internal/parser; the registry only
// carries them as a capability so that downstream stages never dispatch on
// language.
type Extractor interface {
	// Extract walks the syntax tree of one file. root is nil for languages
	// without a tree-sitter grammar (e.g. Gherkin feature files).
	Extract(relPath, module string, root *sitter.Node, src []byte) ([]models.CandidateEntity, []models.CandidateRelationship, error)
}

// LanguageSpec bundles everything needed to process one language: the
// grammar, the structural and semantic query sets, and the extractor that
// evaluates them. Adding a language is pure data registration.
type LanguageSpec struct {
	Name       string
	Extensions []string
	Grammar    *sitter.Language // nil for line-based formats
	Structural StructuralQueries
	Semantic   SemanticQueries
	Extractor  Extractor
}

// StructuralQueries classify syntax-tree nodes into entity candidates.
type StructuralQueries struct {
	// EntityNodes maps a tree-sitter node kind to the entity kind it
	// produces at file scope.
	EntityNodes map[string]models.EntityKind
	// NameField is the tree-sitter field holding the declared name.
	NameField string
}

// SemanticQueries classify nodes and call targets into relationship
// candidates and kind-specific attributes.
type SemanticQueries struct {
	// CallNodes are node kinds treated as call sites.
	CallNodes []string
	// AssertCalls are callee names counted as test assertions.
	AssertCalls []string
	// AssertNodes are whole node kinds counted as assertions (e.g. Python
	// assert_statement).
	AssertNodes []string
	// DangerousCalls maps callee name -> vulnerability classification.
	DangerousCalls map[string]Danger
	// LockCalls are callee names counted toward a function's lock_count.
	LockCalls map[string]bool
	// TestFile describes how test files are recognized for this language.
	TestFile TestFilePattern
	// TestFuncPrefixes mark test entry points inside a test file.
	TestFuncPrefixes []string
	// StepDecorators mark BDD step-definition functions (Python behave
	// style: given/when/then).
	StepDecorators []string
}

// Danger classifies a dangerous callee.
type Danger struct {
	Severity string
	CWE      string
	Reason   string
}

// TestFilePattern describes filename conventions for test files.
type TestFilePattern struct {
	Prefixes []string // on the base name, e.g. "test_"
	Suffixes []string // on the base name, e.g. "_test.go"
	TestDirs []string // path segments, e.g. "tests"
}

// Registry maps file extensions to language specs. It is immutable after
// construction; lookups are pure.
type Registry struct {
	byExt  map[string]*LanguageSpec
	byName map[string]*LanguageSpec
}

// NewRegistry builds a registry from the given specs. Later specs win on
// extension conflicts.
func NewRegistry(specs ...*LanguageSpec) *Registry {
	r := &Registry{
		byExt:  make(map[string]*LanguageSpec),
		byName: make(map[string]*LanguageSpec),
	}
	for _, spec := range specs {
		r.byName[spec.Name] = spec
		for _, ext := range spec.Extensions {
			r.byExt[ext] = spec
		}
	}
	return r
}

// Lookup returns the spec for a file extension (including the dot).
// Unknown extensions return (nil, false); the caller records a skip, never
// an error.
func (r *Registry) Lookup(ext string) (*LanguageSpec, bool) {
	spec, ok := r.byExt[ext]
	return spec, ok
}

// ByName returns the spec for a language name.
func (r *Registry) ByName(name string) (*LanguageSpec, bool) {
	spec, ok := r.byName[name]
	return spec, ok
}

// Extensions returns every registered extension.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		exts = append(exts, ext)
	}
	return exts
}

// Grammar constructors for the built-in languages. Kept here so a language
// registration never leaks tree-sitter binding imports elsewhere.

func GrammarC() *sitter.Language {
	return sitter.NewLanguage(tree_sitter_c.Language())
}

func GrammarPython() *sitter.Language {
	return sitter.NewLanguage(tree_sitter_python.Language())
}

func GrammarJavaScript() *sitter.Language {
	return sitter.NewLanguage(tree_sitter_javascript.Language())
}

func GrammarTypeScript() *sitter.Language {
	return sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript())
}

func GrammarGo() *sitter.Language {
	return sitter.NewLanguage(tree_sitter_go.Language())
}
