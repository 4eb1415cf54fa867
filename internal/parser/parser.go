// Package parser turns single files into candidate entities and candidate
// relationships. Parse workers are pure functions of file content plus the
// language spec; they share no mutable state and run fully in parallel.
package parser

import (
	"fmt"
	"os"

	sitter "github.com/tree-sitter/go-tree-sitter"

	cgerr "github.com/codegraph/codegraph-go/internal/errors"
	"github.com/codegraph/codegraph-go/internal/languages"
	"github.com/codegraph/codegraph-go/internal/models"
	"github.com/codegraph/codegraph-go/internal/walker"
)

// ParseResult contains everything extracted from one file. Per-file
// failures are carried in Err so a broken file never aborts its batch.
type ParseResult struct {
	File          walker.FileInfo
	Module        string
	Entities      []models.CandidateEntity
	Relationships []models.CandidateRelationship
	Err           *cgerr.ParseError
}

// DefaultRegistry wires the built-in languages to their extractors.
func DefaultRegistry() *languages.Registry {
	cStruct, cSem := languages.CQueries()
	pyStruct, pySem := languages.PythonQueries()
	jsStruct, jsSem := languages.JavaScriptQueries()
	goStruct, goSem := languages.GoQueries()

	return languages.NewRegistry(
		&languages.LanguageSpec{
			Name:       "c",
			Extensions: []string{".c", ".h"},
			Grammar:    languages.GrammarC(),
			Structural: cStruct,
			Semantic:   cSem,
			Extractor:  &cExtractor{structural: cStruct, semantic: cSem},
		},
		&languages.LanguageSpec{
			Name:       "python",
			Extensions: []string{".py", ".pyi"},
			Grammar:    languages.GrammarPython(),
			Structural: pyStruct,
			Semantic:   pySem,
			Extractor:  &pythonExtractor{structural: pyStruct, semantic: pySem},
		},
		&languages.LanguageSpec{
			Name:       "javascript",
			Extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
			Grammar:    languages.GrammarJavaScript(),
			Structural: jsStruct,
			Semantic:   jsSem,
			Extractor:  &jsExtractor{structural: jsStruct, semantic: jsSem, language: "javascript"},
		},
		&languages.LanguageSpec{
			Name:       "typescript",
			Extensions: []string{".ts", ".tsx", ".mts", ".cts"},
			Grammar:    languages.GrammarTypeScript(),
			Structural: jsStruct,
			Semantic:   jsSem,
			Extractor:  &jsExtractor{structural: jsStruct, semantic: jsSem, language: "typescript"},
		},
		&languages.LanguageSpec{
			Name:       "go",
			Extensions: []string{".go"},
			Grammar:    languages.GrammarGo(),
			Structural: goStruct,
			Semantic:   goSem,
			Extractor:  &goExtractor{structural: goStruct, semantic: goSem},
		},
		&languages.LanguageSpec{
			Name:       "gherkin",
			Extensions: []string{".feature"},
			Extractor:  &gherkinExtractor{},
		},
	)
}

// ParseFile reads, parses, and extracts one file. Syntax errors, read
// errors, and extractor errors are returned in-band on the result.
func ParseFile(file walker.FileInfo, spec *languages.LanguageSpec) *ParseResult {
	result := &ParseResult{
		File:   file,
		Module: ModuleQN(file.RelPath),
	}

	src, err := os.ReadFile(file.Path)
	if err != nil {
		result.Err = cgerr.NewParse(file.RelPath, err)
		return result
	}
	return ParseSource(file, spec, src)
}

// ParseSource extracts from already-read content. Split out so tests can
// feed source without touching the filesystem.
func ParseSource(file walker.FileInfo, spec *languages.LanguageSpec, src []byte) *ParseResult {
	result := &ParseResult{
		File:   file,
		Module: ModuleQN(file.RelPath),
	}

	var root *sitter.Node
	if spec.Grammar != nil {
		p := sitter.NewParser()
		if p == nil {
			result.Err = cgerr.NewParse(file.RelPath, fmt.Errorf("parser allocation failed"))
			return result
		}
		defer p.Close()
		if err := p.SetLanguage(spec.Grammar); err != nil {
			result.Err = cgerr.NewParse(file.RelPath, err)
			return result
		}
		tree := p.Parse(src, nil)
		if tree == nil {
			result.Err = cgerr.NewParse(file.RelPath, fmt.Errorf("tree-sitter returned no tree"))
			return result
		}
		defer tree.Close()
		root = tree.RootNode()
	}

	entities, rels, err := spec.Extractor.Extract(file.RelPath, result.Module, root, src)
	if err != nil {
		result.Err = cgerr.NewParse(file.RelPath, err)
		return result
	}
	result.Entities = entities
	result.Relationships = rels
	return result
}
