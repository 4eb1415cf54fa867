// Package walker enumerates source files under a repository root and splits
// them into size-balanced batches for parallel parsing.
package walker

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	cgerr "github.com/codegraph/codegraph-go/internal/errors"
	"github.com/codegraph/codegraph-go/internal/languages"
)

// FileInfo describes one discovered source file.
type FileInfo struct {
	Path     string // absolute path
	RelPath  string // path relative to the repo root, slash-separated
	Language string
	Size     int64
}

// FolderFilter restricts traversal by repo-relative folder prefix.
// Empty Include means everything; Exclude wins over Include.
type FolderFilter struct {
	Include []string
	Exclude []string
}

// Allows reports whether a repo-relative path passes the filter.
func (f FolderFilter) Allows(relPath string) bool {
	rel := filepath.ToSlash(relPath)
	for _, ex := range f.Exclude {
		if hasFolderPrefix(rel, ex) {
			return false
		}
	}
	if len(f.Include) == 0 {
		return true
	}
	for _, in := range f.Include {
		if hasFolderPrefix(rel, in) {
			return true
		}
	}
	return false
}

func hasFolderPrefix(rel, prefix string) bool {
	prefix = strings.Trim(filepath.ToSlash(prefix), "/")
	if prefix == "" {
		return true
	}
	return rel == prefix || strings.HasPrefix(rel, prefix+"/")
}

// skipDirs are never descended into, independent of the folder filter.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"venv":         true,
	".venv":        true,
	"__pycache__":  true,
	"dist":         true,
	"build":        true,
	"target":       true,
	".idea":        true,
	".vscode":      true,
	".cache":       true,
	".pytest_cache": true,
}

// WalkResult carries discovered files plus skip accounting.
type WalkResult struct {
	Files   []FileInfo
	Skipped int // files with unsupported extensions inside allowed folders
}

// Walk traverses root and returns every file whose extension the registry
// knows, honoring the folder filter. A missing root is fatal.
func Walk(root string, registry *languages.Registry, filter FolderFilter) (*WalkResult, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, cgerr.NewConfiguration("repo_path", "not a directory: %s", root)
	}

	result := &WalkResult{}
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Warn("walk error", "path", path, "error", err)
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if path != root && skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if !filter.Allows(rel) {
			return nil
		}

		ext := filepath.Ext(path)
		spec, ok := registry.Lookup(ext)
		if !ok {
			result.Skipped++
			return nil
		}
		fi, statErr := d.Info()
		if statErr != nil {
			slog.Warn("stat failed", "path", path, "error", statErr)
			return nil
		}
		result.Files = append(result.Files, FileInfo{
			Path:     path,
			RelPath:  rel,
			Language: spec.Name,
			Size:     fi.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
