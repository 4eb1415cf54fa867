package walker

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cgerr "github.com/codegraph/codegraph-go/internal/errors"
	"github.com/codegraph/codegraph-go/internal/languages"
)

func testRegistry() *languages.Registry {
	return languages.NewRegistry(
		&languages.LanguageSpec{Name: "c", Extensions: []string{".c", ".h"}},
		&languages.LanguageSpec{Name: "python", Extensions: []string{".py"}},
	)
}

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for path, content := range files {
		full := filepath.Join(root, filepath.FromSlash(path))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return root
}

func TestWalkMissingRoot(t *testing.T) {
	_, err := Walk("/nonexistent/path/xyz", testRegistry(), FolderFilter{})
	require.Error(t, err)
	assert.True(t, cgerr.IsConfiguration(err))
}

func TestWalkCollectsSupportedFiles(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/main.c":     "int main() {}",
		"src/util.h":     "#define X 1",
		"tools/run.py":   "pass",
		"README.md":      "docs",
		"assets/logo.rs": "fn main() {}",
	})

	result, err := Walk(root, testRegistry(), FolderFilter{})
	require.NoError(t, err)

	paths := map[string]string{}
	for _, f := range result.Files {
		paths[f.RelPath] = f.Language
	}
	assert.Equal(t, map[string]string{
		"src/main.c":   "c",
		"src/util.h":   "c",
		"tools/run.py": "python",
	}, paths)
	assert.Equal(t, 2, result.Skipped)
}

func TestWalkSkipsWellKnownDirs(t *testing.T) {
	root := writeTree(t, map[string]string{
		"src/a.c":            "int a;",
		"node_modules/b.c":   "int b;",
		".git/hooks/c.c":     "int c;",
		"vendor/dep/d.c":     "int d;",
		"src/__pycache__/x.py": "pass",
	})

	result, err := Walk(root, testRegistry(), FolderFilter{})
	require.NoError(t, err)
	require.Len(t, result.Files, 1)
	assert.Equal(t, "src/a.c", result.Files[0].RelPath)
}

func TestFolderFilter(t *testing.T) {
	tests := []struct {
		name    string
		filter  FolderFilter
		rel     string
		allowed bool
	}{
		{"empty allows all", FolderFilter{}, "src/a.c", true},
		{"include match", FolderFilter{Include: []string{"src"}}, "src/a.c", true},
		{"include miss", FolderFilter{Include: []string{"src"}}, "tools/a.c", false},
		{"include prefix is folder-wise", FolderFilter{Include: []string{"src"}}, "srcx/a.c", false},
		{"exclude wins", FolderFilter{Include: []string{"src"}, Exclude: []string{"src/gen"}}, "src/gen/a.c", false},
		{"exclude other", FolderFilter{Exclude: []string{"docs"}}, "src/a.c", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.filter.Allows(tt.rel))
		})
	}
}

func TestWalkHonorsFilter(t *testing.T) {
	root := writeTree(t, map[string]string{
		"net/sock.c":  "int s;",
		"fs/inode.c":  "int i;",
		"docs/gen.py": "pass",
	})

	result, err := Walk(root, testRegistry(), FolderFilter{Include: []string{"net"}})
	require.NoError(t, err)
	require.Len(t, result.Files, 1)
	assert.Equal(t, "net/sock.c", result.Files[0].RelPath)
}
