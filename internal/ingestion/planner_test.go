package ingestion

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zeebo/xxh3"

	"github.com/codegraph/codegraph-go/internal/walker"
)

func writeFile(t *testing.T, root, rel, content string) walker.FileInfo {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return walker.FileInfo{Path: path, RelPath: rel, Size: int64(len(content))}
}

func relPaths(files []PlannedFile) []string {
	out := make([]string, len(files))
	for i, pf := range files {
		out[i] = pf.File.RelPath
	}
	return out
}

func TestBuildPlanFreshRun(t *testing.T) {
	root := t.TempDir()
	files := []walker.FileInfo{
		writeFile(t, root, "net/sock.c", "int a;\n"),
		writeFile(t, root, "app/main.py", "x = 1\n"),
	}

	plan, err := BuildPlan(files, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"app/main.py", "net/sock.c"}, relPaths(plan.Parse))
	assert.Empty(t, plan.Unchanged)
	assert.Empty(t, plan.Removed)
	assert.Empty(t, plan.Renames)
}

func TestBuildPlanDiffsAgainstBaseline(t *testing.T) {
	root := t.TempDir()
	same := writeFile(t, root, "same.c", "int a;\n")
	changed := writeFile(t, root, "changed.c", "int b = 2;\n")
	added := writeFile(t, root, "added.c", "int c;\n")

	previous := map[string]FileRecord{
		"same.c":    {Hash: xxh3.Hash([]byte("int a;\n")), Generation: 1},
		"changed.c": {Hash: xxh3.Hash([]byte("int b;\n")), Generation: 1},
		"removed.c": {Hash: xxh3.Hash([]byte("int gone;\n")), Generation: 1},
	}

	plan, err := BuildPlan([]walker.FileInfo{same, changed, added}, previous)
	require.NoError(t, err)

	assert.Equal(t, []string{"added.c", "changed.c"}, relPaths(plan.Parse))
	assert.Equal(t, []string{"same.c"}, relPaths(plan.Unchanged))
	assert.Equal(t, []string{"removed.c"}, plan.Removed)
	assert.Empty(t, plan.Renames)
}

func TestBuildPlanDetectsRename(t *testing.T) {
	root := t.TempDir()
	content := "int moved;\n"
	moved := writeFile(t, root, "new/location.c", content)

	previous := map[string]FileRecord{
		"old/location.c": {Hash: xxh3.Hash([]byte(content)), Generation: 1},
	}

	plan, err := BuildPlan([]walker.FileInfo{moved}, previous)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"old/location.c": "new/location.c"}, plan.Renames)
	assert.Empty(t, plan.Parse)
	assert.Empty(t, plan.Removed)
}

func TestBuildPlanAmbiguousRenameFallsBack(t *testing.T) {
	// Two added copies of the removed content: no unique match, so the
	// old path is a removal and both new paths parse.
	root := t.TempDir()
	content := "int dup;\n"
	a := writeFile(t, root, "a.c", content)
	b := writeFile(t, root, "b.c", content)

	previous := map[string]FileRecord{
		"orig.c": {Hash: xxh3.Hash([]byte(content)), Generation: 1},
	}

	plan, err := BuildPlan([]walker.FileInfo{a, b}, previous)
	require.NoError(t, err)

	assert.Empty(t, plan.Renames)
	assert.Equal(t, []string{"orig.c"}, plan.Removed)
	assert.Equal(t, []string{"a.c", "b.c"}, relPaths(plan.Parse))
}

func TestBuildPlanUnreadableFile(t *testing.T) {
	_, err := BuildPlan([]walker.FileInfo{
		{Path: filepath.Join(t.TempDir(), "missing.c"), RelPath: "missing.c"},
	}, nil)
	require.Error(t, err)
}
