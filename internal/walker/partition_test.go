package walker

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkFiles(sizes ...int64) []FileInfo {
	files := make([]FileInfo, len(sizes))
	for i, s := range sizes {
		files[i] = FileInfo{RelPath: fmt.Sprintf("src/f%03d.c", i), Size: s}
	}
	return files
}

func TestPartitionEmpty(t *testing.T) {
	assert.Nil(t, Partition(nil, 1024))
	assert.Nil(t, Partition([]FileInfo{}, 1024))
}

func TestPartitionKeepsEveryFile(t *testing.T) {
	files := mkFiles(100, 200, 300, 400, 500, 50, 75)
	batches := Partition(files, 600)

	var count int
	for _, b := range batches {
		count += len(b)
	}
	assert.Equal(t, len(files), count)
}

func TestPartitionBalances(t *testing.T) {
	files := mkFiles(500, 500, 500, 500, 100, 100, 100, 100)
	batches := Partition(files, 1200)
	require.GreaterOrEqual(t, len(batches), 2)

	var min, max int64
	for i, b := range batches {
		var total int64
		for _, f := range b {
			total += f.Size
		}
		if i == 0 || total < min {
			min = total
		}
		if total > max {
			max = total
		}
	}
	// Largest-first into lightest bucket keeps the spread under one
	// largest-file width.
	assert.LessOrEqual(t, max-min, int64(500))
}

func TestPartitionOversizeFileGetsOwnBatch(t *testing.T) {
	files := mkFiles(5000, 10, 10)
	batches := Partition(files, 1000)

	found := false
	for _, b := range batches {
		if len(b) == 1 && b[0].Size == 5000 {
			found = true
		}
	}
	assert.True(t, found, "oversize file should sit alone")
}

func TestPartitionDeterministic(t *testing.T) {
	files := mkFiles(300, 300, 300, 100, 100, 100)
	a := Partition(files, 500)
	b := Partition(files, 500)
	require.Equal(t, len(a), len(b))
	for i := range a {
		require.Equal(t, len(a[i]), len(b[i]))
		for j := range a[i] {
			assert.Equal(t, a[i][j].RelPath, b[i][j].RelPath)
		}
	}
}

func TestPartitionDefaultMaxBytes(t *testing.T) {
	files := mkFiles(10, 20, 30)
	batches := Partition(files, 0)
	require.Len(t, batches, 1)
	assert.Len(t, batches[0], 3)
}
