package ingestion

import (
	"os"
	"sort"

	"github.com/zeebo/xxh3"

	"github.com/codegraph/codegraph-go/internal/walker"
)

// Plan is the diff between the discovered tree and the previous state.
type Plan struct {
	// Parse holds added and modified files, hash-keyed.
	Parse []PlannedFile
	// Unchanged files feed resolution from the candidate cache.
	Unchanged []PlannedFile
	// Removed paths lose their graph entities.
	Removed []string
	// Renames map old path -> new path for content-identical moves; the
	// file is not re-parsed.
	Renames map[string]string
}

// PlannedFile pairs a discovered file with its content hash.
type PlannedFile struct {
	File walker.FileInfo
	Hash uint64
}

// BuildPlan hashes every discovered file and diffs against the previous
// snapshot. A removed path whose hash reappears under exactly one new path
// is a rename; ambiguous hash matches fall back to remove-plus-add.
func BuildPlan(files []walker.FileInfo, previous map[string]FileRecord) (*Plan, error) {
	plan := &Plan{Renames: map[string]string{}}

	current := make(map[string]PlannedFile, len(files))
	for _, f := range files {
		content, err := os.ReadFile(f.Path)
		if err != nil {
			return nil, err
		}
		current[f.RelPath] = PlannedFile{File: f, Hash: xxh3.Hash(content)}
	}

	var added []PlannedFile
	for path, pf := range current {
		prev, existed := previous[path]
		switch {
		case !existed:
			added = append(added, pf)
		case prev.Hash != pf.Hash:
			plan.Parse = append(plan.Parse, pf)
		default:
			plan.Unchanged = append(plan.Unchanged, pf)
		}
	}

	var removed []string
	for path := range previous {
		if _, still := current[path]; !still {
			removed = append(removed, path)
		}
	}

	// Rename detection: unique hash match between one removed and one
	// added path.
	removedByHash := map[uint64][]string{}
	for _, path := range removed {
		removedByHash[previous[path].Hash] = append(removedByHash[previous[path].Hash], path)
	}
	addedByHash := map[uint64][]PlannedFile{}
	for _, pf := range added {
		addedByHash[pf.Hash] = append(addedByHash[pf.Hash], pf)
	}

	renamedOld := map[string]bool{}
	renamedNew := map[string]bool{}
	for hash, olds := range removedByHash {
		news := addedByHash[hash]
		if len(olds) == 1 && len(news) == 1 {
			plan.Renames[olds[0]] = news[0].File.RelPath
			renamedOld[olds[0]] = true
			renamedNew[news[0].File.RelPath] = true
		}
	}

	for _, path := range removed {
		if !renamedOld[path] {
			plan.Removed = append(plan.Removed, path)
		}
	}
	for _, pf := range added {
		if !renamedNew[pf.File.RelPath] {
			plan.Parse = append(plan.Parse, pf)
		}
	}

	sort.Slice(plan.Parse, func(i, j int) bool {
		return plan.Parse[i].File.RelPath < plan.Parse[j].File.RelPath
	})
	sort.Strings(plan.Removed)
	return plan, nil
}
