package walker

import "sort"

// Partition splits files into batches of roughly equal total bytes.
// Files are assigned largest-first to the currently lightest batch, which
// keeps any single batch from becoming a straggler during parallel parsing.
// maxBytes caps a batch's total size; a single file larger than maxBytes
// gets its own batch.
func Partition(files []FileInfo, maxBytes int64) [][]FileInfo {
	if len(files) == 0 {
		return nil
	}
	if maxBytes <= 0 {
		maxBytes = 4 << 20
	}

	sorted := make([]FileInfo, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Size != sorted[j].Size {
			return sorted[i].Size > sorted[j].Size
		}
		// Size ties break on path so batch layout is reproducible.
		return sorted[i].RelPath < sorted[j].RelPath
	})

	var total int64
	for _, f := range sorted {
		total += f.Size
	}
	bucketCount := int(total/maxBytes) + 1

	type bucket struct {
		files []FileInfo
		bytes int64
	}
	buckets := make([]bucket, bucketCount)

	for _, f := range sorted {
		// Pick the lightest bucket that still has room; overflow into the
		// lightest overall if none fits.
		best := 0
		for i := 1; i < len(buckets); i++ {
			if buckets[i].bytes < buckets[best].bytes {
				best = i
			}
		}
		if buckets[best].bytes > 0 && buckets[best].bytes+f.Size > maxBytes {
			buckets = append(buckets, bucket{})
			best = len(buckets) - 1
		}
		buckets[best].files = append(buckets[best].files, f)
		buckets[best].bytes += f.Size
	}

	batches := make([][]FileInfo, 0, len(buckets))
	for _, b := range buckets {
		if len(b.files) > 0 {
			batches = append(batches, b.files)
		}
	}
	return batches
}
