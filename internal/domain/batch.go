package domain

import "iter"

// MaxSeriesPerRequest is the BLS API v2 per-call series limit.
const MaxSeriesPerRequest = 50

// Batches yields consecutive chunks of ids in their original order. The size
// is clamped to [1, MaxSeriesPerRequest] so no chunk can exceed the API limit.
func Batches(ids []SeriesID, size int) iter.Seq[[]SeriesID] {
	size = clampBatchSize(size)
	return func(yield func([]SeriesID) bool) {
		for start := 0; start < len(ids); start += size {
			end := min(start+size, len(ids))
			if !yield(ids[start:end:end]) {
				return
			}
		}
	}
}

// BatchCount reports how many chunks Batches yields for n identifiers.
func BatchCount(n, size int) int {
	size = clampBatchSize(size)
	return (n + size - 1) / size
}

func clampBatchSize(size int) int {
	if size < 1 {
		return 1
	}
	if size > MaxSeriesPerRequest {
		return MaxSeriesPerRequest
	}
	return size
}
