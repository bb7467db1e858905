// Package memory provides in-memory storage backends: an ordered sequence
// behind a reader-writer lock, linear-scan queries, and on-demand
// aggregation standing in for the column store's materialized views. Used
// for tests and as the reference semantics.
package memory

import (
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/Thomblin/heimsight/internal/core/domain/retention"
)

// bucketWidthNs maps an aggregation bucket to its width in nanoseconds.
func bucketWidthNs(b retention.Bucket) int64 {
	switch b {
	case retention.Bucket1Min:
		return 60 * 1e9
	case retention.Bucket5Min:
		return 5 * 60 * 1e9
	case retention.Bucket1Hour:
		return 60 * 60 * 1e9
	default:
		return 24 * 60 * 60 * 1e9
	}
}

// bucketStart truncates a timestamp to its bucket.
func bucketStart(ts int64, width int64) int64 {
	if ts < 0 {
		return (ts - width + 1) / width * width
	}
	return ts / width * width
}

// labelsHash produces a stable FNV-1a hash over a label set, used as the
// labels_hash grouping key of the in-memory metric aggregates. Its values
// differ from the cityHash64 keys of the ClickHouse aggregate tables.
func labelsHash(labels map[string]string) uint64 {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := fnv.New64a()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%s;", k, labels[k])
	}
	return h.Sum64()
}

// percentile returns the nearest-rank percentile of a sorted slice.
func percentile(sorted []int64, q float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := int(q*float64(len(sorted))+0.5) - 1
	if rank < 0 {
		rank = 0
	}
	if rank >= len(sorted) {
		rank = len(sorted) - 1
	}
	return sorted[rank]
}

// ageOf summarizes count/oldest/newest over a timestamp extractor.
func ageOf[T any](items []T, ts func(T) int64) (uint64, *int64, *int64) {
	if len(items) == 0 {
		return 0, nil, nil
	}
	oldest, newest := ts(items[0]), ts(items[0])
	for _, it := range items[1:] {
		t := ts(it)
		if t < oldest {
			oldest = t
		}
		if t > newest {
			newest = t
		}
	}
	return uint64(len(items)), &oldest, &newest
}

// paginate applies offset/limit to a count, returning the slice bounds.
func paginate(total, offset, limit int) (int, int) {
	if limit <= 0 {
		limit = total
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= total {
		return 0, 0
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return offset, end
}
