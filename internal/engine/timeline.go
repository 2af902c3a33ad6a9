package engine

import (
	"sort"

	"backtest-lab/internal/domain"
)

// Timeline merges per-symbol candle series into one deduplicated, ascending
// list of bar open times. Every loaded bar appears exactly once no matter
// how many symbols share it.
func Timeline(series map[string][]domain.Candle) []int64 {
	seen := make(map[int64]struct{})
	var out []int64
	for _, cs := range series {
		for i := range cs {
			ts := cs[i].OpenTime
			if _, ok := seen[ts]; ok {
				continue
			}
			seen[ts] = struct{}{}
			out = append(out, ts)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Chunk splits the timeline into batches of at most size bars. size <= 0
// yields a single chunk.
func Chunk(timeline []int64, size int) [][]int64 {
	if len(timeline) == 0 {
		return nil
	}
	if size <= 0 || size >= len(timeline) {
		return [][]int64{timeline}
	}
	chunks := make([][]int64, 0, (len(timeline)+size-1)/size)
	for start := 0; start < len(timeline); start += size {
		end := start + size
		if end > len(timeline) {
			end = len(timeline)
		}
		chunks = append(chunks, timeline[start:end])
	}
	return chunks
}

// indexByTime maps each symbol's bar open times to slice positions for O(1)
// lookup while walking the global timeline.
func indexByTime(series map[string][]domain.Candle) map[string]map[int64]int {
	index := make(map[string]map[int64]int, len(series))
	for sym, cs := range series {
		byTS := make(map[int64]int, len(cs))
		for i := range cs {
			byTS[cs[i].OpenTime] = i
		}
		index[sym] = byTS
	}
	return index
}
