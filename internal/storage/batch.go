package storage

// batchRange is one [Start,End) slice window of a batched operation.
type batchRange struct {
	Start, End int
}

// batchRanges splits n records into fixed-size windows.
func batchRanges(n, size int) []batchRange {
	if n <= 0 || size <= 0 {
		return nil
	}
	ranges := make([]batchRange, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		ranges = append(ranges, batchRange{Start: start, End: end})
	}
	return ranges
}

// applyBatches runs one operation per batch window and sums the affected-row
// counts. A failing batch contributes nothing and does not stop the ones
// after it; partial success is the normal mode here.
func applyBatches(n, size int, run func(start, end int) (int, error), onFail func(start, end int, err error)) int {
	total := 0
	for _, br := range batchRanges(n, size) {
		count, err := run(br.Start, br.End)
		if err != nil {
			onFail(br.Start, br.End, err)
			continue
		}
		total += count
	}
	return total
}
