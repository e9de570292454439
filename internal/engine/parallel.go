package engine

import (
	"context"
	"errors"
	"runtime"
	"sync"
)

// RunParallel executes independent cash-sharing groups on worker goroutines.
// Ordering within a group is a hard correctness requirement (shared cash),
// so a group never splits across workers; each worker owns its own recorder
// and a disjoint slice of the ledger, and no mutable state crosses worker
// boundaries. The merged result is identical to the sequential Run.
func RunParallel(ctx context.Context, in RunInput, workers int) (*Result, error) {
	s, err := newSim(&in)
	if err != nil {
		return nil, err
	}

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	ranges := splitGroups(s.cfg.Groups, s.columns, workers)
	if len(ranges) <= 1 {
		rec := newRecorder(s.runID, s.steps, s.columns, in.TrackEquity)
		if err := s.runRange(ctx, 0, s.columns, rec); err != nil {
			return nil, err
		}
		return s.collect([]*recorder{rec}), nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	recs := make([]*recorder, len(ranges))
	errs := make([]error, len(ranges))
	var wg sync.WaitGroup
	for i, r := range ranges {
		recs[i] = newRecorder(s.runID, s.steps, r.to-r.from, in.TrackEquity)
		wg.Add(1)
		go func(i int, r colRange) {
			defer wg.Done()
			if err := s.runRange(ctx, r.from, r.to, recs[i]); err != nil {
				errs[i] = err
				cancel()
			}
		}(i, r)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil && !errors.Is(err, context.Canceled) {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.collect(recs), nil
}

// colRange is a contiguous span of columns covering whole groups.
type colRange struct {
	from, to int
}

// splitGroups partitions the column axis into at most n contiguous ranges on
// group boundaries, balancing columns per range.
func splitGroups(groups []int, columns, n int) []colRange {
	// Group start offsets.
	starts := []int{0}
	if groups != nil {
		for c := 1; c < columns; c++ {
			if groups[c] != groups[c-1] {
				starts = append(starts, c)
			}
		}
	} else {
		for c := 1; c < columns; c++ {
			starts = append(starts, c)
		}
	}

	if n > len(starts) {
		n = len(starts)
	}
	if n <= 1 {
		return []colRange{{0, columns}}
	}

	// Distribute whole groups over n ranges as evenly as possible.
	ranges := make([]colRange, 0, n)
	perRange := len(starts) / n
	extra := len(starts) % n
	idx := 0
	for i := 0; i < n; i++ {
		count := perRange
		if i < extra {
			count++
		}
		from := starts[idx]
		to := columns
		if idx+count < len(starts) {
			to = starts[idx+count]
		}
		ranges = append(ranges, colRange{from: from, to: to})
		idx += count
	}
	return ranges
}
