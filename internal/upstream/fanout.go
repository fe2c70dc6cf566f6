package upstream

import (
	"context"
	"encoding/json"
	"sync"
)

// CallResult is the outcome of one call in a fan-out. Partial-failure
// aggregators inspect Err per position instead of failing the join.
type CallResult struct {
	Data json.RawMessage
	Err  error
}

// Call is one upstream fetch participating in a fan-out.
type Call func(ctx context.Context) (json.RawMessage, error)

// Parallel runs every call concurrently and waits for all of them,
// returning per-call results in call order. The caller decides whether a
// failed position is a partial failure or a hard one.
func Parallel(ctx context.Context, calls ...Call) []CallResult {
	results := make([]CallResult, len(calls))

	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call Call) {
			defer wg.Done()
			data, err := call(ctx)
			results[i] = CallResult{Data: data, Err: err}
		}(i, call)
	}
	wg.Wait()

	return results
}
