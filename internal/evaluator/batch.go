package evaluator

import (
	"context"

	"github.com/sourcegraph/conc/pool"

	"github.com/TimurManjosov/rulesmith/internal/ast"
)

// DefaultBatchWorkers is used when EvaluateBatch is given a non-positive
// worker count.
const DefaultBatchWorkers = 8

// BatchResult is the outcome for one record of a batch.
type BatchResult struct {
	Index  int
	Result bool
	Err    error
}

// EvaluateBatch evaluates root against every record using at most workers
// goroutines. Results are returned in input order. Records not yet started
// when ctx is cancelled report ctx.Err().
func EvaluateBatch(ctx context.Context, root *ast.Node, records []Record, workers int) []BatchResult {
	if workers <= 0 {
		workers = DefaultBatchWorkers
	}
	results := make([]BatchResult, len(records))
	p := pool.New().WithMaxGoroutines(workers)
	for i, rec := range records {
		p.Go(func() {
			results[i].Index = i
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return
			}
			results[i].Result, results[i].Err = Evaluate(root, rec)
		})
	}
	p.Wait()
	return results
}
