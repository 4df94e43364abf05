package sandbox

import (
	"context"
	"sync"

	"github.com/vk/modforge/internal/ctxlog"
	"github.com/vk/modforge/internal/model"
)

// job pairs one plan with its synthesized source.
type job struct {
	index  int
	plan   *model.Plan
	source string
}

// ExecuteAll runs every plan, fanning out across workers. Independent
// runtime programs share no mutable state (each gets its own capability
// instances), so this parallelism is a pure throughput optimization.
//
// Results come back in plan order regardless of completion order, and the
// returned error is the first failure in plan order, so output is
// deterministic for identical input.
func (e *Executor) ExecuteAll(ctx context.Context, plans []*model.Plan, sources []string, workers int) ([]*Result, error) {
	logger := ctxlog.FromContext(ctx)
	if workers < 1 {
		workers = 1
	}
	if workers > len(plans) {
		workers = len(plans)
	}
	logger.Debug("ExecuteAll: starting sandboxes.", "plans", len(plans), "workers", workers)

	results := make([]*Result, len(plans))
	errs := make([]error, len(plans))

	jobs := make(chan job)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				results[j.index], errs[j.index] = e.Execute(ctx, j.plan, j.source)
			}
		}()
	}
	for i, plan := range plans {
		jobs <- job{index: i, plan: plan, source: sources[i]}
	}
	close(jobs)
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return results, err
		}
	}
	return results, nil
}
