package driver

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ElaborateAll runs independent targets concurrently, one compilation each.
// Results keep the order of runs. jobs <= 0 means GOMAXPROCS.
func ElaborateAll(ctx context.Context, runs []Options, jobs int) ([]*Result, error) {
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	results := make([]*Result, len(runs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i := range runs {
		g.Go(func() error {
			res, err := Elaborate(gctx, runs[i])
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
