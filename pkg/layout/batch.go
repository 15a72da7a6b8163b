package layout

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/elk/pkg/graph"
)

// Batch computes the layouts of graphs with at most concurrency requests
// in flight. Results are in input order. The first error cancels the
// remaining work and is returned.
func (r *Runner) Batch(ctx context.Context, graphs []*graph.Graph, concurrency int) ([]*Result, error) {
	results := make([]*Result, len(graphs))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(concurrency, 1))

	for i, g := range graphs {
		eg.Go(func() error {
			res, err := r.Compute(ctx, g)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
