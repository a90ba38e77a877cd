package inference

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/cognicore/velim/pkg/velim/network"
)

// QueryAll answers several requests concurrently. Networks and factors are
// immutable, so requests share net without locking. Results are returned in
// request order; the first failure cancels the remaining queries.
func QueryAll(ctx context.Context, eng Engine, net *network.Network, reqs []Request, parallelism int) ([]*Result, error) {
	results := make([]*Result, len(reqs))

	g, gCtx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}

	for i, req := range reqs {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			res, err := eng.Query(gCtx, net, req)
			if err != nil {
				return fmt.Errorf("request %d %v: %w", i, req.Query, err)
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
