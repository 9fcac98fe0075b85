package normalize

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pricewaze/ingest-cli/internal/model"
)

// Normalized is an accepted batch record with its original position.
type Normalized struct {
	Index    int
	Property model.Property
	Warnings []string
}

// Failed is a rejected batch record with its original position.
type Failed struct {
	Index int
	Raw   model.RawProperty
	Err   error
}

// Batch normalizes a slice of raw records concurrently and partitions the
// outcome. Records are independent, so a rejection never aborts the batch;
// order within each partition follows submission order.
func Batch(ctx context.Context, raws []model.RawProperty, concurrency int) ([]Normalized, []Failed) {
	if concurrency <= 0 {
		concurrency = 1
	}

	results := make([]*Result, len(raws))
	errs := make([]error, len(raws))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i := range raws {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				errs[i] = ctx.Err()
				return nil
			default:
			}
			results[i], errs[i] = Normalize(raws[i])
			return nil
		})
	}
	g.Wait() //nolint:errcheck // workers report through the errs slice

	ok := make([]Normalized, 0, len(raws))
	failed := make([]Failed, 0)
	for i := range raws {
		if errs[i] != nil {
			zap.L().Debug("record rejected",
				zap.Int("index", i),
				zap.String("source_id", raws[i].SourceID),
				zap.Error(errs[i]))
			failed = append(failed, Failed{Index: i, Raw: raws[i], Err: errs[i]})
			continue
		}
		ok = append(ok, Normalized{Index: i, Property: results[i].Property, Warnings: results[i].Warnings})
	}
	return ok, failed
}
