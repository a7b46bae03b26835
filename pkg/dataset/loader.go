package dataset

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

const defWorkers = 4

// Role tags a loader with the part it plays in a run.
type Role string

const (
	RoleTrain Role = "train"
	RoleVal   Role = "val"
	RoleTest  Role = "test"
)

type LoaderOptions struct {
	BatchSize int
	Shuffle   bool
	Workers   int
	Seed      uint64
}

// Loader batches a dataset using a fixed pool of workers. Each worker has
// at most one batch in flight and batches are handed to the caller in
// order.
type Loader struct {
	ds     Dataset
	opts   LoaderOptions
	passes atomic.Uint64
}

func NewLoader(ds Dataset, opts LoaderOptions) *Loader {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1
	}
	if opts.Workers <= 0 {
		opts.Workers = defWorkers
	}

	return &Loader{ds: ds, opts: opts}
}

// Len returns the number of batches in one pass.
func (l *Loader) Len() int {
	n := l.ds.Len()

	return (n + l.opts.BatchSize - 1) / l.opts.BatchSize
}

// Iterate performs one full pass, calling fn for every batch on the
// calling goroutine. A shuffled loader draws a new permutation per pass.
func (l *Loader) Iterate(ctx context.Context, fn func(Batch) error) error {
	n := l.Len()
	if n == 0 {
		return nil
	}
	order := l.order()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	jobs := make(chan int)
	tokens := make(chan struct{}, l.opts.Workers)
	results := make([]chan Batch, n)
	for i := range results {
		results[i] = make(chan Batch, 1)
	}

	g.Go(func() error {
		defer close(jobs)
		for i := range n {
			select {
			case tokens <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}

		return nil
	})

	for range l.opts.Workers {
		g.Go(func() error {
			for i := range jobs {
				b, err := l.assemble(gctx, order, i)
				if err != nil {
					return err
				}
				results[i] <- b
			}

			return nil
		})
	}

	var consumeErr error
	for i := range n {
		var b Batch
		select {
		case b = <-results[i]:
		case <-gctx.Done():
			cancel()
			if err := g.Wait(); err != nil {
				return err
			}

			return gctx.Err()
		}
		<-tokens
		if err := fn(b); err != nil {
			consumeErr = err

			break
		}
	}

	cancel()
	werr := g.Wait()
	if consumeErr != nil {
		return consumeErr
	}
	if werr != nil && !errors.Is(werr, context.Canceled) {
		return werr
	}

	return nil
}

func (l *Loader) order() []int {
	size := l.ds.Len()
	if !l.opts.Shuffle {
		order := make([]int, size)
		for i := range order {
			order[i] = i
		}

		return order
	}

	pass := l.passes.Add(1)
	r := rand.New(rand.NewPCG(l.opts.Seed, pass))

	return r.Perm(size)
}

func (l *Loader) assemble(ctx context.Context, order []int, batch int) (Batch, error) {
	start := batch * l.opts.BatchSize
	end := min(start+l.opts.BatchSize, len(order))

	samples := make([]Sample, 0, end-start)
	for _, idx := range order[start:end] {
		if err := ctx.Err(); err != nil {
			return Batch{}, err
		}
		s, err := l.ds.Get(ctx, idx)
		if err != nil {
			return Batch{}, err
		}
		samples = append(samples, s)
	}

	return newBatch(samples), nil
}
