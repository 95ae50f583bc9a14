package util

import (
	"context"
	"fmt"
	"sync"
)

// Parallel runs fn over inputs with at most workerLimit goroutines. The first
// error cancels the remaining work and is returned. A panic in fn is recovered
// and reported as an error.
func Parallel[T any](ctx context.Context, inputs []T, workerLimit int, fn func(context.Context, int, T) error) error {
	if len(inputs) == 0 {
		return nil
	}

	if workerLimit <= 0 {
		workerLimit = 1
	}
	if workerLimit > len(inputs) {
		workerLimit = len(inputs)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type task struct {
		idx  int
		item T
	}

	tasks := make(chan task)
	errCh := make(chan error, 1)

	var wg sync.WaitGroup
	for i := 0; i < workerLimit; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				if err := safeCall(ctx, fn, t.idx, t.item); err != nil {
					select {
					case errCh <- err:
						cancel()
					default:
					}
					return
				}
			}
		}()
	}

	go func() {
		defer close(tasks)
		for i, item := range inputs {
			select {
			case <-ctx.Done():
				return
			case tasks <- task{idx: i, item: item}:
			}
		}
	}()

	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
		return nil
	}
}

func safeCall[T any](ctx context.Context, fn func(context.Context, int, T) error, idx int, item T) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic on input %d: %v", idx, p)
		}
	}()
	return fn(ctx, idx, item)
}
