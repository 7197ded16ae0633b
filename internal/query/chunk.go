package query

import (
	"context"
	"fmt"
	"sync"
)

// Result is the outcome of one [Op]. A failed op leaves Value at its zero value.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the op succeeded.
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// Progress is reported after every group.
type Progress struct {
	Done      int // ops finished so far
	Succeeded int // ops finished without error so far
	Total     int
}

// RunChunked executes ops in consecutive groups of at most size. All ops of a group start together
// and the next group starts only once every op of the current one has returned. onChunk, when
// non-nil, is called after each group.
//
// Results keep the order of ops. A panicking op yields a failed result. A size below 1 runs
// everything as a single group.
func RunChunked[T any](ctx context.Context, ops []Op[T], size int, onChunk func(Progress)) []Result[T] {
	if size < 1 {
		size = len(ops)
	}

	results := make([]Result[T], len(ops))
	progress := Progress{Total: len(ops)}

	for start := 0; start < len(ops); start += size {
		end := min(start+size, len(ops))

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = runOp(ctx, ops[i])
			}(i)
		}
		wg.Wait()

		for i := start; i < end; i++ {
			if results[i].OK() {
				progress.Succeeded++
			}
		}
		progress.Done = end
		if onChunk != nil {
			onChunk(progress)
		}
	}
	return results
}

func runOp[T any](ctx context.Context, op Op[T]) (res Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			res = Result[T]{Err: fmt.Errorf("op panicked: %v", r)}
		}
	}()
	value, err := op(ctx)
	return Result[T]{Value: value, Err: err}
}
