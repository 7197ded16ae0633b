package query

import (
	"context"
	"fmt"

	"github.com/desertthunder/pmx/internal/shared"
)

// Paged is implemented by every paginated response.
type Paged interface {
	// PageCount returns the total number of pages, or false when the response is not paginated.
	PageCount() (int, bool)
}

// Op is a deferred remote call.
type Op[T any] func(ctx context.Context) (T, error)

// FetchAll requests page 1 to learn the page count and returns one deferred request per page,
// in page order. The first entry replays the page 1 result instead of issuing it again.
//
// A failure on page 1 fails the whole call. A response without a page count yields
// [shared.ErrNotPaginated]. Failures on later pages surface when their [Op] runs.
func FetchAll[T Paged](ctx context.Context, fetch func(ctx context.Context, page int) (T, error)) ([]Op[T], error) {
	first, err := fetch(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch first page: %w", err)
	}

	count, ok := first.PageCount()
	if !ok {
		return nil, shared.ErrNotPaginated
	}
	if count < 1 {
		count = 1
	}

	pages := make([]Op[T], 0, count)
	pages = append(pages, func(context.Context) (T, error) { return first, nil })
	for page := 2; page <= count; page++ {
		pages = append(pages, func(ctx context.Context) (T, error) {
			return fetch(ctx, page)
		})
	}
	return pages, nil
}

// Collect runs every page in groups of size and flattens the items extract returns, in page order.
// Unlike [RunChunked] any failed page fails the call, since a partial listing cannot be told apart
// from a complete one.
func Collect[T, E any](ctx context.Context, pages []Op[T], size int, extract func(T) []E) ([]E, error) {
	results := RunChunked(ctx, pages, size, nil)

	var items []E
	for i, res := range results {
		if res.Err != nil {
			return nil, fmt.Errorf("page %d: %w", i+1, res.Err)
		}
		items = append(items, extract(res.Value)...)
	}
	return items, nil
}

// FetchItems is [FetchAll] followed by [Collect].
func FetchItems[T Paged, E any](
	ctx context.Context,
	fetch func(ctx context.Context, page int) (T, error),
	size int,
	extract func(T) []E,
) ([]E, error) {
	pages, err := FetchAll(ctx, fetch)
	if err != nil {
		return nil, err
	}
	return Collect(ctx, pages, size, extract)
}
