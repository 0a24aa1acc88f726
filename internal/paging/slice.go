package paging

import (
	"context"

	"github.com/5w1tchy/library-web/internal/backend"
)

// SliceFetcher pages a full result set locally, for endpoints that ignore
// $top/$skip. Every window refetches the whole set.
func SliceFetcher[T, F any](all func(ctx context.Context, filters F) ([]T, error)) Fetcher[T, F] {
	return func(ctx context.Context, filters F, win Window) (backend.Page[T], error) {
		items, err := all(ctx, filters)
		if err != nil {
			return backend.Page[T]{}, err
		}
		total := len(items)
		if win.Offset >= total {
			return backend.Page[T]{Total: total}, nil
		}
		end := min(win.Offset+win.PageSize, total)
		return backend.Page[T]{Items: items[win.Offset:end], Total: total}, nil
	}
}
