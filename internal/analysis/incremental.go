package analysis

import (
	"context"
	"fmt"
)

// Default page and batch sizes. Each keeps a single store call well under
// typical hosted-database statement time and payload limits.
const (
	DefaultReadPageSize       = 1000
	DefaultTrailChunkPageSize = 20
	DefaultWriteBatchSize     = 500
	DefaultDeletePageSize     = 1000
)

// fetchPage reads one page at the given offset
type fetchPage[T any] func(ctx context.Context, offset, limit int) ([]T, error)

// collectPages reads sequential offset pages until a short page and returns
// every row plus the number of store calls made
func collectPages[T any](ctx context.Context, pageSize int, fetch fetchPage[T]) ([]T, int, error) {
	if pageSize <= 0 {
		return nil, 0, fmt.Errorf("page size must be positive, got %d", pageSize)
	}

	var all []T
	pages := 0
	for offset := 0; ; offset += pageSize {
		page, err := fetch(ctx, offset, pageSize)
		pages++
		if err != nil {
			return all, pages, fmt.Errorf("failed to fetch page at offset %d: %w", offset, err)
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, pages, nil
		}
	}
}

// InBatches calls fn with consecutive slices of at most size items and
// reports how many items were handed to successful calls
func InBatches[T any](items []T, size int, fn func(batch []T) error) (int, error) {
	if size <= 0 {
		return 0, fmt.Errorf("batch size must be positive, got %d", size)
	}

	done := 0
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		if err := fn(items[start:end]); err != nil {
			return done, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
		done = end
	}
	return done, nil
}
