package analysis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectPages(t *testing.T) {
	tests := []struct {
		name      string
		total     int
		pageSize  int
		wantPages int
	}{
		{"empty", 0, 10, 1},
		{"short first page", 4, 10, 1},
		{"exact multiple reads one empty page", 20, 10, 3},
		{"remainder", 25, 10, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var offsets []int
			rows, pages, err := collectPages(context.Background(), tt.pageSize, func(_ context.Context, offset, limit int) ([]int, error) {
				offsets = append(offsets, offset)
				var page []int
				for i := offset; i < tt.total && i < offset+limit; i++ {
					page = append(page, i)
				}
				return page, nil
			})
			require.NoError(t, err)
			assert.Len(t, rows, tt.total)
			assert.Equal(t, tt.wantPages, pages)
			assert.Equal(t, 0, offsets[0])
		})
	}
}

func TestCollectPages_StopsOnError(t *testing.T) {
	calls := 0
	rows, pages, err := collectPages(context.Background(), 2, func(_ context.Context, offset, _ int) ([]string, error) {
		calls++
		if offset > 0 {
			return nil, errBoom
		}
		return []string{"a", "b"}, nil
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, []string{"a", "b"}, rows)
	assert.Equal(t, 2, pages)
	assert.Equal(t, 2, calls)
}

func TestCollectPages_RejectsBadSize(t *testing.T) {
	_, _, err := collectPages(context.Background(), 0, func(context.Context, int, int) ([]int, error) {
		t.Fatal("fetch must not be called")
		return nil, nil
	})
	assert.Error(t, err)
}

func TestInBatches(t *testing.T) {
	var sizes []int
	done, err := InBatches([]int{1, 2, 3, 4, 5}, 2, func(batch []int) error {
		sizes = append(sizes, len(batch))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, done)
	assert.Equal(t, []int{2, 2, 1}, sizes)

	done, err = InBatches([]int{1, 2, 3, 4, 5}, 2, func(batch []int) error {
		if batch[0] == 5 {
			return errBoom
		}
		return nil
	})
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, 4, done)

	done, err = InBatches[int](nil, 3, func([]int) error { return errBoom })
	require.NoError(t, err)
	assert.Zero(t, done)
}
