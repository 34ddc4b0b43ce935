package spatial

// Candidates returns the index positions whose grid cells intersect the
// buffer's bounding box
func Candidates[T any](idx *GridIndex[T], buf *Buffer) []int {
	if idx == nil || buf == nil {
		return nil
	}
	return idx.QueryIndices(buf.Bound())
}

// Join returns the indexed items that lie inside the buffer. Only the grid
// candidates are tested; with no candidates no polygon test runs at all.
func Join[T any](idx *GridIndex[T], buf *Buffer) []T {
	candidates := Candidates(idx, buf)
	if len(candidates) == 0 {
		return nil
	}

	var matches []T
	for _, pos := range candidates {
		if buf.Contains(idx.Point(pos)) {
			matches = append(matches, idx.Item(pos))
		}
	}
	return matches
}
