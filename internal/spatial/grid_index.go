package spatial

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
)

// DefaultCellSize is the grid cell edge in degrees, roughly 1 km at mid-latitudes.
// The cell is a fixed angle in both axes, so its ground width shrinks toward
// the poles.
const DefaultCellSize = 0.01

// CellKey identifies one grid cell
type CellKey struct {
	X int64 // floor(lon / cellSize)
	Y int64 // floor(lat / cellSize)
}

// GridIndex is a uniform grid over a fixed set of points. Every item lives in
// exactly one cell. It is built once and never mutated, so concurrent
// queries are safe.
type GridIndex[T any] struct {
	cellSize float64
	items    []T
	points   []orb.Point
	cells    map[CellKey][]int // cell -> positions in items, ascending
	keys     []CellKey         // populated cells, sorted
	skipped  int
}

// NewGridIndex indexes items by the point returned from locate.
// Items with invalid coordinates are left out of the index.
func NewGridIndex[T any](items []T, locate func(T) orb.Point, cellSize float64) *GridIndex[T] {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}

	g := &GridIndex[T]{
		cellSize: cellSize,
		items:    items,
		points:   make([]orb.Point, len(items)),
		cells:    make(map[CellKey][]int),
	}

	for i, item := range items {
		p := locate(item)
		g.points[i] = p
		if !ValidPoint(p) {
			g.skipped++
			continue
		}
		key := g.CellOf(p)
		if _, exists := g.cells[key]; !exists {
			g.keys = append(g.keys, key)
		}
		g.cells[key] = append(g.cells[key], i)
	}

	sort.Slice(g.keys, func(i, j int) bool {
		if g.keys[i].X != g.keys[j].X {
			return g.keys[i].X < g.keys[j].X
		}
		return g.keys[i].Y < g.keys[j].Y
	})

	return g
}

// CellOf returns the cell containing p
func (g *GridIndex[T]) CellOf(p orb.Point) CellKey {
	return CellKey{
		X: int64(math.Floor(p.Lon() / g.cellSize)),
		Y: int64(math.Floor(p.Lat() / g.cellSize)),
	}
}

// CellSize returns the cell edge in degrees
func (g *GridIndex[T]) CellSize() float64 { return g.cellSize }

// Len returns the number of indexed items
func (g *GridIndex[T]) Len() int { return len(g.items) - g.skipped }

// Skipped returns how many items were left out for invalid coordinates
func (g *GridIndex[T]) Skipped() int { return g.skipped }

// CellCount returns the number of populated cells
func (g *GridIndex[T]) CellCount() int { return len(g.keys) }

// Item returns the item at position i of the original input
func (g *GridIndex[T]) Item(i int) T { return g.items[i] }

// Point returns the located point of the item at position i
func (g *GridIndex[T]) Point(i int) orb.Point { return g.points[i] }

// QueryIndices returns the input positions of every item whose cell lies in
// the inclusive cell range covering b, in ascending order. The result is a
// superset of the items inside b.
func (g *GridIndex[T]) QueryIndices(b orb.Bound) []int {
	if len(g.keys) == 0 || !ValidPoint(b.Min) || !ValidPoint(b.Max) {
		return nil
	}

	lo := g.CellOf(b.Min)
	hi := g.CellOf(b.Max)
	if lo.X > hi.X || lo.Y > hi.Y {
		return nil
	}

	var result []int
	span := float64(hi.X-lo.X+1) * float64(hi.Y-lo.Y+1)
	if span > float64(len(g.keys)) {
		// Range is wider than the data; walk populated cells instead.
		for _, key := range g.keys {
			if key.X >= lo.X && key.X <= hi.X && key.Y >= lo.Y && key.Y <= hi.Y {
				result = append(result, g.cells[key]...)
			}
		}
	} else {
		for x := lo.X; x <= hi.X; x++ {
			for y := lo.Y; y <= hi.Y; y++ {
				result = append(result, g.cells[CellKey{X: x, Y: y}]...)
			}
		}
	}

	sort.Ints(result)
	return result
}

// Query returns the items selected by QueryIndices
func (g *GridIndex[T]) Query(b orb.Bound) []T {
	positions := g.QueryIndices(b)
	if len(positions) == 0 {
		return nil
	}
	out := make([]T, len(positions))
	for i, pos := range positions {
		out[i] = g.items[pos]
	}
	return out
}
