// Package virtual computes which items of a long ordered collection are
// visible in a scrolling viewport.
package virtual

import (
	"math"
	"sort"
)

// HeightFunc returns the rendered height of the item at index.
type HeightFunc[T any] func(index int, item T) float64

// FixedHeight gives every item height h.
func FixedHeight[T any](h float64) HeightFunc[T] {
	return func(int, T) float64 { return h }
}

// Range is an inclusive index range. The empty range is {0, -1}.
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// EmptyRange is the range of an empty collection.
var EmptyRange = Range{Start: 0, End: -1}

func (r Range) Empty() bool { return r.End < r.Start }

// Len is the number of indices in the range.
func (r Range) Len() int {
	if r.Empty() {
		return 0
	}
	return r.End - r.Start + 1
}

// Layout holds cumulative item positions. Positions[i] is the sum of the
// heights of items before i.
type Layout struct {
	Positions   []float64
	Heights     []float64
	TotalHeight float64
}

// BuildLayout measures items in one pass. Negative heights count as 0.
func BuildLayout[T any](items []T, height HeightFunc[T]) Layout {
	l := Layout{
		Positions: make([]float64, len(items)),
		Heights:   make([]float64, len(items)),
	}
	var pos float64
	for i, item := range items {
		h := height(i, item)
		if h < 0 || math.IsNaN(h) {
			h = 0
		}
		l.Positions[i] = pos
		l.Heights[i] = h
		pos += h
	}
	l.TotalHeight = pos
	return l
}

func (l Layout) Len() int { return len(l.Positions) }

// AverageHeight is TotalHeight / N, or 0 when empty.
func (l Layout) AverageHeight() float64 {
	if len(l.Positions) == 0 {
		return 0
	}
	return l.TotalHeight / float64(len(l.Positions))
}

// FindStartIndex returns the greatest i with Positions[i] <= scrollTop, or 0
// when scrollTop precedes every item.
func (l Layout) FindStartIndex(scrollTop float64) int {
	i := sort.Search(len(l.Positions), func(i int) bool { return l.Positions[i] > scrollTop })
	if i == 0 {
		return 0
	}
	return i - 1
}

// VisibleRange returns the items to render for the viewport
// [scrollTop, scrollTop+containerHeight], padded by overscan items on each
// side.
func (l Layout) VisibleRange(scrollTop, containerHeight float64, overscan int) Range {
	n := len(l.Positions)
	if n == 0 {
		return EmptyRange
	}
	if overscan < 0 {
		overscan = 0
	}
	if scrollTop < 0 {
		scrollTop = 0
	}
	start := max(0, l.FindStartIndex(scrollTop)-overscan)
	limit := scrollTop + containerHeight + float64(overscan)*l.AverageHeight()
	end := start
	for end+1 < n && l.Positions[end+1] < limit {
		end++
	}
	end = min(n-1, end+overscan)
	return Range{Start: start, End: end}
}
