package collection

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPaginationArithmetic(t *testing.T) {
	p := NewPaginator(PaginationConfig{})
	p.SetTotalItems(95)

	info := p.Info()
	assert.Equal(t, 5, info.TotalPages)
	assert.Equal(t, 1, info.StartIndex)
	assert.Equal(t, 20, info.EndIndex)
	assert.True(t, info.IsFirst)
	assert.True(t, info.HasNext)
	assert.False(t, info.HasPrev)

	p.SetPage(5)
	info = p.Info()
	assert.Equal(t, 81, info.StartIndex)
	assert.Equal(t, 95, info.EndIndex)
	assert.True(t, info.IsLast)
	assert.False(t, info.HasNext)
	lo, hi := p.Bounds()
	assert.Equal(t, 80, lo)
	assert.Equal(t, 95, hi)

	p.SetPage(9)
	assert.Equal(t, 5, p.State().CurrentPage)
	p.SetPage(0)
	assert.Equal(t, 1, p.State().CurrentPage)
	p.SetPage(-3)
	assert.Equal(t, 1, p.State().CurrentPage)
}

func TestPaginatorNavigation(t *testing.T) {
	p := NewPaginator(PaginationConfig{InitialPageSize: 10})
	p.SetTotalItems(35)

	p.NextPage()
	p.NextPage()
	assert.Equal(t, 3, p.State().CurrentPage)
	p.GoToLastPage()
	assert.Equal(t, 4, p.State().CurrentPage)
	p.NextPage()
	assert.Equal(t, 4, p.State().CurrentPage, "next on last page is clamped")
	p.PrevPage()
	assert.Equal(t, 3, p.State().CurrentPage)
	p.GoToFirstPage()
	p.PrevPage()
	assert.Equal(t, 1, p.State().CurrentPage)
}

func TestSetPageSizeResetsPage(t *testing.T) {
	p := NewPaginator(PaginationConfig{})
	p.SetTotalItems(200)
	p.SetPage(4)

	p.SetPageSize(50)
	s := p.State()
	assert.Equal(t, 1, s.CurrentPage)
	assert.Equal(t, 50, s.PageSize)

	p.SetPage(3)
	p.SetPageSize(0)
	assert.Equal(t, 3, p.State().CurrentPage, "invalid size is ignored")
	assert.Equal(t, 50, p.State().PageSize)
}

func TestShrinkingTotalReclampsPage(t *testing.T) {
	p := NewPaginator(PaginationConfig{})
	p.SetTotalItems(100)
	p.SetPage(5)
	p.SetTotalItems(30)
	assert.Equal(t, 2, p.State().CurrentPage)
}

func TestEmptyCollectionInfo(t *testing.T) {
	p := NewPaginator(PaginationConfig{InitialPage: 3})
	info := p.Info()
	assert.Equal(t, 1, info.CurrentPage)
	assert.Equal(t, 0, info.TotalPages)
	assert.Equal(t, 0, info.StartIndex)
	assert.Equal(t, 0, info.EndIndex)
	assert.True(t, info.IsFirst)
	assert.True(t, info.IsLast)
	assert.False(t, info.HasNext)
	lo, hi := p.Bounds()
	assert.Equal(t, 0, lo)
	assert.Equal(t, 0, hi)
}

func TestNewPaginatorWithTotal(t *testing.T) {
	p := NewPaginatorWithTotal(PaginationConfig{InitialPage: 3, InitialPageSize: 10}, 45)
	assert.Equal(t, 3, p.State().CurrentPage)

	p = NewPaginatorWithTotal(PaginationConfig{InitialPage: 30, InitialPageSize: 10}, 45)
	assert.Equal(t, 5, p.State().CurrentPage)
}

func TestPageSizeOptions(t *testing.T) {
	assert.Equal(t, []int{10, 20, 50, 100}, NewPaginator(PaginationConfig{}).PageSizeOptions())
	p := NewPaginator(PaginationConfig{PageSizeOptions: []int{25, 75}})
	opts := p.PageSizeOptions()
	opts[0] = 1
	assert.Equal(t, []int{25, 75}, p.PageSizeOptions(), "returned slice is a copy")
}
