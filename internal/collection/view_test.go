package collection

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/douania/lovable-github-friendship-flow-sub001/internal/metrics"
)

type patient struct {
	ID        int    `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Status    string `json:"status"`
	Age       int
}

func samplePatients() []patient {
	return []patient{
		{1, "Claire", "Martin", "active", 34},
		{2, "Hugo", "Dupont", "archived", 51},
		{3, "Léa", "Bernard", "active", 28},
		{4, "Paul", "Martinez", "pending", 34},
		{5, "Emma", "Durand", "active", 62},
	}
}

func ids(ps []patient) []int {
	out := make([]int, len(ps))
	for i, p := range ps {
		out[i] = p.ID
	}
	return out
}

func numbered(n int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = map[string]any{"id": float64(i + 1), "name": fmt.Sprintf("item %d", i+1)}
	}
	return out
}

func TestSearchAcrossFields(t *testing.T) {
	v := NewView(samplePatients(), ViewConfig[patient]{SearchFields: []string{"first_name", "last_name"}})
	defer v.Close()

	v.SetSearchTerm("MART")
	assert.Equal(t, []int{1, 4}, ids(v.Filtered()))

	v.SetSearchTerm("léa")
	assert.Equal(t, []int{3}, ids(v.Filtered()))

	v.SetSearchTerm("")
	assert.Len(t, v.Filtered(), 5)
}

func TestSearchWithoutFieldsMatchesNothing(t *testing.T) {
	v := NewView(samplePatients(), ViewConfig[patient]{})
	defer v.Close()

	v.SetSearchTerm("zzz")
	assert.Empty(t, v.Filtered())
	assert.Equal(t, 0, v.Info().TotalItems)

	v.SetSearchTerm("")
	assert.Len(t, v.Filtered(), 5)
}

func TestSearchTermIsNotTrimmed(t *testing.T) {
	v := NewView(numbered(12), ViewConfig[map[string]any]{SearchFields: []string{"name"}})
	defer v.Close()

	v.SetSearchTerm(" 1")
	// "item 1", "item 10", "item 11", "item 12"
	assert.Len(t, v.Filtered(), 4)

	v.SetSearchTerm("   ")
	assert.Empty(t, v.Filtered())
}

func TestSearchChangeResetsPage(t *testing.T) {
	v := NewView(numbered(100), ViewConfig[map[string]any]{
		SearchFields: []string{"name"},
		Pagination:   PaginationConfig{InitialPageSize: 10},
	})
	defer v.Close()

	v.SetPage(4)
	require.Equal(t, 4, v.Info().CurrentPage)

	v.SetSearchTerm("item")
	assert.Equal(t, 1, v.Info().CurrentPage)
	assert.Equal(t, 100, v.Info().TotalItems)

	v.SetPage(3)
	v.SetSearchTerm("item 1")
	assert.Equal(t, 1, v.Info().CurrentPage)
	// item 1, 10-19, 100
	assert.Equal(t, 12, v.Info().TotalItems)
}

func TestFilters(t *testing.T) {
	v := NewView(samplePatients(), ViewConfig[patient]{})
	defer v.Close()

	v.SetFilter("status", "active")
	assert.Equal(t, []int{1, 3, 5}, ids(v.Filtered()))

	v.SetFilter("Age", "34")
	assert.Equal(t, []int{1}, ids(v.Filtered()), "filters are ANDed and strings match numbers")

	v.SetFilter("Age", "all")
	assert.Equal(t, []int{1, 3, 5}, ids(v.Filtered()))

	v.SetFilter("status", []string{"archived", "pending"})
	assert.Equal(t, []int{2, 4}, ids(v.Filtered()))

	v.SetFilter("status", nil)
	assert.Len(t, v.Filtered(), 5)

	v.SetFilter("status", "archived")
	v.ClearFilters()
	assert.Len(t, v.Filtered(), 5)
}

func TestFilterChangeResetsPage(t *testing.T) {
	v := NewView(numbered(50), ViewConfig[map[string]any]{Pagination: PaginationConfig{InitialPageSize: 10}})
	defer v.Close()
	v.SetPage(3)
	v.SetFilter("name", []string{"item 1", "item 2"})
	assert.Equal(t, 1, v.Info().CurrentPage)
	assert.Equal(t, 2, v.Info().TotalItems)
}

func TestStableSort(t *testing.T) {
	v := NewView(samplePatients(), ViewConfig[patient]{SortKey: "Age"})
	defer v.Close()
	// 34 ties keep input order: Claire (1) before Paul (4)
	assert.Equal(t, []int{3, 1, 4, 2, 5}, ids(v.Filtered()))

	v.SetSort("Age", SortDesc)
	assert.Equal(t, []int{5, 2, 1, 4, 3}, ids(v.Filtered()))

	v.SetSort("last_name", SortAsc)
	assert.Equal(t, []int{3, 2, 5, 1, 4}, ids(v.Filtered()))

	v.SetSort("", SortAsc)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, ids(v.Filtered()))
}

func TestCustomCompare(t *testing.T) {
	v := NewView(samplePatients(), ViewConfig[patient]{
		Compare: func(a, b patient) int { return len(a.FirstName) - len(b.FirstName) },
	})
	defer v.Close()
	// byte lengths: four-byte names keep input order, Claire sorts last
	assert.Equal(t, []int{2, 3, 4, 5, 1}, ids(v.Filtered()))
}

func TestPagination(t *testing.T) {
	v := NewView(numbered(95), ViewConfig[map[string]any]{})
	defer v.Close()

	page := v.Page()
	require.Len(t, page, 20)
	assert.Equal(t, float64(1), page[0]["id"])

	v.GoToLastPage()
	page = v.Page()
	require.Len(t, page, 15)
	assert.Equal(t, float64(81), page[0]["id"])

	v.SetPageSize(50)
	assert.Equal(t, 1, v.Info().CurrentPage)
	assert.Len(t, v.Page(), 50)

	v.NextPage()
	assert.Len(t, v.Page(), 45)
	v.PrevPage()
	v.GoToFirstPage()
	assert.Equal(t, 1, v.Info().CurrentPage)
}

func TestInitialPage(t *testing.T) {
	v := NewView(numbered(95), ViewConfig[map[string]any]{Pagination: PaginationConfig{InitialPage: 2}})
	defer v.Close()
	assert.Equal(t, 2, v.Info().CurrentPage)
	assert.Equal(t, float64(21), v.Page()[0]["id"])
}

func TestSetItemsKeepsValidPage(t *testing.T) {
	v := NewView(numbered(95), ViewConfig[map[string]any]{})
	defer v.Close()
	v.SetPage(3)
	v.SetItems(numbered(70))
	assert.Equal(t, 3, v.Info().CurrentPage)
	v.SetItems(numbered(10))
	assert.Equal(t, 1, v.Info().CurrentPage)
	assert.Len(t, v.Page(), 10)
}

func TestRecomputeAfterInPlaceChange(t *testing.T) {
	items := samplePatients()
	v := NewView(items, ViewConfig[patient]{})
	defer v.Close()
	v.SetFilter("status", "active")
	items[1].Status = "active"
	assert.Len(t, v.Filtered(), 3)
	v.Recompute()
	assert.Len(t, v.Filtered(), 4)
}

func TestDebouncedSearch(t *testing.T) {
	changed := make(chan Info, 1)
	v := NewView(samplePatients(), ViewConfig[patient]{
		SearchFields:   []string{"last_name"},
		SearchDebounce: 15 * time.Millisecond,
		OnChange:       func(info Info) { changed <- info },
	})
	defer v.Close()

	v.SetSearchTermDebounced("d")
	v.SetSearchTermDebounced("du")
	v.SetSearchTermDebounced("dur")
	assert.Len(t, v.Filtered(), 5, "nothing applied before the delay")

	select {
	case info := <-changed:
		assert.Equal(t, 1, info.TotalItems)
	case <-time.After(time.Second):
		t.Fatal("debounced search never applied")
	}
	assert.Equal(t, "dur", v.SearchTerm())
	assert.Equal(t, []int{5}, ids(v.Filtered()))
}

func TestCloseCancelsDebouncedSearch(t *testing.T) {
	v := NewView(samplePatients(), ViewConfig[patient]{
		SearchFields:   []string{"last_name"},
		SearchDebounce: 10 * time.Millisecond,
	})
	v.SetSearchTermDebounced("dupont")
	v.Close()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, "", v.SearchTerm())
}

func TestRecordsPaginationMetrics(t *testing.T) {
	rec := metrics.NewRecorder(metrics.RecorderConfig{})
	v := NewView(numbered(30), ViewConfig[map[string]any]{Recorder: rec, Component: "patients"})
	defer v.Close()
	v.NextPage()

	pm := rec.PaginationMetrics()
	require.Len(t, pm, 2)
	assert.Equal(t, "patients", pm[1].Component)
	assert.Equal(t, 30, pm[1].TotalItems)
	assert.Equal(t, 2, pm[1].CurrentPage)
}
