package view

import (
	"encoding/json"
	"reflect"
	"testing"

	"pool_monitor/internal/monitor"
)

func testPlaces() []monitor.Place {
	return []monitor.Place{
		{ID: 1, PlaceID: 1, Total: 3, Drivers: []string{"Andi", "Budi", "Citra"}},
		{ID: 2, PlaceID: 2, Total: 7, Drivers: []string{"Dewi"}},
		{ID: 3, PlaceID: 3, Total: 0},
		{ID: 4, PlaceID: 4, Total: 10, Drivers: []string{"Eko", "Fitri"}},
		{ID: 5, PlaceID: 5, Total: 5, Drivers: []string{"Gita"}},
	}
}

func ids(p Page) []int64 {
	out := make([]int64, 0, len(p.Places))
	for _, pl := range p.Places {
		out = append(out, pl.PlaceID)
	}
	return out
}

func TestProjectIsPure(t *testing.T) {
	places := testPlaces()
	r := monitor.NewNameResolver(nil)
	st := State{SortBy: SortByOccupancy, Ascending: false, Page: 1, ItemsPerPage: 3}

	first := Project(places, r, st)
	second := Project(places, r, st)

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Error("same input projected differently across calls")
	}
}

func TestProjectSortByName(t *testing.T) {
	r := monitor.NewNameResolver(nil)
	st := DefaultState()

	page := Project(testPlaces(), r, st)

	// Pool 1..3 resolve to branded names starting with "Bluebird", which
	// collate before the generic "Pool Area" labels.
	want := []int64{3, 1, 2, 4, 5} // Kuningan, Sudirman, Thamrin, Area 4, Area 5
	if got := ids(page); !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestProjectSortByDriversDescending(t *testing.T) {
	r := monitor.NewNameResolver(nil)
	st := State{SortBy: SortByDrivers, Ascending: false, Page: 1, ItemsPerPage: 10}

	page := Project(testPlaces(), r, st)
	got := ids(page)

	if got[0] != 1 { // 3 drivers
		t.Errorf("first = %d, want 1", got[0])
	}
	if got[len(got)-1] != 3 { // 0 drivers
		t.Errorf("last = %d, want 3", got[len(got)-1])
	}
}

func TestProjectSortStableOnTies(t *testing.T) {
	places := []monitor.Place{
		{ID: 10, PlaceID: 10, Total: 2, Drivers: []string{"a"}},
		{ID: 11, PlaceID: 11, Total: 5, Drivers: []string{"b"}},
		{ID: 12, PlaceID: 12, Total: 8, Drivers: []string{"c"}},
	}
	r := monitor.NewNameResolver(nil)
	st := State{SortBy: SortByDrivers, Ascending: true, Page: 1, ItemsPerPage: 10}

	page := Project(places, r, st)

	// Equal driver counts keep input order.
	want := []int64{10, 11, 12}
	if got := ids(page); !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestProjectSortByAvailable(t *testing.T) {
	r := monitor.NewNameResolver(nil)
	st := State{SortBy: SortByAvailable, Ascending: true, Page: 1, ItemsPerPage: 10}

	page := Project(testPlaces(), r, st)
	got := ids(page)

	if got[0] != 4 { // total 10, 0 available
		t.Errorf("first = %d, want 4", got[0])
	}
	if got[len(got)-1] != 3 { // total 0, 10 available
		t.Errorf("last = %d, want 3", got[len(got)-1])
	}
}

func TestProjectFilterByName(t *testing.T) {
	r := monitor.NewNameResolver(nil)
	st := DefaultState()
	st.Search = "sudirman"

	page := Project(testPlaces(), r, st)

	if page.TotalMatched != 1 {
		t.Fatalf("TotalMatched = %d, want 1", page.TotalMatched)
	}
	if page.Places[0].PlaceID != 1 {
		t.Errorf("matched place = %d, want 1", page.Places[0].PlaceID)
	}
}

func TestProjectFilterByDriver(t *testing.T) {
	r := monitor.NewNameResolver(nil)
	st := DefaultState()
	st.Search = "dewi"

	page := Project(testPlaces(), r, st)

	if page.TotalMatched != 1 || page.Places[0].PlaceID != 2 {
		t.Errorf("matched %v, want place 2 via driver name", ids(page))
	}
}

func TestProjectAggregatesTrackFilter(t *testing.T) {
	r := monitor.NewNameResolver(nil)
	st := DefaultState()
	st.Search = "bluebird"

	page := Project(testPlaces(), r, st)

	// Pools 1, 2, 3 match the branded prefix.
	if got, want := page.TotalSpaces, 10; got != want {
		t.Errorf("TotalSpaces = %d, want %d", got, want)
	}
	if got, want := page.ActiveDrivers, 4; got != want {
		t.Errorf("ActiveDrivers = %d, want %d", got, want)
	}
}

func TestProjectPageClamp(t *testing.T) {
	r := monitor.NewNameResolver(nil)
	st := State{SortBy: SortByName, Ascending: true, Page: 5, ItemsPerPage: 2}

	// 5 places, 2 per page: 3 pages, page 5 clamps to 3.
	page := Project(testPlaces(), r, st)

	if got, want := page.Page, 3; got != want {
		t.Errorf("Page = %d, want %d", got, want)
	}
	if got, want := page.TotalPages, 3; got != want {
		t.Errorf("TotalPages = %d, want %d", got, want)
	}
	if len(page.Places) != 1 {
		t.Errorf("last page has %d places, want 1", len(page.Places))
	}
}

func TestProjectEmptyResultClampsToPageOne(t *testing.T) {
	r := monitor.NewNameResolver(nil)
	st := DefaultState()
	st.Search = "nothing matches this"
	st.Page = 4

	page := Project(testPlaces(), r, st)

	if got, want := page.Page, 1; got != want {
		t.Errorf("Page = %d, want %d", got, want)
	}
	if page.TotalPages != 0 || page.TotalMatched != 0 {
		t.Errorf("TotalPages/TotalMatched = %d/%d, want 0/0", page.TotalPages, page.TotalMatched)
	}
	if len(page.Places) != 0 {
		t.Errorf("got %d places, want 0", len(page.Places))
	}
}

func TestParseSortKey(t *testing.T) {
	tests := []struct {
		in   string
		want SortKey
	}{
		{"name", SortByName},
		{"occupancy", SortByOccupancy},
		{"drivers", SortByDrivers},
		{"available", SortByAvailable},
		{"bogus", SortByName},
		{"", SortByName},
	}
	for _, tt := range tests {
		if got := ParseSortKey(tt.in); got != tt.want {
			t.Errorf("ParseSortKey(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
