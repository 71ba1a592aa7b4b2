// Package view derives the render-ready projection of the authoritative
// dataset: filtered, sorted, paginated, with headline aggregates scoped to
// the active filter.
package view

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"pool_monitor/internal/monitor"
)

// MaxCapacity is the fixed per-place capacity used for occupancy and
// availability ordering.
const MaxCapacity = 10

// DefaultItemsPerPage is the page size when none is configured.
const DefaultItemsPerPage = 10

// SortKey selects the projection comparator.
type SortKey string

const (
	SortByName      SortKey = "name"
	SortByOccupancy SortKey = "occupancy"
	SortByDrivers   SortKey = "drivers"
	SortByAvailable SortKey = "available"
)

// ParseSortKey validates a sort key string, falling back to name.
func ParseSortKey(s string) SortKey {
	switch SortKey(s) {
	case SortByOccupancy, SortByDrivers, SortByAvailable:
		return SortKey(s)
	default:
		return SortByName
	}
}

// State is the UI-owned view state. It is consumed read-only: the same
// dataset and state always project to the same page.
type State struct {
	Search       string
	SortBy       SortKey
	Ascending    bool
	Page         int
	ItemsPerPage int
}

// DefaultState returns the initial view state: name sort, ascending,
// first page.
func DefaultState() State {
	return State{SortBy: SortByName, Ascending: true, Page: 1, ItemsPerPage: DefaultItemsPerPage}
}

// Page is one projected page plus the metadata the presentation needs.
// TotalSpaces and ActiveDrivers cover the whole filtered set, not just
// the visible slice, so headline stats track the active search.
type Page struct {
	Places        []monitor.Place `json:"places"`
	Page          int             `json:"page"`
	TotalPages    int             `json:"total_pages"`
	TotalMatched  int             `json:"total_matched"`
	TotalSpaces   int             `json:"total_spaces"`
	ActiveDrivers int             `json:"active_drivers"`
}

// entry pairs a place with its resolved name so filtering and sorting
// resolve each name exactly once.
type entry struct {
	place monitor.Place
	name  string
}

// Project computes the page for the given places and view state. It is a
// pure function: no hidden state, safe to recompute on every change.
func Project(places []monitor.Place, resolver *monitor.NameResolver, st State) Page {
	if st.ItemsPerPage <= 0 {
		st.ItemsPerPage = DefaultItemsPerPage
	}
	if st.Page < 1 {
		st.Page = 1
	}

	// Filter: match against the resolved name or the joined driver list,
	// case-insensitive. An empty search matches everything.
	search := strings.ToLower(st.Search)
	entries := make([]entry, 0, len(places))
	for _, p := range places {
		name := resolver.Resolve(&p)
		if search != "" {
			drivers := strings.ToLower(strings.Join(p.Drivers, " "))
			if !strings.Contains(strings.ToLower(name), search) && !strings.Contains(drivers, search) {
				continue
			}
		}
		entries = append(entries, entry{place: p, name: name})
	}

	sortEntries(entries, st.SortBy, st.Ascending)

	// Aggregates over the filtered, sorted full set.
	var totalSpaces, activeDrivers int
	for i := range entries {
		totalSpaces += entries[i].place.Total
		activeDrivers += len(entries[i].place.Drivers)
	}

	// Paginate with clamping: a filter that shrinks the result set pulls
	// the current page back to the last valid one, never below 1.
	totalPages := (len(entries) + st.ItemsPerPage - 1) / st.ItemsPerPage
	page := st.Page
	if page > totalPages {
		page = totalPages
		if page < 1 {
			page = 1
		}
	}

	start := (page - 1) * st.ItemsPerPage
	end := start + st.ItemsPerPage
	if start > len(entries) {
		start = len(entries)
	}
	if end > len(entries) {
		end = len(entries)
	}

	out := make([]monitor.Place, 0, end-start)
	for _, e := range entries[start:end] {
		out = append(out, e.place)
	}

	return Page{
		Places:        out,
		Page:          page,
		TotalPages:    totalPages,
		TotalMatched:  len(entries),
		TotalSpaces:   totalSpaces,
		ActiveDrivers: activeDrivers,
	}
}

// sortEntries orders entries by the selected key. The sort is stable, so
// ties keep their original relative order; descending just flips the
// comparator sign.
func sortEntries(entries []entry, key SortKey, ascending bool) {
	mod := 1
	if !ascending {
		mod = -1
	}

	var less func(a, b *entry) int
	switch key {
	case SortByOccupancy:
		less = func(a, b *entry) int {
			return compareFloat(occupancyRate(&a.place), occupancyRate(&b.place))
		}
	case SortByDrivers:
		less = func(a, b *entry) int {
			return compareInt(len(a.place.Drivers), len(b.place.Drivers))
		}
	case SortByAvailable:
		less = func(a, b *entry) int {
			return compareInt(MaxCapacity-a.place.Total, MaxCapacity-b.place.Total)
		}
	default: // SortByName
		// A fresh collator per call keeps Project safe for concurrent use.
		c := collate.New(language.English, collate.IgnoreCase)
		less = func(a, b *entry) int {
			return c.CompareString(a.name, b.name)
		}
	}

	stableSort(entries, func(a, b *entry) bool {
		return less(a, b)*mod < 0
	})
}

func stableSort(entries []entry, less func(a, b *entry) bool) {
	sort.SliceStable(entries, func(i, j int) bool {
		return less(&entries[i], &entries[j])
	})
}

func occupancyRate(p *monitor.Place) float64 {
	return float64(p.Total) / float64(MaxCapacity)
}

func compareInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
