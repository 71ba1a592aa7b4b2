package monitor

import (
	"testing"
	"time"
)

func place(id int64, total int, drivers ...string) Place {
	return Place{ID: FlexInt64(id), PlaceID: id, Total: total, Drivers: drivers}
}

func supply(fleet, driver string) Supply {
	return Supply{FleetNumber: fleet, DriverID: driver}
}

func TestApplyBatchNew(t *testing.T) {
	d := NewDataset()

	p := place(1, 3, "a", "b")
	applied := d.ApplyBatch([]Change{{Type: EventNew, Place: &p}})

	if len(applied) != 1 {
		t.Fatalf("applied %d changes, want 1", len(applied))
	}
	places := d.Places()
	if len(places) != 1 {
		t.Fatalf("got %d places, want 1", len(places))
	}
	if got, want := places[0].Total, 3; got != want {
		t.Errorf("Total = %d, want %d", got, want)
	}
}

func TestApplyBatchUpdateReplacesWholeRecord(t *testing.T) {
	d := NewDataset()
	d.SetPlaces([]Place{{
		ID: 1, PlaceID: 1, PlaceName: "Sudirman", Total: 5,
		Drivers: []string{"a", "b"}, Polygon: "POLYGON((0 0,1 0,1 1,0 0))",
	}})

	// The update omits name, drivers and polygon; they must all clear.
	upd := place(1, 2)
	d.ApplyBatch([]Change{{Type: EventUpdate, Place: &upd}})

	places := d.Places()
	if len(places) != 1 {
		t.Fatalf("got %d places, want 1", len(places))
	}
	got := places[0]
	if got.Total != 2 {
		t.Errorf("Total = %d, want 2", got.Total)
	}
	if got.PlaceName != "" {
		t.Errorf("PlaceName = %q, want empty", got.PlaceName)
	}
	if len(got.Drivers) != 0 {
		t.Errorf("Drivers = %v, want empty", got.Drivers)
	}
	if got.Polygon != "" {
		t.Errorf("Polygon = %q, want empty", got.Polygon)
	}
}

func TestApplyBatchUpdateUnknownInserts(t *testing.T) {
	d := NewDataset()

	upd := place(9, 4, "x")
	d.ApplyBatch([]Change{{Type: EventUpdate, Place: &upd}})

	if got := len(d.Places()); got != 1 {
		t.Fatalf("got %d places, want 1", got)
	}
}

func TestApplyBatchRemoveIdempotent(t *testing.T) {
	d := NewDataset()
	d.SetPlaces([]Place{place(1, 1), place(2, 2)})

	rm := place(1, 0)
	d.ApplyBatch([]Change{{Type: EventRemoved, Place: &rm}})
	d.ApplyBatch([]Change{{Type: EventRemoved, Place: &rm}})

	places := d.Places()
	if len(places) != 1 {
		t.Fatalf("got %d places, want 1", len(places))
	}
	if places[0].PlaceID != 2 {
		t.Errorf("remaining place = %d, want 2", places[0].PlaceID)
	}
}

func TestApplyBatchNewThenRemovedNetsAbsent(t *testing.T) {
	d := NewDataset()

	p := place(5, 1, "a")
	d.ApplyBatch([]Change{
		{Type: EventNew, Place: &p},
		{Type: EventRemoved, Place: &p},
	})

	if got := len(d.Places()); got != 0 {
		t.Fatalf("got %d places, want 0", got)
	}
}

func TestApplyBatchUpdateThenRemovedNetsAbsent(t *testing.T) {
	d := NewDataset()
	d.SetPlaces([]Place{place(5, 1)})

	upd := place(5, 3, "a")
	d.ApplyBatch([]Change{
		{Type: EventUpdate, Place: &upd},
		{Type: EventRemoved, Place: &upd},
	})

	if got := len(d.Places()); got != 0 {
		t.Fatalf("got %d places, want 0", got)
	}
}

func TestApplyBatchOrderNewUpdateRemoved(t *testing.T) {
	d := NewDataset()

	// Removed arrives first in the batch but must be applied last.
	p := place(1, 2)
	upd := place(1, 7, "a")
	d.ApplyBatch([]Change{
		{Type: EventRemoved, Place: &p},
		{Type: EventNew, Place: &p},
		{Type: EventUpdate, Place: &upd},
	})

	if got := len(d.Places()); got != 0 {
		t.Fatalf("got %d places, want 0", got)
	}
}

func TestTotals(t *testing.T) {
	d := NewDataset()
	d.SetPlaces([]Place{
		place(1, 3, "a", "b"),
		place(2, 0),
	})

	totals := d.Totals()
	if got, want := totals.TotalSpaces, 3; got != want {
		t.Errorf("TotalSpaces = %d, want %d", got, want)
	}
	if got, want := totals.ActiveDrivers, 2; got != want {
		t.Errorf("ActiveDrivers = %d, want %d", got, want)
	}
}

func TestSupplyLifecycle(t *testing.T) {
	d := NewDataset()

	s1 := supply("BB-1", "d1")
	s2 := supply("BB-2", "d2")
	d.ApplyBatch([]Change{
		{Type: EventNew, Supply: &s1},
		{Type: EventNew, Supply: &s2},
	})
	if got := len(d.Supplies()); got != 2 {
		t.Fatalf("got %d supplies, want 2", got)
	}

	upd := supply("BB-1", "d1")
	upd.PlaceID = 9
	d.ApplyBatch([]Change{{Type: EventUpdate, Supply: &upd}})
	supplies := d.Supplies()
	var found bool
	for _, s := range supplies {
		if s.Key() == "BB-1|d1" {
			found = true
			if s.PlaceID != 9 {
				t.Errorf("PlaceID = %d, want 9", s.PlaceID)
			}
		}
	}
	if !found {
		t.Fatal("updated supply not found")
	}

	d.ApplyBatch([]Change{{Type: EventRemoved, Supply: &s1}})
	if got := len(d.Supplies()); got != 1 {
		t.Fatalf("got %d supplies after removal, want 1", got)
	}
}

func TestReplacePlacesDropsAbsent(t *testing.T) {
	d := NewDataset()
	d.SetPlaces([]Place{place(1, 1), place(2, 2), place(3, 3)})

	d.ReplacePlaces([]Place{place(2, 5)})

	places := d.Places()
	if len(places) != 1 {
		t.Fatalf("got %d places, want 1", len(places))
	}
	if places[0].PlaceID != 2 || places[0].Total != 5 {
		t.Errorf("got place %d/%d, want 2/5", places[0].PlaceID, places[0].Total)
	}
}

func TestLastUpdatedAdvances(t *testing.T) {
	d := NewDataset()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	d.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Second)
	}

	d.SetPlaces([]Place{place(1, 1)})
	first := d.LastUpdated()

	p := place(2, 1)
	d.ApplyBatch([]Change{{Type: EventNew, Place: &p}})
	second := d.LastUpdated()

	if !second.After(first) {
		t.Errorf("LastUpdated did not advance: %v then %v", first, second)
	}
}

func TestApplyBatchEmpty(t *testing.T) {
	d := NewDataset()
	d.SetPlaces([]Place{place(1, 1)})
	before := d.LastUpdated()

	if applied := d.ApplyBatch(nil); applied != nil {
		t.Errorf("applied = %v, want nil", applied)
	}
	if !d.LastUpdated().Equal(before) {
		t.Error("empty batch moved LastUpdated")
	}
}
