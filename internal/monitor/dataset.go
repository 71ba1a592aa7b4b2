package monitor

import (
	"sync"
	"time"
)

// Totals are the aggregates recomputed over the full dataset after every
// applied batch, independent of any view filter.
type Totals struct {
	TotalSpaces   int `json:"total_spaces"`
	ActiveDrivers int `json:"active_drivers"`
}

// Dataset is the authoritative collection of places and supplies.
//
// All mutation goes through a single writer (the engine's apply loop);
// readers get copied snapshots. A batch is applied atomically: readers
// never observe a partially-applied batch.
type Dataset struct {
	mu       sync.RWMutex
	places   []Place
	supplies []Supply

	totals      Totals
	lastUpdated time.Time

	now func() time.Time
}

// NewDataset creates an empty dataset.
func NewDataset() *Dataset {
	return &Dataset{now: time.Now}
}

// SetPlaces loads the initial place collection from the bulk fetch.
func (d *Dataset) SetPlaces(places []Place) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.places = append([]Place(nil), places...)
	d.recomputeTotals()
	d.lastUpdated = d.now()
}

// ReplacePlaces applies a full-refresh payload: the given list becomes the
// complete place set, so anything absent from it is gone.
func (d *Dataset) ReplacePlaces(places []Place) {
	d.SetPlaces(places)
}

// ApplyBatch merges one batch of decoded changes into the dataset and
// returns the changes that were processed, in application order.
//
// Group order within a batch is fixed: new, then update, then removed.
// A new (or update) immediately followed by a removed for the same
// identity in one batch therefore nets to "absent".
func (d *Dataset) ApplyBatch(batch []Change) []Change {
	if len(batch) == 0 {
		return nil
	}

	// Partition by event type, preserving arrival order within each group.
	var news, updates, removals []Change
	for _, ch := range batch {
		switch ch.Type {
		case EventNew:
			news = append(news, ch)
		case EventUpdate:
			updates = append(updates, ch)
		case EventRemoved:
			removals = append(removals, ch)
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	applied := make([]Change, 0, len(batch))

	// New: unconditional append. The feed may re-announce a known identity;
	// a later update reconciles the duplicate.
	for _, ch := range news {
		if ch.Place != nil {
			d.places = append(d.places, *ch.Place)
		} else if ch.Supply != nil {
			d.supplies = append(d.supplies, *ch.Supply)
		}
		applied = append(applied, ch)
	}

	// Update: whole-record replace by identity key. An update for an
	// unknown identity is an insert, covering out-of-order new/update
	// delivery.
	for _, ch := range updates {
		if ch.Place != nil {
			if i := d.findPlace(ch.Place.ID); i >= 0 {
				d.places[i] = *ch.Place
			} else {
				d.places = append(d.places, *ch.Place)
			}
		} else if ch.Supply != nil {
			if i := d.findSupply(ch.Supply.Key()); i >= 0 {
				d.supplies[i] = *ch.Supply
			} else {
				d.supplies = append(d.supplies, *ch.Supply)
			}
		}
		applied = append(applied, ch)
	}

	// Removed: collect identity keys, then filter in one pass. Removing an
	// absent identity is a no-op.
	if len(removals) > 0 {
		placeIDs := make(map[FlexInt64]bool)
		supplyKeys := make(map[string]bool)
		for _, ch := range removals {
			if ch.Place != nil {
				placeIDs[ch.Place.ID] = true
			} else if ch.Supply != nil {
				supplyKeys[ch.Supply.Key()] = true
			}
			applied = append(applied, ch)
		}
		if len(placeIDs) > 0 {
			kept := d.places[:0]
			for _, p := range d.places {
				if !placeIDs[p.ID] {
					kept = append(kept, p)
				}
			}
			d.places = kept
		}
		if len(supplyKeys) > 0 {
			kept := d.supplies[:0]
			for _, s := range d.supplies {
				if !supplyKeys[s.Key()] {
					kept = append(kept, s)
				}
			}
			d.supplies = kept
		}
	}

	d.recomputeTotals()
	d.lastUpdated = d.now()

	return applied
}

// findPlace returns the index of the place with the given id, or -1.
// Caller must hold the lock.
func (d *Dataset) findPlace(id FlexInt64) int {
	for i := range d.places {
		if d.places[i].ID == id {
			return i
		}
	}
	return -1
}

// findSupply returns the index of the supply with the given identity key,
// or -1. Caller must hold the lock.
func (d *Dataset) findSupply(key string) int {
	for i := range d.supplies {
		if d.supplies[i].Key() == key {
			return i
		}
	}
	return -1
}

// recomputeTotals recalculates the dataset-wide aggregates.
// Caller must hold the lock.
func (d *Dataset) recomputeTotals() {
	var t Totals
	for i := range d.places {
		t.TotalSpaces += d.places[i].Total
		t.ActiveDrivers += len(d.places[i].Drivers)
	}
	d.totals = t
}

// Places returns a copy of the current place collection.
func (d *Dataset) Places() []Place {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Place(nil), d.places...)
}

// Supplies returns a copy of the current supply collection.
func (d *Dataset) Supplies() []Supply {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Supply(nil), d.supplies...)
}

// Totals returns the dataset-wide aggregates.
func (d *Dataset) Totals() Totals {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.totals
}

// LastUpdated reports when the dataset last changed. A stalled feed shows
// up as a stale marker while the last-known-good data stays served.
func (d *Dataset) LastUpdated() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastUpdated
}
