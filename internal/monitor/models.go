// Package monitor provides the occupancy data model and the reconciliation
// engine that merges feed events into the authoritative dataset.
package monitor

import (
	"encoding/json"
	"strconv"
	"time"
)

// FlexInt64 handles JSON fields that can be either string or number.
// Feed payloads are not consistent about numeric identifiers.
type FlexInt64 int64

func (f *FlexInt64) UnmarshalJSON(data []byte) error {
	// Try as number first
	var i int64
	if err := json.Unmarshal(data, &i); err == nil {
		*f = FlexInt64(i)
		return nil
	}

	// Try as string
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" {
			*f = 0
			return nil
		}
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			*f = 0
			return nil // Silently ignore unparseable IDs
		}
		*f = FlexInt64(i)
		return nil
	}

	*f = 0
	return nil
}

// DriverLocation is the reported position of a single driver inside a place.
type DriverLocation struct {
	DriverID  string  `json:"driver_id"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Place represents a monitored pool location.
//
// total and driver are supplied independently by the feed and may disagree;
// consumers must not assume len(Drivers) == Total.
type Place struct {
	ID        FlexInt64 `json:"id"`
	PlaceID   int64     `json:"place_id"`
	PlaceName string    `json:"place_name,omitempty"`
	Total     int       `json:"total"`
	Drivers   []string  `json:"driver,omitempty"`

	// Polygon is the boundary as WKT POLYGON text. Parse with geo.ParsePolygon;
	// malformed text means no boundary, not an error.
	Polygon string `json:"polygon,omitempty"`

	DriverLocations  []DriverLocation     `json:"driver_locations,omitempty"`
	DriverEntryTimes map[string]time.Time `json:"driver_entry_times,omitempty"`
}

// DriverCount returns the number of active drivers reported for the place.
func (p *Place) DriverCount() int {
	return len(p.Drivers)
}

// Supply represents a tracked vehicle instance.
type Supply struct {
	FleetNumber string    `json:"fleet_number"`
	DriverID    string    `json:"driver_id"`
	PlaceID     int64     `json:"place_id,omitempty"`
	PlaceTypeID int64     `json:"place_type_id,omitempty"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Timestamp   time.Time `json:"timestamp,omitempty"`
}

// supplyWire mirrors Supply but carries the camelCase aliases some feed
// emitters use alongside the snake_case form.
type supplyWire struct {
	FleetNumber  string    `json:"fleet_number"`
	FleetNumber2 string    `json:"fleetNumber"`
	DriverID     string    `json:"driver_id"`
	DriverID2    string    `json:"driverId"`
	PlaceID      int64     `json:"place_id"`
	PlaceID2     int64     `json:"placeId"`
	PlaceTypeID  int64     `json:"place_type_id"`
	PlaceTypeID2 int64     `json:"placeTypeId"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	Timestamp    time.Time `json:"timestamp"`
}

func (s *Supply) UnmarshalJSON(data []byte) error {
	var w supplyWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	s.FleetNumber = firstNonEmpty(w.FleetNumber, w.FleetNumber2)
	s.DriverID = firstNonEmpty(w.DriverID, w.DriverID2)
	s.PlaceID = firstNonZero(w.PlaceID, w.PlaceID2)
	s.PlaceTypeID = firstNonZero(w.PlaceTypeID, w.PlaceTypeID2)
	s.Latitude = w.Latitude
	s.Longitude = w.Longitude
	s.Timestamp = w.Timestamp
	return nil
}

// Key returns the identity key for a supply: fleet number plus driver.
func (s *Supply) Key() string {
	return s.FleetNumber + "|" + s.DriverID
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

func firstNonZero(a, b int64) int64 {
	if a != 0 {
		return a
	}
	return b
}

// Summary is the periodic aggregate snapshot fetched from the backend.
// It is a separate observation channel, never reconciled into the dataset.
type Summary struct {
	TotalPlaces     int     `json:"total_places"`
	TotalDrivers    int     `json:"total_drivers"`
	OccupiedSpaces  int     `json:"occupied_spaces"`
	AvailableSpaces int     `json:"available_spaces"`
	UtilizationRate float64 `json:"utilization_rate"`
}
