package monitor

import "fmt"

// defaultPlaceNames maps well-known pool ids to their short names.
// Extended at startup from the reference-name store when one is configured.
var defaultPlaceNames = map[int64]string{
	1: "Sudirman",
	2: "Thamrin",
	3: "Kuningan",
}

// NameResolver resolves the display name for a place. Resolution order:
// the feed-supplied place_name, then the id→name table as a branded pool
// name, then a generic templated name.
type NameResolver struct {
	names map[int64]string
}

// NewNameResolver builds a resolver from the built-in table overlaid with
// extra entries (typically loaded from the reference-name store).
func NewNameResolver(extra map[int64]string) *NameResolver {
	names := make(map[int64]string, len(defaultPlaceNames)+len(extra))
	for id, name := range defaultPlaceNames {
		names[id] = name
	}
	for id, name := range extra {
		names[id] = name
	}
	return &NameResolver{names: names}
}

// Resolve returns the display name for a place.
func (r *NameResolver) Resolve(p *Place) string {
	if p.PlaceName != "" {
		return p.PlaceName
	}
	if name, ok := r.names[p.PlaceID]; ok {
		return "Bluebird Pool " + name
	}
	if p.PlaceID == 0 {
		return "Pool Area ?"
	}
	return fmt.Sprintf("Pool Area %d", p.PlaceID)
}
