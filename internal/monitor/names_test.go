package monitor

import "testing"

func TestResolve(t *testing.T) {
	r := NewNameResolver(nil)

	tests := []struct {
		name  string
		place Place
		want  string
	}{
		{"feed name wins", Place{PlaceID: 1, PlaceName: "Custom Lot"}, "Custom Lot"},
		{"known id", Place{PlaceID: 1}, "Bluebird Pool Sudirman"},
		{"known id 3", Place{PlaceID: 3}, "Bluebird Pool Kuningan"},
		{"unknown id", Place{PlaceID: 42}, "Pool Area 42"},
		{"zero id", Place{}, "Pool Area ?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.Resolve(&tt.place); got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveWithOverrides(t *testing.T) {
	r := NewNameResolver(map[int64]string{
		1: "Sudirman Selatan", // overrides the built-in entry
		7: "Senayan",
	})

	if got, want := r.Resolve(&Place{PlaceID: 1}), "Bluebird Pool Sudirman Selatan"; got != want {
		t.Errorf("Resolve() = %q, want %q", got, want)
	}
	if got, want := r.Resolve(&Place{PlaceID: 7}), "Bluebird Pool Senayan"; got != want {
		t.Errorf("Resolve() = %q, want %q", got, want)
	}
	if got, want := r.Resolve(&Place{PlaceID: 2}), "Bluebird Pool Thamrin"; got != want {
		t.Errorf("Resolve() = %q, want %q", got, want)
	}
}
