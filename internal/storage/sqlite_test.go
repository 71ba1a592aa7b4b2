package storage

import (
	"context"
	"testing"
)

func TestNameStoreSeeded(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = store.Close() }()

	names, err := store.All(context.Background())
	if err != nil {
		t.Fatalf("All: %v", err)
	}

	want := map[int64]string{1: "Sudirman", 2: "Thamrin", 3: "Kuningan"}
	if len(names) != len(want) {
		t.Fatalf("got %d names, want %d", len(names), len(want))
	}
	for id, name := range want {
		if names[id] != name {
			t.Errorf("names[%d] = %q, want %q", id, names[id], name)
		}
	}
}

func TestNameStoreUpsert(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()

	if err := store.Upsert(ctx, 7, "Senayan"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, err := store.Get(ctx, 7)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "Senayan" {
		t.Errorf("got %q, want %q", got, "Senayan")
	}

	// Upsert replaces, including seeded rows.
	if err := store.Upsert(ctx, 1, "Sudirman Selatan"); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, err = store.Get(ctx, 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "Sudirman Selatan" {
		t.Errorf("got %q, want %q", got, "Sudirman Selatan")
	}
}

func TestNameStoreGetMissing(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = store.Close() }()

	got, err := store.Get(context.Background(), 999)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "" {
		t.Errorf("got %q, want empty string", got)
	}
}

func TestNameStoreDelete(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	if err := store.Delete(ctx, 2); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err := store.Get(ctx, 2)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "" {
		t.Errorf("got %q, want empty string after delete", got)
	}
}
