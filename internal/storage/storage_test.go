package storage_test

import (
	"errors"
	"testing"

	"github.com/jnfrati/replq/internal/storage"
)

type record struct {
	N int
}

func TestMemoryStorageRoundtrip(t *testing.T) {
	ctx := t.Context()

	s, err := storage.NewStorage[record](storage.StorageType_Memory)
	if err != nil {
		t.Fatal(err)
	}

	id, err := s.Set(ctx, &record{N: 7})
	if err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.N != 7 {
		t.Fatalf("got %d, want 7", got.N)
	}

	if err := s.Remove(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, id); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestMemoryStorageListKeepsInsertionOrder(t *testing.T) {
	ctx := t.Context()

	s, err := storage.NewStorage[record](storage.StorageType_Memory)
	if err != nil {
		t.Fatal(err)
	}

	for i := range 5 {
		if _, err := s.Set(ctx, &record{N: i}); err != nil {
			t.Fatal(err)
		}
	}

	listed, err := s.List(ctx, 3, 1)
	if err != nil {
		t.Fatal(err)
	}

	if len(listed) != 3 {
		t.Fatalf("got %d records, want 3", len(listed))
	}
	for i, r := range listed {
		if r.N != i+1 {
			t.Fatalf("got %v out of order", listed)
		}
	}
}
