package main

import (
	"testing"
)

func TestOpenSpaceRoundTripsPutAndGet(t *testing.T) {
	dir := t.TempDir()

	space, err := openSpace(dir)
	if err != nil {
		t.Fatalf("openSpace: %v", err)
	}

	tx := space.NewTransaction()
	a, err := encodeJSONAtom(`{"id": 1, "name": "Laptop"}`)
	if err != nil {
		t.Fatalf("encodeJSONAtom: %v", err)
	}
	tx.PutAtom(a)
	tx.SetRootObject("products:1", a.ID)
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	id, ok, err := space.GetDatabase("products:1")
	if err != nil {
		t.Fatalf("GetDatabase: %v", err)
	}
	if !ok || id != a.ID {
		t.Fatalf("GetDatabase(products:1) = %v, %v; want %v, true", id, ok, a.ID)
	}

	names, err := space.ListDatabases()
	if err != nil {
		t.Fatalf("ListDatabases: %v", err)
	}
	if len(names) != 1 || names[0] != "products:1" {
		t.Fatalf("ListDatabases() = %v, want [products:1]", names)
	}

	if err := space.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
