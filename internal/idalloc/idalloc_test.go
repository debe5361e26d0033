package idalloc_test

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"testing"

	"github.com/MrWong99/kirbyam/internal/idalloc"
)

func TestStableHash32_KnownValue(t *testing.T) {
	t.Parallel()

	// sha256("abc") = ba7816bf...
	if got, want := idalloc.StableHash32("abc"), uint32(0xba7816bf); got != want {
		t.Fatalf("StableHash32(abc) = %#x, want %#x", got, want)
	}
}

func TestAllocate_Deterministic(t *testing.T) {
	t.Parallel()

	first, err := idalloc.Allocate([]string{"a", "b"}, 1000, "ns")
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	second, err := idalloc.Allocate([]string{"b", "a"}, 1000, "ns")
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if !maps.Equal(first, second) {
		t.Fatalf("Allocate not deterministic: %v vs %v", first, second)
	}
	if len(first) != 2 {
		t.Fatalf("len = %d, want 2", len(first))
	}
}

func TestAllocate_Formula(t *testing.T) {
	t.Parallel()

	ids, err := idalloc.Allocate([]string{"SHARD_1"}, idalloc.ItemBaseID, idalloc.ItemNamespace)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	h := idalloc.StableHash32(idalloc.ItemNamespace + ":SHARD_1")
	want := idalloc.ItemBaseID + int64(h%1_000_000_000)
	if ids["SHARD_1"] != want {
		t.Fatalf("id = %d, want %d", ids["SHARD_1"], want)
	}
	if ids["SHARD_1"] < idalloc.ItemBaseID {
		t.Fatalf("id %d below base", ids["SHARD_1"])
	}
}

func TestAllocate_UnrelatedKeysDoNotPerturb(t *testing.T) {
	t.Parallel()

	small, err := idalloc.Allocate([]string{"x"}, 5, "ns")
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	large, err := idalloc.Allocate([]string{"w", "x", "y", "z"}, 5, "ns")
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if small["x"] != large["x"] {
		t.Fatalf("id for x changed: %d vs %d", small["x"], large["x"])
	}
}

func TestAllocate_NamespaceSeparatesSpaces(t *testing.T) {
	t.Parallel()

	a := idalloc.ID("KEY", 0, idalloc.ItemNamespace)
	b := idalloc.ID("KEY", 0, idalloc.LocationNamespace)
	if a == b {
		t.Fatalf("same key in two namespaces produced the same id %d", a)
	}
}

func TestAllocate_DuplicateInputKeys(t *testing.T) {
	t.Parallel()

	ids, err := idalloc.Allocate([]string{"a", "a", "b"}, 0, "ns")
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("len = %d, want 2", len(ids))
	}
}

// findCollision searches generated keys for a pair sharing an id. With a
// 10^9 range a pair shows up after roughly 40k keys.
func findCollision(t *testing.T, baseID int64, namespace string) (string, string) {
	t.Helper()
	seen := make(map[int64]string)
	for i := range 2_000_000 {
		key := fmt.Sprintf("k%d", i)
		id := idalloc.ID(key, baseID, namespace)
		if other, ok := seen[id]; ok {
			return other, key
		}
		seen[id] = key
	}
	t.Fatal("no collision found")
	return "", ""
}

func TestAllocate_CollisionIsReported(t *testing.T) {
	t.Parallel()

	a, b := findCollision(t, 1000, "collide")

	_, err := idalloc.Allocate([]string{a, b, "unrelated"}, 1000, "collide")
	if err == nil {
		t.Fatal("Allocate: expected collision error, got nil")
	}
	var ce *idalloc.CollisionError
	if !errors.As(err, &ce) {
		t.Fatalf("expected *CollisionError, got %T: %v", err, err)
	}
	if ce.Namespace != "collide" {
		t.Errorf("Namespace = %q", ce.Namespace)
	}
	pair := map[string]bool{ce.Key: true, ce.Other: true}
	if !pair[a] || !pair[b] {
		t.Errorf("collision names %q/%q, want %q/%q", ce.Key, ce.Other, a, b)
	}
	if ce.ID != idalloc.ID(a, 1000, "collide") {
		t.Errorf("ID = %d", ce.ID)
	}
	if !strings.Contains(err.Error(), "change base_id") {
		t.Errorf("error does not mention remedy: %v", err)
	}
}

func TestDiff(t *testing.T) {
	t.Parallel()

	old := map[string]int64{"a": 1, "b": 2, "c": 3}
	new := map[string]int64{"a": 1, "b": 20, "d": 4}

	d := idalloc.Diff(old, new)
	if d.Empty() {
		t.Fatal("Diff: expected changes")
	}
	if len(d.Added) != 1 || d.Added[0] != "d" {
		t.Errorf("Added = %v", d.Added)
	}
	if len(d.Removed) != 1 || d.Removed[0] != "c" {
		t.Errorf("Removed = %v", d.Removed)
	}
	if len(d.Changed) != 1 || d.Changed[0] != (idalloc.Change{Key: "b", OldID: 2, NewID: 20}) {
		t.Errorf("Changed = %v", d.Changed)
	}
	if !idalloc.Diff(old, old).Empty() {
		t.Error("Diff(old, old) not empty")
	}
}
