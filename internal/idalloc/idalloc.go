// Package idalloc derives stable numeric identifiers from entity keys.
//
// An id is a pure function of (namespace, key, base id):
//
//	id = base + (StableHash32(namespace + ":" + key) mod 1_000_000_000)
//
// Adding, removing, or reordering unrelated keys never changes an existing
// id. Two keys that land on the same id are reported as a [*CollisionError];
// the allocator never probes for a free slot because a probed id would no
// longer be reproducible from the key alone.
package idalloc

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"slices"
)

// Published id spaces. These must never change once a release is out.
const (
	ItemBaseID     int64 = 23_460_000
	LocationBaseID int64 = 23_450_000

	ItemNamespace     = "kirbyam:item"
	LocationNamespace = "kirbyam:location"
)

// idRange is the width of the id space above a base id.
const idRange = 1_000_000_000

// CollisionError reports two distinct keys that hash to the same id within
// one namespace.
type CollisionError struct {
	Namespace string
	Key       string
	Other     string
	ID        int64
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("idalloc: id collision in namespace %q: %q and %q -> %d; change base_id or rename a key",
		e.Namespace, e.Key, e.Other, e.ID)
}

// StableHash32 returns the first four bytes of the SHA-256 digest of s,
// read as a big-endian unsigned integer. The value is identical on every
// platform and across process restarts.
func StableHash32(s string) uint32 {
	sum := sha256.Sum256([]byte(s))
	return binary.BigEndian.Uint32(sum[:4])
}

// ID returns the id for a single key without collision checking.
func ID(key string, baseID int64, namespace string) int64 {
	return baseID + int64(StableHash32(namespace+":"+key)%idRange)
}

// Allocate maps every key to its id. Keys are processed in sorted order so
// the reported collision pair is deterministic. Repeated keys are allowed and
// share one id.
func Allocate(keys []string, baseID int64, namespace string) (map[string]int64, error) {
	sorted := slices.Clone(keys)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	ids := make(map[string]int64, len(sorted))
	owners := make(map[int64]string, len(sorted))

	for _, key := range sorted {
		id := ID(key, baseID, namespace)
		if other, taken := owners[id]; taken && other != key {
			return nil, &CollisionError{Namespace: namespace, Key: key, Other: other, ID: id}
		}
		owners[id] = key
		ids[key] = id
	}
	return ids, nil
}

// Change describes a key whose id differs between two allocations.
type Change struct {
	Key   string
	OldID int64
	NewID int64
}

// MapDiff is the result of [Diff].
type MapDiff struct {
	Added   []string
	Removed []string
	Changed []Change
}

// Empty reports whether the two maps were identical.
func (d MapDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// Diff compares two key→id maps. All result slices are sorted by key.
func Diff(old, new map[string]int64) MapDiff {
	var d MapDiff
	for key, oldID := range old {
		newID, ok := new[key]
		if !ok {
			d.Removed = append(d.Removed, key)
			continue
		}
		if newID != oldID {
			d.Changed = append(d.Changed, Change{Key: key, OldID: oldID, NewID: newID})
		}
	}
	for key := range new {
		if _, ok := old[key]; !ok {
			d.Added = append(d.Added, key)
		}
	}
	slices.Sort(d.Added)
	slices.Sort(d.Removed)
	slices.SortFunc(d.Changed, func(a, b Change) int {
		switch {
		case a.Key < b.Key:
			return -1
		case a.Key > b.Key:
			return 1
		}
		return 0
	})
	return d
}
